package faststore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore implements Store over a go-redis client.
type redisStore struct {
	client *redis.Client
}

// Open connects to the fast store and verifies connectivity.
func Open(ctx context.Context, redisURL string) (Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, wrap("ping", err)
	}

	log.Printf("Fast store connected: %s", opts.Addr)
	return &redisStore{client: client}, nil
}

// NewFromClient wraps an existing client (used by integration tests).
func NewFromClient(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return wrap("ping", err)
	}
	return nil
}

func (s *redisStore) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, args...)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap("hset "+key, err)
	}
	return nil
}

func (s *redisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrap("hgetall "+key, err)
	}
	if len(fields) == 0 {
		// HGETALL returns an empty map for missing keys
		return nil, nil
	}
	return fields, nil
}

func (s *redisStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, wrap("incr "+key, err)
	}
	if count == 1 && ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, wrap("expire "+key, err)
		}
	}
	return count, nil
}

func (s *redisStore) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, wrap("get "+key, err)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s holds non-integer %q", key, val)
	}
	return n, nil
}

func (s *redisStore) SetCounter(ctx context.Context, key string, value int64) error {
	if err := s.client.Set(ctx, key, strconv.FormatInt(value, 10), 0).Err(); err != nil {
		return wrap("set "+key, err)
	}
	return nil
}

func (s *redisStore) SAdd(ctx context.Context, set, member string) error {
	if err := s.client.SAdd(ctx, set, member).Err(); err != nil {
		return wrap("sadd "+set, err)
	}
	return nil
}

func (s *redisStore) SIsMember(ctx context.Context, set, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, set, member).Result()
	if err != nil {
		return false, wrap("sismember "+set, err)
	}
	return ok, nil
}

// ReplaceSet swaps the set contents in one MULTI/EXEC so readers never see a
// partially loaded set.
func (s *redisStore) ReplaceSet(ctx context.Context, set string, members []string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, set)
	if len(members) > 0 {
		args := make([]interface{}, len(members))
		for i, m := range members {
			args[i] = m
		}
		pipe.SAdd(ctx, set, args...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap("replace set "+set, err)
	}
	return nil
}

func (s *redisStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrap("set "+key, err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("get "+key, err)
	}
	return val, true, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return wrap("del "+key, err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

// wrap tags connectivity failures with ErrUnavailable so the ingestion path
// can fall back to the durable store.
func wrap(op string, err error) error {
	if isConnErr(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %v", op, err)
}

func isConnErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe")
}
