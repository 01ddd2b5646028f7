package faststore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Stub is an in-memory Store used by unit tests and DEV_MODE runs without a
// reachable fast store. Expiry is evaluated lazily on read. SetDown makes
// every operation return ErrUnavailable, simulating a power-down.
type Stub struct {
	mu       sync.Mutex
	hashes   map[string]map[string]string
	values   map[string]string
	counters map[string]int64
	sets     map[string]map[string]struct{}
	expiry   map[string]time.Time
	down     bool

	// Now is overridable so tests can steer expiry.
	Now func() time.Time
}

// NewStub creates an empty in-memory store.
func NewStub() *Stub {
	return &Stub{
		hashes:   make(map[string]map[string]string),
		values:   make(map[string]string),
		counters: make(map[string]int64),
		sets:     make(map[string]map[string]struct{}),
		expiry:   make(map[string]time.Time),
		Now:      time.Now,
	}
}

// SetDown toggles simulated unavailability.
func (s *Stub) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

func (s *Stub) errIfDown(op string) error {
	if s.down {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	return nil
}

func (s *Stub) expired(key string) bool {
	if at, ok := s.expiry[key]; ok && s.Now().After(at) {
		delete(s.expiry, key)
		delete(s.hashes, key)
		delete(s.values, key)
		delete(s.counters, key)
		return true
	}
	return false
}

func (s *Stub) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errIfDown("ping")
}

func (s *Stub) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errIfDown("hset"); err != nil {
		return err
	}
	s.expired(key)
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	if ttl > 0 {
		s.expiry[key] = s.Now().Add(ttl)
	}
	return nil
}

func (s *Stub) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errIfDown("hgetall"); err != nil {
		return nil, err
	}
	if s.expired(key) {
		return nil, nil
	}
	h, ok := s.hashes[key]
	if !ok {
		return nil, nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (s *Stub) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errIfDown("incr"); err != nil {
		return 0, err
	}
	s.expired(key)
	s.counters[key]++
	if s.counters[key] == 1 && ttl > 0 {
		s.expiry[key] = s.Now().Add(ttl)
	}
	return s.counters[key], nil
}

func (s *Stub) GetCounter(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errIfDown("get"); err != nil {
		return 0, err
	}
	if s.expired(key) {
		return 0, nil
	}
	return s.counters[key], nil
}

func (s *Stub) SetCounter(ctx context.Context, key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errIfDown("set"); err != nil {
		return err
	}
	s.counters[key] = value
	delete(s.expiry, key)
	return nil
}

func (s *Stub) SAdd(ctx context.Context, set, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errIfDown("sadd"); err != nil {
		return err
	}
	m, ok := s.sets[set]
	if !ok {
		m = make(map[string]struct{})
		s.sets[set] = m
	}
	m[member] = struct{}{}
	return nil
}

func (s *Stub) SIsMember(ctx context.Context, set, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errIfDown("sismember"); err != nil {
		return false, err
	}
	_, ok := s.sets[set][member]
	return ok, nil
}

func (s *Stub) ReplaceSet(ctx context.Context, set string, members []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errIfDown("replace set"); err != nil {
		return err
	}
	m := make(map[string]struct{}, len(members))
	for _, member := range members {
		m[member] = struct{}{}
	}
	s.sets[set] = m
	return nil
}

func (s *Stub) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errIfDown("set"); err != nil {
		return err
	}
	s.values[key] = value
	if ttl > 0 {
		s.expiry[key] = s.Now().Add(ttl)
	} else {
		delete(s.expiry, key)
	}
	return nil
}

func (s *Stub) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errIfDown("get"); err != nil {
		return "", false, err
	}
	if s.expired(key) {
		return "", false, nil
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Stub) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errIfDown("del"); err != nil {
		return err
	}
	delete(s.hashes, key)
	delete(s.values, key)
	delete(s.counters, key)
	delete(s.expiry, key)
	return nil
}

func (s *Stub) Close() error { return nil }
