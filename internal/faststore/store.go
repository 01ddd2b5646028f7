package faststore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks a fast-store connectivity failure. Callers use it to
// trigger the power-down fallback instead of retrying indefinitely; it must
// never be conflated with a validation failure.
var ErrUnavailable = errors.New("fast store unavailable")

// IsUnavailable reports whether err is a fast-store connectivity failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Store defines the fast-store operations used on the hot path. All calls
// are bounded-latency network operations; implementations surface
// connectivity failures as ErrUnavailable.
type Store interface {
	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// HSet writes all fields of a keyed hash. A positive ttl sets expiry on
	// the whole key.
	HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	// HGetAll reads a keyed hash. Returns (nil, nil) when the key is absent
	// or expired.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// IncrWithTTL atomically increments a counter, setting ttl only when the
	// increment created the key. ttl <= 0 leaves the key persistent.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// GetCounter reads a counter value; absent keys read as 0.
	GetCounter(ctx context.Context, key string) (int64, error)
	// SetCounter overwrites a counter value (no expiry).
	SetCounter(ctx context.Context, key string, value int64) error

	// SAdd adds a member to a set.
	SAdd(ctx context.Context, set, member string) error
	// SIsMember reports set membership.
	SIsMember(ctx context.Context, set, member string) (bool, error)
	// ReplaceSet atomically replaces the whole set with the given members.
	ReplaceSet(ctx context.Context, set string, members []string) error

	// SetEx writes a plain value with expiry (ttl <= 0 means no expiry).
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	// Get reads a plain value; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	Close() error
}
