package settings

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/smsbridge/server/internal/faststore"
	"github.com/smsbridge/server/internal/repo"
)

// DefaultTTL bounds how stale a cached setting may be.
const DefaultTTL = 60 * time.Second

// Cache mirrors durable sms_settings into the fast store per key with a
// short TTL. The durable table is the source of truth; every consumer
// (onboarding, pipeline, workers) re-reads through here at the start of each
// logical operation, so a changed setting takes effect within one TTL.
type Cache struct {
	store faststore.Store
	repo  repo.SettingsRepo
	ttl   time.Duration
}

// NewCache creates a settings cache with the given TTL (DefaultTTL if <= 0).
func NewCache(store faststore.Store, settingsRepo repo.SettingsRepo, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, repo: settingsRepo, ttl: ttl}
}

// Get returns the raw string value for a key, reading the fast-store mirror
// first and falling back to the durable table on miss. The durable read
// repopulates the mirror best-effort.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	cached, ok, err := c.store.Get(ctx, faststore.SettingKey(key))
	if err == nil && ok {
		return cached, nil
	}
	if err != nil && !faststore.IsUnavailable(err) {
		return "", fmt.Errorf("read cached setting %q: %w", key, err)
	}
	// Miss, expired, or fast store down: read the source of truth.
	setting, err := c.repo.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if err := c.store.SetEx(ctx, faststore.SettingKey(key), setting.Value, c.ttl); err != nil {
		log.Printf("Settings cache: populate %q failed: %v", key, err)
	}
	return setting.Value, nil
}

// Invalidate drops the cached entry so the next read is fresh. Called after
// an administrative update.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, faststore.SettingKey(key)); err != nil {
		log.Printf("Settings cache: invalidate %q failed: %v", key, err)
	}
}

// GetString returns the value for key, or def when absent or unreadable.
func (c *Cache) GetString(ctx context.Context, key, def string) string {
	v, err := c.Get(ctx, key)
	if err != nil {
		return def
	}
	return v
}

// GetInt returns the integer value for key, or def when absent or malformed.
func (c *Cache) GetInt(ctx context.Context, key string, def int) int {
	v, err := c.Get(ctx, key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("Setting %q is not an integer (%q), using default %d", key, v, def)
		return def
	}
	return n
}

// GetBool returns the boolean value for key, or def when absent or malformed.
func (c *Cache) GetBool(ctx context.Context, key string, def bool) bool {
	v, err := c.Get(ctx, key)
	if err != nil {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		log.Printf("Setting %q is not a boolean (%q), using default %v", key, v, def)
		return def
	}
}

// GetStrings returns a comma-separated list value for key, or def.
func (c *Cache) GetStrings(ctx context.Context, key string, def []string) []string {
	v, err := c.Get(ctx, key)
	if err != nil {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// GetSeconds returns an integer-seconds setting as a Duration.
func (c *Cache) GetSeconds(ctx context.Context, key string, def time.Duration) time.Duration {
	secs := c.GetInt(ctx, key, int(def/time.Second))
	return time.Duration(secs) * time.Second
}
