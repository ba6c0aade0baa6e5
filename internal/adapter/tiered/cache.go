// Package tiered implements a two-level (L1 + L2) cache adapter.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/userprofile/internal/port/cache"
)

// Cache combines an L1 (in-process) and L2 (shared) cache.
// Get checks L1 first, then L2 (backfilling L1 on L2 hit).
// Set and Delete operate on both levels. L1 entries never outlive l1TTL, which
// bounds how long a peer's write can stay invisible here if its change event
// is lost.
type Cache struct {
	l1    cache.Cache
	l2    cache.Cache
	l1TTL time.Duration
}

// New creates a tiered cache with the given L1 and L2 backends.
func New(l1, l2 cache.Cache, l1TTL time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1TTL: l1TTL}
}

// Get checks L1, then L2. On L2 hit, backfills L1 for no longer than the
// L2 entry has left, so the copy never outlives the shared one.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, remaining, found, err := c.getL2(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	if err := c.l1.Set(ctx, key, val, c.localTTL(remaining)); err != nil {
		slog.Warn("l1 backfill failed", "key", key, "error", err)
	}
	return val, true, nil
}

// Set writes to L2 first, then L1, so that L1 never holds a value the
// shared tier rejected.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.l1.Set(ctx, key, value, c.localTTL(ttl))
}

// Delete removes from both L1 and L2. L1 is always cleared, even when L2
// fails.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return err
	}
	return c.l2.Delete(ctx, key)
}

// EvictLocal removes key from L1 only. Used when a peer instance reports a
// write it has already evicted from L2.
func (c *Cache) EvictLocal(ctx context.Context, key string) error {
	return c.l1.Delete(ctx, key)
}

// getL2 reads from L2 with the entry's remaining lifetime when the backend
// can report it. Zero remaining means unknown or no expiry.
func (c *Cache) getL2(ctx context.Context, key string) ([]byte, time.Duration, bool, error) {
	if tg, ok := c.l2.(cache.TTLGetter); ok {
		return tg.GetWithTTL(ctx, key)
	}
	val, found, err := c.l2.Get(ctx, key)
	return val, 0, found, err
}

func (c *Cache) localTTL(ttl time.Duration) time.Duration {
	if c.l1TTL > 0 && (ttl <= 0 || c.l1TTL < ttl) {
		return c.l1TTL
	}
	return ttl
}
