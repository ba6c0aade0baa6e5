// Package natskv implements the cache port using NATS JetStream KV as L2 remote cache.
package natskv

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache wraps a NATS JetStream KeyValue store as an L2 cache.
type Cache struct {
	kv  jetstream.KeyValue
	ttl time.Duration
	now func() time.Time
}

// New creates a NATS KV-backed cache. ttl must match the bucket TTL; entries
// older than ttl read as misses even if the server has not purged them yet.
// Zero disables the age check.
func New(kv jetstream.KeyValue, ttl time.Duration) *Cache {
	return &Cache{kv: kv, ttl: ttl, now: time.Now}
}

// Get retrieves a value from the NATS KV store.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	data, _, ok, err = c.GetWithTTL(ctx, key)
	return data, ok, err
}

// GetWithTTL retrieves a value and the time left until the bucket TTL
// expires it, measured from the entry's creation time.
func (c *Cache) GetWithTTL(ctx context.Context, key string) (data []byte, remaining time.Duration, ok bool, err error) {
	entry, err := c.kv.Get(ctx, kvKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}
	if c.ttl <= 0 {
		return entry.Value(), 0, true, nil
	}
	remaining = c.ttl - c.now().Sub(entry.Created())
	if remaining <= 0 {
		return nil, 0, false, nil
	}
	return entry.Value(), remaining, true, nil
}

// Set stores a value in the NATS KV store. TTL is managed at bucket level;
// the bucket is created with the profile TTL (see nats.Queue.KeyValue).
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(ctx, kvKey(key), value)
	return err
}

// Delete removes a value from the NATS KV store.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, kvKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// kvKey maps cache keys onto the KV key alphabet, which does not allow ':'.
func kvKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}
