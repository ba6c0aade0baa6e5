// Package cache defines the port interface for caching.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching.
// Implementations must be safe for concurrent use. A miss is reported as
// found == false with a nil error; errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// TTLGetter is implemented by backends that can report how long an entry has
// left to live. remaining is zero for an entry without expiry.
type TTLGetter interface {
	GetWithTTL(ctx context.Context, key string) (data []byte, remaining time.Duration, ok bool, err error)
}
