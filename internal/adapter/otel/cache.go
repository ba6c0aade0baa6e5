package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/userprofile/internal/port/cache"
)

// Cache decorates a cache.Cache with hit and miss counters.
type Cache struct {
	inner cache.Cache
	m     *Metrics
	attrs metric.MeasurementOption
}

// NewCache wraps inner. name distinguishes caches in the "cache" attribute.
func NewCache(inner cache.Cache, m *Metrics, name string) *Cache {
	return &Cache{
		inner: inner,
		m:     m,
		attrs: metric.WithAttributes(attribute.String("cache", name)),
	}
}

// Get delegates to the inner cache and counts the outcome. Errors count as
// neither a hit nor a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		c.m.CacheHits.Add(ctx, 1, c.attrs)
	} else {
		c.m.CacheMisses.Add(ctx, 1, c.attrs)
	}
	return val, found, nil
}

// Set delegates to the inner cache.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.inner.Set(ctx, key, value, ttl)
}

// Delete delegates to the inner cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, key)
}
