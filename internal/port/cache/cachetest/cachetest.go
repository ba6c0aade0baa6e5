// Package cachetest provides a compliance suite shared by cache.Cache adapters.
package cachetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/userprofile/internal/port/cache"
)

// Run runs the standard compliance test suite against any Cache
// implementation. prefix namespaces keys so the suite can share a live
// backend with other tests.
func Run(t *testing.T, c cache.Cache, prefix string) {
	t.Helper()
	ctx := context.Background()
	key := func(k string) string { return prefix + k }

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, key("compliance-key"), []byte(`{"id":10001}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, key("compliance-key"))
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != `{"id":10001}` {
			t.Fatalf("expected stored value, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, key("nonexistent-key"))
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, key("del-key"), []byte("del-val"), time.Minute)
		if err := c.Delete(ctx, key("del-key")); err != nil {
			t.Fatal(err)
		}
		_, found, err := c.Get(ctx, key("del-key"))
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, key("never-existed")); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, key("ow-key"), []byte("v1"), time.Minute)
		_ = c.Set(ctx, key("ow-key"), []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, key("ow-key"))
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})

	if tg, ok := c.(cache.TTLGetter); ok {
		t.Run("RemainingTTL", func(t *testing.T) {
			if err := c.Set(ctx, key("ttl-key"), []byte("v"), time.Minute); err != nil {
				t.Fatal(err)
			}
			val, remaining, found, err := tg.GetWithTTL(ctx, key("ttl-key"))
			if err != nil {
				t.Fatal(err)
			}
			if !found || string(val) != "v" {
				t.Fatalf("expected hit with stored value, found=%v val=%s", found, val)
			}
			if remaining <= 0 || remaining > time.Minute {
				t.Fatalf("remaining TTL %v outside (0, 1m]", remaining)
			}

			if _, _, found, err := tg.GetWithTTL(ctx, key("ttl-missing")); err != nil || found {
				t.Fatalf("expected clean miss, found=%v err=%v", found, err)
			}
		})
	}

	t.Run("ConcurrentAccess", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				k := key("conc-key")
				if i%2 == 0 {
					_ = c.Set(ctx, k, []byte("v"), time.Minute)
				} else {
					_, _, _ = c.Get(ctx, k)
				}
			}()
		}
		wg.Wait()
	})
}
