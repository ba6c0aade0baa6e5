package main

import (
	"context"
	"fmt"
	"log/slog"

	cfnats "github.com/Strob0t/userprofile/internal/adapter/nats"
	"github.com/Strob0t/userprofile/internal/adapter/natskv"
	cfotel "github.com/Strob0t/userprofile/internal/adapter/otel"
	"github.com/Strob0t/userprofile/internal/adapter/redis"
	"github.com/Strob0t/userprofile/internal/adapter/ristretto"
	"github.com/Strob0t/userprofile/internal/adapter/tiered"
	"github.com/Strob0t/userprofile/internal/config"
	"github.com/Strob0t/userprofile/internal/port/cache"
	"github.com/Strob0t/userprofile/internal/service"
)

// profileCaches is the assembled profile cache: shared is what the service
// reads and writes, local drops entries from this process only.
type profileCaches struct {
	shared cache.Cache
	local  service.LocalEvicter
	close  func()
}

// l1Only adapts a single-level cache to service.LocalEvicter.
type l1Only struct {
	c cache.Cache
}

func (l l1Only) EvictLocal(ctx context.Context, key string) error {
	return l.c.Delete(ctx, key)
}

// buildProfileCache assembles ristretto L1 with the configured L2 backend.
// metrics may be nil.
func buildProfileCache(ctx context.Context, cfg *config.Config, queue *cfnats.Queue, metrics *cfotel.Metrics) (*profileCaches, error) {
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	closers := []func(){l1.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var l2 cache.Cache
	switch cfg.Cache.L2Backend {
	case "nats":
		kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.TTL)
		if err != nil {
			closeAll()
			return nil, err
		}
		l2 = natskv.New(kv, cfg.Cache.TTL)
	case "redis":
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = rc.Close() })
		l2 = rc
	}

	pc := &profileCaches{close: closeAll}
	if l2 == nil {
		pc.shared, pc.local = l1, l1Only{c: l1}
	} else {
		t := tiered.New(l1, l2, cfg.Cache.L1TTL)
		pc.shared, pc.local = t, t
	}
	if metrics != nil {
		pc.shared = cfotel.NewCache(pc.shared, metrics, "profile")
	}

	slog.Info("profile cache ready", "l2_backend", cfg.Cache.L2Backend, "ttl", cfg.Cache.TTL, "l1_ttl", cfg.Cache.L1TTL)
	return pc, nil
}
