package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Strob0t/userprofile/internal/domain/profile"
	"github.com/Strob0t/userprofile/internal/port/cache"
)

// cacheNamespace prefixes every profile key in the shared cache.
const cacheNamespace = "userProfiles:"

// ProfileCacheKey returns the cache key for one profile.
func ProfileCacheKey(bankID, userID int64) string {
	return cacheNamespace + profile.CacheKey(bankID, userID)
}

// profileCache stores JSON-encoded profiles in a cache.Cache.
// Read and write failures degrade to a miss; only eviction failures surface.
type profileCache struct {
	c   cache.Cache
	ttl time.Duration
}

func (pc *profileCache) get(ctx context.Context, bankID, userID int64) (*profile.Profile, bool) {
	key := ProfileCacheKey(bankID, userID)
	data, found, err := pc.c.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "profile cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var p profile.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		slog.WarnContext(ctx, "profile cache entry undecodable", "key", key, "error", err)
		return nil, false
	}
	return &p, true
}

func (pc *profileCache) set(ctx context.Context, p *profile.Profile) {
	key := ProfileCacheKey(p.BankID, p.ID)
	data, err := json.Marshal(p)
	if err != nil {
		slog.WarnContext(ctx, "profile cache encode failed", "key", key, "error", err)
		return
	}
	if err := pc.c.Set(ctx, key, data, pc.ttl); err != nil {
		slog.WarnContext(ctx, "profile cache write failed", "key", key, "error", err)
	}
}

func (pc *profileCache) evict(ctx context.Context, bankID, userID int64) error {
	return pc.c.Delete(ctx, ProfileCacheKey(bankID, userID))
}
