package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Strob0t/userprofile/internal/port/cache"
	"github.com/Strob0t/userprofile/internal/port/messagequeue"
)

// LocalEvicter drops a key from the process-local cache level only.
type LocalEvicter interface {
	EvictLocal(ctx context.Context, key string) error
}

// InvalidationSubscriber keeps caches coherent across replicas. Profile
// changes were already evicted from the shared level by the writer, so only
// the local level is dropped here. Photo changes alter the derived flag,
// which no writer evicts, so both levels are dropped.
type InvalidationSubscriber struct {
	queue  messagequeue.Queue
	local  LocalEvicter
	shared cache.Cache
	cancel []func()
}

// NewInvalidationSubscriber creates a subscriber. local may be nil when the
// service runs without a local cache level.
func NewInvalidationSubscriber(q messagequeue.Queue, shared cache.Cache, local LocalEvicter) *InvalidationSubscriber {
	return &InvalidationSubscriber{queue: q, local: local, shared: shared}
}

// Start subscribes to profile and photo change events.
func (s *InvalidationSubscriber) Start(ctx context.Context) error {
	subs := []struct {
		subject string
		handler messagequeue.Handler
	}{
		{messagequeue.SubjectProfileChanged, s.handleProfileChanged},
		{messagequeue.SubjectPhotoChanged, s.handlePhotoChanged},
	}
	for _, sub := range subs {
		cancel, err := s.queue.Subscribe(ctx, sub.subject, sub.handler)
		if err != nil {
			s.Stop()
			return fmt.Errorf("subscribe %s: %w", sub.subject, err)
		}
		s.cancel = append(s.cancel, cancel)
	}
	slog.Info("cache invalidation subscriber started")
	return nil
}

// Stop cancels all subscriptions.
func (s *InvalidationSubscriber) Stop() {
	for _, c := range s.cancel {
		c()
	}
	s.cancel = nil
}

func (s *InvalidationSubscriber) handleProfileChanged(ctx context.Context, _ string, data []byte) error {
	if s.local == nil {
		return nil
	}
	var p messagequeue.ProfileChangedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal profile event: %w", err)
	}
	if err := s.local.EvictLocal(ctx, ProfileCacheKey(p.BankID, p.UserID)); err != nil {
		return fmt.Errorf("evict local %d:%d: %w", p.BankID, p.UserID, err)
	}
	slog.DebugContext(ctx, "local profile entry evicted", "bank_id", p.BankID, "user_id", p.UserID, "action", p.Action)
	return nil
}

func (s *InvalidationSubscriber) handlePhotoChanged(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.PhotoChangedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("unmarshal photo event: %w", err)
	}
	if err := s.shared.Delete(ctx, ProfileCacheKey(p.BankID, p.UserID)); err != nil {
		return fmt.Errorf("evict %d:%d: %w", p.BankID, p.UserID, err)
	}
	slog.DebugContext(ctx, "profile entry evicted after photo change", "bank_id", p.BankID, "user_id", p.UserID, "action", p.Action)
	return nil
}
