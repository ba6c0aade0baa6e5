// Package service implements business logic on top of ports.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/userprofile/internal/adapter/otel"
	"github.com/Strob0t/userprofile/internal/domain"
	"github.com/Strob0t/userprofile/internal/domain/photo"
	"github.com/Strob0t/userprofile/internal/domain/profile"
	"github.com/Strob0t/userprofile/internal/pool"
	"github.com/Strob0t/userprofile/internal/port/cache"
	"github.com/Strob0t/userprofile/internal/port/database"
	"github.com/Strob0t/userprofile/internal/port/messagequeue"
)

// PhotoProber resolves whether a user has a profile photo. Implementations
// never fail; an unknown answer is reported as photo.Absent.
type PhotoProber interface {
	HasPhoto(ctx context.Context, bankID, userID int64) photo.Status
}

// ProfileService handles profile reads, writes and bulk listing.
type ProfileService struct {
	store    database.ProfileStore
	cache    *profileCache
	prober   PhotoProber
	pool     *pool.Pool
	deadline time.Duration
	queue    messagequeue.Queue
	metrics  *cfotel.Metrics
	newID    func() int64
}

// NewProfileService creates a ProfileService. cacheTTL is the lifetime of a
// point-read entry; listDeadline bounds a whole ListByBank enrichment.
func NewProfileService(store database.ProfileStore, c cache.Cache, prober PhotoProber, p *pool.Pool, cacheTTL, listDeadline time.Duration) *ProfileService {
	return &ProfileService{
		store:    store,
		cache:    &profileCache{c: c, ttl: cacheTTL},
		prober:   prober,
		pool:     p,
		deadline: listDeadline,
		newID:    randomID,
	}
}

// SetQueue attaches the queue used to announce profile changes.
func (s *ProfileService) SetQueue(q messagequeue.Queue) {
	s.queue = q
}

// SetMetrics attaches metric instruments.
func (s *ProfileService) SetMetrics(m *cfotel.Metrics) {
	s.metrics = m
}

// randomID draws an ID uniformly from [profile.MinID, math.MaxInt64).
func randomID() int64 {
	return profile.MinID + rand.Int64N(math.MaxInt64-profile.MinID)
}

// Get returns a profile using cache-aside. A cache hit is returned as stored,
// without consulting the photo service.
func (s *ProfileService) Get(ctx context.Context, bankID, userID int64) (*profile.Profile, error) {
	ctx, span := cfotel.StartProfileSpan(ctx, "get", bankID, userID)
	defer span.End()

	if p, ok := s.cache.get(ctx, bankID, userID); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return p, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	p, err := s.store.GetProfile(ctx, bankID, userID)
	if err != nil {
		return nil, err
	}

	p.HasProfilePhoto = s.prober.HasPhoto(ctx, bankID, userID).Flag()
	if ctx.Err() != nil {
		// The flag may be the probe's fallback for a caller that gave up,
		// not an answer from the photo service.
		slog.DebugContext(ctx, "skipping cache write for canceled read", "bank_id", bankID, "user_id", userID)
		return p, nil
	}
	s.cache.set(ctx, p)
	return p, nil
}

// Create validates req and stores a new profile under a fresh random ID.
// The photo flag starts at "No"; the cache is not touched.
func (s *ProfileService) Create(ctx context.Context, bankID int64, req *profile.CreateRequest) (*profile.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := cfotel.StartProfileSpan(ctx, "create", bankID, 0)
	defer span.End()

	p := &profile.Profile{
		BankID:          bankID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		HasProfilePhoto: profile.PhotoNo,
	}
	for {
		id, err := s.unusedID(ctx)
		if err != nil {
			return nil, err
		}
		p.ID = id

		err = s.store.CreateProfile(ctx, p)
		if errors.Is(err, database.ErrIDTaken) {
			slog.DebugContext(ctx, "profile id taken concurrently, retrying", "id", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		break
	}
	span.SetAttributes(attribute.Int64("user.id", p.ID))

	slog.InfoContext(ctx, "profile created", "bank_id", bankID, "user_id", p.ID)
	s.publish(ctx, messagequeue.ActionCreated, bankID, p.ID)
	return p, nil
}

// unusedID draws random IDs until one is not taken. It only stops early if
// ctx is done.
func (s *ProfileService) unusedID(ctx context.Context) (int64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("draw profile id: %w", err)
		}
		id := s.newID()
		exists, err := s.store.ProfileExists(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("draw profile id: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
}

// Update overwrites the mutable fields of an existing profile and evicts its
// cache entry. The returned photo flag is the "No" seed; the next read
// recomputes it.
func (s *ProfileService) Update(ctx context.Context, bankID, userID int64, req *profile.UpdateRequest) (*profile.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := cfotel.StartProfileSpan(ctx, "update", bankID, userID)
	defer span.End()

	p, err := s.store.GetProfile(ctx, bankID, userID)
	if err != nil {
		return nil, err
	}

	p.FirstName = req.FirstName
	p.LastName = req.LastName
	p.Email = req.Email
	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}

	if err := s.cache.evict(ctx, bankID, userID); err != nil {
		return nil, fmt.Errorf("evict profile %d:%d: %w", bankID, userID, err)
	}
	p.HasProfilePhoto = profile.PhotoNo

	slog.InfoContext(ctx, "profile updated", "bank_id", bankID, "user_id", userID)
	s.publish(ctx, messagequeue.ActionUpdated, bankID, userID)
	return p, nil
}

// Delete removes a profile and evicts its cache entry. Deleting a missing
// profile is a no-op.
func (s *ProfileService) Delete(ctx context.Context, bankID, userID int64) error {
	ctx, span := cfotel.StartProfileSpan(ctx, "delete", bankID, userID)
	defer span.End()

	err := s.store.DeleteProfile(ctx, bankID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.cache.evict(ctx, bankID, userID); err != nil {
		return fmt.Errorf("evict profile %d:%d: %w", bankID, userID, err)
	}

	slog.InfoContext(ctx, "profile deleted", "bank_id", bankID, "user_id", userID)
	s.publish(ctx, messagequeue.ActionDeleted, bankID, userID)
	return nil
}

// Evict drops a cached profile without touching the store. Peers drop
// their local copy when they see the event.
func (s *ProfileService) Evict(ctx context.Context, bankID, userID int64) error {
	if err := s.cache.evict(ctx, bankID, userID); err != nil {
		return fmt.Errorf("evict profile %d:%d: %w", bankID, userID, err)
	}
	s.publish(ctx, messagequeue.ActionEvicted, bankID, userID)
	return nil
}

// publish announces a completed mutation. Failures are logged only: the
// write and its eviction have already succeeded.
func (s *ProfileService) publish(ctx context.Context, action string, bankID, userID int64) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.ProfileChangedPayload{
		EventID:    uuid.NewString(),
		BankID:     bankID,
		UserID:     userID,
		Action:     action,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "marshal profile event", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectProfileChanged, data); err != nil {
		slog.WarnContext(ctx, "publish profile event failed", "bank_id", bankID, "user_id", userID, "action", action, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.Add(ctx, 1, metric.WithAttributes(
			attribute.String("subject", messagequeue.SubjectProfileChanged),
			attribute.String("action", action),
		))
	}
}
