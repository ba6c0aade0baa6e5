package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/userprofile/internal/adapter/otel"
	"github.com/Strob0t/userprofile/internal/domain"
	"github.com/Strob0t/userprofile/internal/domain/photo"
	"github.com/Strob0t/userprofile/internal/port/database"
	"github.com/Strob0t/userprofile/internal/port/messagequeue"
)

// PhotoService manages stored profile photos. Photos are keyed by user; the
// bank only scopes the change event.
type PhotoService struct {
	store   database.PhotoStore
	queue   messagequeue.Queue
	metrics *cfotel.Metrics
}

// NewPhotoService creates a PhotoService.
func NewPhotoService(store database.PhotoStore) *PhotoService {
	return &PhotoService{store: store}
}

// SetQueue attaches the queue used to announce photo changes.
func (s *PhotoService) SetQueue(q messagequeue.Queue) {
	s.queue = q
}

// SetMetrics attaches metric instruments.
func (s *PhotoService) SetMetrics(m *cfotel.Metrics) {
	s.metrics = m
}

// Get returns the stored photo for a user.
func (s *PhotoService) Get(ctx context.Context, userID int64) (*photo.Photo, error) {
	return s.store.GetPhoto(ctx, userID)
}

// Upload stores a first photo for a user. An existing photo is a conflict.
func (s *PhotoService) Upload(ctx context.Context, bankID, userID int64, contentType string, data []byte) (*photo.Photo, error) {
	p, err := newPhoto(userID, contentType, data)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreatePhoto(ctx, p); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("photo for user %d: %w", userID, domain.ErrConflict)
		}
		return nil, err
	}
	slog.InfoContext(ctx, "photo uploaded", "bank_id", bankID, "user_id", userID, "bytes", len(data))
	s.publish(ctx, messagequeue.ActionCreated, bankID, userID)
	return p, nil
}

// Replace overwrites an existing photo.
func (s *PhotoService) Replace(ctx context.Context, bankID, userID int64, contentType string, data []byte) (*photo.Photo, error) {
	p, err := newPhoto(userID, contentType, data)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdatePhoto(ctx, p); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "photo replaced", "bank_id", bankID, "user_id", userID, "bytes", len(data))
	s.publish(ctx, messagequeue.ActionUpdated, bankID, userID)
	return p, nil
}

// Delete removes a user's photo.
func (s *PhotoService) Delete(ctx context.Context, bankID, userID int64) error {
	if err := s.store.DeletePhoto(ctx, userID); err != nil {
		return err
	}
	slog.InfoContext(ctx, "photo deleted", "bank_id", bankID, "user_id", userID)
	s.publish(ctx, messagequeue.ActionDeleted, bankID, userID)
	return nil
}

func newPhoto(userID int64, contentType string, data []byte) (*photo.Photo, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: photo data is empty", domain.ErrValidation)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &photo.Photo{UserID: userID, ContentType: contentType, Data: data}, nil
}

func (s *PhotoService) publish(ctx context.Context, action string, bankID, userID int64) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.PhotoChangedPayload{
		EventID:    uuid.NewString(),
		BankID:     bankID,
		UserID:     userID,
		Action:     action,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "marshal photo event", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectPhotoChanged, data); err != nil {
		slog.WarnContext(ctx, "publish photo event failed", "user_id", userID, "action", action, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.Add(ctx, 1, metric.WithAttributes(
			attribute.String("subject", messagequeue.SubjectPhotoChanged),
			attribute.String("action", action),
		))
	}
}
