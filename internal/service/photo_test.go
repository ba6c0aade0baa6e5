package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Strob0t/userprofile/internal/domain"
	"github.com/Strob0t/userprofile/internal/port/messagequeue"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestPhotoService_Lifecycle(t *testing.T) {
	store := newMockStore()
	q := newFakeQueue()
	svc := NewPhotoService(store)
	svc.SetQueue(q)
	ctx := context.Background()

	p, err := svc.Upload(ctx, 7, 10001, "", pngBytes)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if p.ContentType != "image/png" {
		t.Fatalf("expected detected image/png, got %q", p.ContentType)
	}

	if _, err := svc.Upload(ctx, 7, 10001, "image/png", pngBytes); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on second upload, got %v", err)
	}

	if _, err := svc.Replace(ctx, 7, 10001, "image/jpeg", []byte{0xFF, 0xD8, 0xFF}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, err := svc.Get(ctx, 10001)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ContentType != "image/jpeg" {
		t.Fatalf("expected replaced photo, got %q", got.ContentType)
	}

	if err := svc.Delete(ctx, 7, 10001); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, 10001); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	msgs := q.messages()
	wantActions := []string{messagequeue.ActionCreated, messagequeue.ActionUpdated, messagequeue.ActionDeleted}
	if len(msgs) != len(wantActions) {
		t.Fatalf("expected %d events, got %d", len(wantActions), len(msgs))
	}
	for i, m := range msgs {
		var payload messagequeue.PhotoChangedPayload
		if err := json.Unmarshal(m.data, &payload); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if m.subject != messagequeue.SubjectPhotoChanged || payload.Action != wantActions[i] || payload.BankID != 7 {
			t.Errorf("event %d: unexpected %s %+v", i, m.subject, payload)
		}
	}
}

func TestPhotoService_Errors(t *testing.T) {
	svc := NewPhotoService(newMockStore())
	ctx := context.Background()

	if _, err := svc.Upload(ctx, 7, 10001, "image/png", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty data, got %v", err)
	}
	if _, err := svc.Replace(ctx, 7, 10001, "image/png", pngBytes); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound replacing a missing photo, got %v", err)
	}
	if err := svc.Delete(ctx, 7, 10001); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting a missing photo, got %v", err)
	}
}
