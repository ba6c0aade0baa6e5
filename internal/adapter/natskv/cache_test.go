package natskv_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Strob0t/userprofile/internal/adapter/nats"
	"github.com/Strob0t/userprofile/internal/adapter/natskv"
	"github.com/Strob0t/userprofile/internal/port/cache/cachetest"
)

func TestNatsKVCompliance(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	ctx := context.Background()
	q, err := nats.Connect(ctx, url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })

	kv, err := q.KeyValue(ctx, "TEST_USER_PROFILES", time.Minute)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}

	cachetest.Run(t, natskv.New(kv, time.Minute), "userProfiles:7:")
}
