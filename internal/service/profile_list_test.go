package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/userprofile/internal/adapter/photoservice"
	"github.com/Strob0t/userprofile/internal/domain/profile"
	"github.com/Strob0t/userprofile/internal/pool"
	"github.com/Strob0t/userprofile/internal/resilience"
)

func bankProfiles(bankID int64, ids ...int64) []profile.Profile {
	out := make([]profile.Profile, len(ids))
	for i, id := range ids {
		out[i] = profile.Profile{ID: id, BankID: bankID, FirstName: "F", LastName: "L"}
	}
	return out
}

func TestListByBank_PreservesOrderAndFlags(t *testing.T) {
	store := newMockStore(append(bankProfiles(7, 10003, 10001, 10002), bankProfiles(8, 10004)...)...)
	// Later items answer first.
	prober := &fakeProber{
		present: map[int64]bool{10001: true, 10003: true},
		delay:   map[int64]time.Duration{10001: 30 * time.Millisecond, 10002: 15 * time.Millisecond},
	}
	c := newMemCache()
	svc := newTestProfileService(store, c, prober)

	got, err := svc.ListByBank(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListByBank: %v", err)
	}

	want := []struct {
		id   int64
		flag profile.PhotoFlag
	}{{10001, profile.PhotoYes}, {10002, profile.PhotoNo}, {10003, profile.PhotoYes}}
	if len(got) != len(want) {
		t.Fatalf("expected %d profiles, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].ID != w.id || got[i].HasProfilePhoto != w.flag {
			t.Errorf("item %d: expected %d/%s, got %d/%s", i, w.id, w.flag, got[i].ID, got[i].HasProfilePhoto)
		}
	}
	if c.setCount() != 0 {
		t.Fatal("list results must not be cached")
	}
}

func TestListByBank_EmptyBank(t *testing.T) {
	prober := &fakeProber{}
	svc := newTestProfileService(newMockStore(bankProfiles(8, 10001)...), newMemCache(), prober)

	got, err := svc.ListByBank(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListByBank: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if prober.calls.Load() != 0 {
		t.Fatal("empty bank must not probe")
	}
}

func TestListByBank_DeadlineFallsBackToNo(t *testing.T) {
	store := newMockStore(bankProfiles(7, 10001, 10002, 10003)...)
	prober := &fakeProber{
		present: map[int64]bool{10001: true, 10002: true, 10003: true},
		delay:   map[int64]time.Duration{10002: 5 * time.Second},
	}
	svc := NewProfileService(store, newMemCache(), prober, pool.New(4), testTTL, 100*time.Millisecond)

	start := time.Now()
	got, err := svc.ListByBank(context.Background(), 7)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("ListByBank: %v", err)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("list not bounded by deadline, took %v", elapsed)
	}

	flags := []profile.PhotoFlag{got[0].HasProfilePhoto, got[1].HasProfilePhoto, got[2].HasProfilePhoto}
	want := []profile.PhotoFlag{profile.PhotoYes, profile.PhotoNo, profile.PhotoYes}
	for i := range want {
		if flags[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, flags)
		}
	}
}

func TestListByBank_BoundedByPool(t *testing.T) {
	ids := make([]int64, 20)
	delay := map[int64]time.Duration{}
	for i := range ids {
		ids[i] = profile.MinID + int64(i)
		delay[ids[i]] = 10 * time.Millisecond
	}
	prober := &fakeProber{delay: delay}
	svc := NewProfileService(newMockStore(bankProfiles(7, ids...)...), newMemCache(), prober, pool.New(3), testTTL, 5*time.Second)

	got, err := svc.ListByBank(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListByBank: %v", err)
	}
	if len(got) != 20 || prober.calls.Load() != 20 {
		t.Fatalf("expected 20 results and probes, got %d and %d", len(got), prober.calls.Load())
	}
	if prober.maxInFlight.Load() > 3 {
		t.Fatalf("expected at most 3 concurrent probes, got %d", prober.maxInFlight.Load())
	}
}

func TestListByBank_StoreError(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("db down")
	svc := newTestProfileService(store, newMemCache(), &fakeProber{})
	if _, err := svc.ListByBank(context.Background(), 7); err == nil {
		t.Fatal("expected store error")
	}
}

func TestListByBank_SlowPhotoServiceTimesOutOneItem(t *testing.T) {
	// 10002 hangs past the probe timeout; 10001 and 10003 have photos,
	// 10004 has none.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/10002/photo"):
			select {
			case <-time.After(5 * time.Second):
			case <-r.Context().Done():
			}
		case strings.HasSuffix(r.URL.Path, "/users/10004/photo"):
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	const probeTimeout = 150 * time.Millisecond
	breaker := resilience.NewBreaker(photoservice.BreakerName, resilience.BreakerConfig{
		WindowSize:   100,
		MinCalls:     100,
		FailureRatio: 0.5,
		CoolDown:     time.Minute,
		IsFailure:    photoservice.IsBreakerFailure,
	})
	prober := photoservice.NewClient(srv.URL, probeTimeout, breaker)

	const deadline = 2 * time.Second
	store := newMockStore(bankProfiles(7, 10001, 10002, 10003, 10004)...)
	svc := NewProfileService(store, newMemCache(), prober, pool.New(4), testTTL, deadline)

	start := time.Now()
	got, err := svc.ListByBank(context.Background(), 7)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("ListByBank: %v", err)
	}
	if elapsed > probeTimeout+time.Second {
		t.Fatalf("list should finish shortly after the probe timeout, took %v", elapsed)
	}

	want := []struct {
		id   int64
		flag profile.PhotoFlag
	}{
		{10001, profile.PhotoYes},
		{10002, profile.PhotoNo},
		{10003, profile.PhotoYes},
		{10004, profile.PhotoNo},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d profiles, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].ID != w.id || got[i].HasProfilePhoto != w.flag {
			t.Errorf("item %d: expected %d/%s, got %d/%s", i, w.id, w.flag, got[i].ID, got[i].HasProfilePhoto)
		}
	}
}

func TestListByBank_DeadlineWarningReportsPoolLimit(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	prober := &fakeProber{delay: map[int64]time.Duration{10001: 5 * time.Second}}
	svc := NewProfileService(newMockStore(bankProfiles(7, 10001)...), newMemCache(), prober, pool.New(2), testTTL, 50*time.Millisecond)

	if _, err := svc.ListByBank(context.Background(), 7); err != nil {
		t.Fatalf("ListByBank: %v", err)
	}

	var rec struct {
		Msg         string `json:"msg"`
		Pending     int    `json:"pending"`
		MaxParallel int    `json:"max_parallel"`
	}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if err := json.Unmarshal(line, &rec); err == nil && rec.Msg == "list enrichment deadline reached" {
			break
		}
		rec.Msg = ""
	}
	if rec.Msg == "" {
		t.Fatalf("expected a deadline warning, got %s", buf.String())
	}
	if rec.Pending != 1 || rec.MaxParallel != 2 {
		t.Fatalf("expected pending=1 max_parallel=2, got %+v", rec)
	}
}
