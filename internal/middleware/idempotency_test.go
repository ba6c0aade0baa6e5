package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/userprofile/internal/middleware"
)

// mockKV is an in-memory middleware.ResponseStore.
type mockKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMockKV() *mockKV {
	return &mockKV{data: make(map[string][]byte)}
}

func (m *mockKV) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return &mockEntry{key: key, value: v}, nil
}

func (m *mockKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return 1, nil
}

func (m *mockKV) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// mockEntry implements jetstream.KeyValueEntry.
type mockEntry struct {
	key   string
	value []byte
}

func (e *mockEntry) Bucket() string                  { return "test" }
func (e *mockEntry) Key() string                     { return e.key }
func (e *mockEntry) Value() []byte                   { return e.value }
func (e *mockEntry) Revision() uint64                { return 1 }
func (e *mockEntry) Created() time.Time              { return time.Time{} }
func (e *mockEntry) Delta() uint64                   { return 0 }
func (e *mockEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

func countingHandler(counter *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*counter++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, *counter)
	})
}

func post(h http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_NoHeader(t *testing.T) {
	counter := 0
	kv := newMockKV()
	handler := middleware.Idempotency(kv)(countingHandler(&counter, http.StatusOK))

	post(handler, "/v1/banks/1/users", "")
	post(handler, "/v1/banks/1/users", "")

	if counter != 2 {
		t.Fatalf("expected 2 calls, got %d", counter)
	}
	if kv.len() != 0 {
		t.Fatal("nothing must be stored without a key")
	}
}

func TestIdempotency_SecondRequestReplays(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(newMockKV())(countingHandler(&counter, http.StatusOK))

	rec1 := post(handler, "/v1/banks/1/users", "key-1")
	rec2 := post(handler, "/v1/banks/1/users", "key-1")

	if counter != 1 {
		t.Fatalf("expected handler called once, got %d", counter)
	}
	if rec2.Code != http.StatusOK || rec2.Body.String() != rec1.Body.String() {
		t.Fatalf("expected replay of %q, got %d %q", rec1.Body.String(), rec2.Code, rec2.Body.String())
	}
	if rec2.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replay marker header")
	}
	if rec2.Header().Get("Content-Type") != "application/json" {
		t.Fatal("expected stored headers to be replayed")
	}
}

func TestIdempotency_KeyScopedToRoute(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(newMockKV())(countingHandler(&counter, http.StatusOK))

	post(handler, "/v1/banks/1/users", "same")
	post(handler, "/v1/banks/2/users", "same")

	if counter != 2 {
		t.Fatalf("expected one call per route, got %d", counter)
	}
}

func TestIdempotency_ErrorsNotRemembered(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(newMockKV())(countingHandler(&counter, http.StatusBadRequest))

	post(handler, "/v1/banks/1/users", "key-err")
	post(handler, "/v1/banks/1/users", "key-err")

	if counter != 2 {
		t.Fatalf("expected failed request to be retried, got %d calls", counter)
	}
}

func TestIdempotency_GETIgnored(t *testing.T) {
	counter := 0
	kv := newMockKV()
	handler := middleware.Idempotency(kv)(countingHandler(&counter, http.StatusOK))

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/v1/banks/1/users", http.NoBody)
		req.Header.Set("Idempotency-Key", "key-get")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if counter != 2 || kv.len() != 0 {
		t.Fatalf("expected GET to bypass idempotency, got %d calls and %d entries", counter, kv.len())
	}
}

func TestIdempotency_StoreFailureFallsThrough(t *testing.T) {
	counter := 0
	kv := newMockKV()
	kv.getErr = errors.New("kv unavailable")
	handler := middleware.Idempotency(kv)(countingHandler(&counter, http.StatusOK))

	if rec := post(handler, "/v1/banks/1/users", "key-x"); rec.Code != http.StatusOK {
		t.Fatalf("expected request to be served, got %d", rec.Code)
	}
	if counter != 1 {
		t.Fatalf("expected handler call, got %d", counter)
	}
}

func TestIdempotency_ReplayKeepsCurrentRequestHeaders(t *testing.T) {
	counter := 0
	inner := middleware.Idempotency(newMockKV())(countingHandler(&counter, http.StatusOK))

	// Outer middleware stamps per-request headers before the response is
	// recorded, the way request id and rate limiting do.
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-Request-ID", fmt.Sprintf("req-%d", calls))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", 10-calls))
		inner.ServeHTTP(w, r)
	})

	post(handler, "/v1/banks/1/users", "key-hdr")
	rec := post(handler, "/v1/banks/1/users", "key-hdr")

	if counter != 1 {
		t.Fatalf("expected one handler call, got %d", counter)
	}
	if got := rec.Header().Values("X-Request-ID"); len(got) != 1 || got[0] != "req-2" {
		t.Fatalf("expected only the replaying request id, got %v", got)
	}
	if got := rec.Header().Values("X-RateLimit-Remaining"); len(got) != 1 || got[0] != "8" {
		t.Fatalf("expected current rate limit header only, got %v", got)
	}
	if got := rec.Header().Values("Content-Type"); len(got) != 1 || got[0] != "application/json" {
		t.Fatalf("expected one stored Content-Type, got %v", got)
	}
}
