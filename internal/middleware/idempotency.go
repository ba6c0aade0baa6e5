package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyBody   = 1 << 20 // 1 MB
)

// ResponseStore is the subset of jetstream.KeyValue used to remember
// responses. Entry expiry is configured on the bucket.
type ResponseStore interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// idempotencyEntry stores a cached HTTP response.
type idempotencyEntry struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency returns middleware that deduplicates mutating requests
// carrying an Idempotency-Key header. Creating a profile draws a random ID,
// so a retried POST would otherwise create a second profile. Only 2xx
// responses are remembered; errors can be retried.
func Idempotency(store ResponseStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(headerIdempotencyKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			storeKey := idempotencyStoreKey(r.Method, r.URL.Path, key)

			entry, err := store.Get(r.Context(), storeKey)
			switch {
			case err == nil:
				var cached idempotencyEntry
				if err := json.Unmarshal(entry.Value(), &cached); err == nil {
					replay(w, &cached)
					return
				}
				slog.WarnContext(r.Context(), "idempotency: corrupt cache entry", "key", key)
			case !errors.Is(err, jetstream.ErrKeyNotFound):
				slog.WarnContext(r.Context(), "idempotency: lookup failed", "key", key, "error", err)
			}

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(rec, r)

			if rec.statusCode < 200 || rec.statusCode > 299 || rec.body.Len() > maxIdempotencyBody {
				return
			}
			data, err := json.Marshal(idempotencyEntry{
				StatusCode: rec.statusCode,
				Headers:    replayableHeaders(w.Header()),
				Body:       rec.body.Bytes(),
			})
			if err != nil {
				return
			}
			if _, err := store.Put(r.Context(), storeKey, data); err != nil {
				slog.WarnContext(r.Context(), "idempotency: failed to store response", "key", key, "error", err)
			}
		})
	}
}

// storedHeaders describe the response body. Per-request headers such as
// X-Request-ID or X-RateLimit-* belong to the replaying request.
var storedHeaders = []string{"Content-Type", "Location"}

func replayableHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(storedHeaders))
	for _, k := range storedHeaders {
		if vals := h.Values(k); len(vals) > 0 {
			out[k] = append([]string(nil), vals...)
		}
	}
	return out
}

func replay(w http.ResponseWriter, cached *idempotencyEntry) {
	for k, vals := range cached.Headers {
		w.Header().Del(k)
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(headerReplayed, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

// idempotencyStoreKey scopes the client key to the route and hashes it, since
// KV keys allow only a restricted character set.
func idempotencyStoreKey(method, path, key string) string {
	sum := sha256.Sum256([]byte(method + " " + path + " " + key))
	return hex.EncodeToString(sum[:])
}

// responseRecorder wraps http.ResponseWriter to capture the response.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
