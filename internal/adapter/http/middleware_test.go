package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/userprofile/internal/config"
	"github.com/Strob0t/userprofile/internal/logger"
)

func TestResponseWriterCapturesStatusAndBytes(t *testing.T) {
	inner := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: inner, status: http.StatusOK}

	rw.WriteHeader(http.StatusTeapot)
	_, _ = rw.Write([]byte("hello"))

	if rw.status != http.StatusTeapot || rw.bytes != 5 {
		t.Fatalf("expected 418/5, got %d/%d", rw.status, rw.bytes)
	}
	if rw.Unwrap() != inner {
		t.Fatal("Unwrap must return the wrapped writer")
	}
}

func TestResponseWriterFlush(t *testing.T) {
	inner := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: inner, status: http.StatusOK}

	f, ok := http.ResponseWriter(rw).(http.Flusher)
	if !ok {
		t.Fatal("responseWriter does not implement http.Flusher")
	}
	f.Flush()

	if !inner.Flushed {
		t.Fatal("expected inner ResponseRecorder to be flushed")
	}
}

func TestLoggerIncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logger.NewWithWriter(&buf, config.Logging{Level: "info", Service: "test"}))
	t.Cleanup(func() { slog.SetDefault(prev) })

	handler := Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodDelete, "/v1/banks/1/users/10001", http.NoBody)
	req = req.WithContext(logger.WithRequestID(context.Background(), "req-42"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["request_id"] != "req-42" || entry["status"] != float64(http.StatusNoContent) {
		t.Fatalf("unexpected log entry %v", entry)
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	handler := CORS("https://app.example.com")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/banks/1/users", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent || called {
		t.Fatalf("expected preflight to short-circuit with 204, got %d (called=%v)", rec.Code, called)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatal("missing allow-origin header")
	}
}
