package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/userprofile/internal/domain/photo"
	"github.com/Strob0t/userprofile/internal/domain/profile"
)

// ProfileService is the profile use-case surface the handlers depend on.
type ProfileService interface {
	Get(ctx context.Context, bankID, userID int64) (*profile.Profile, error)
	ListByBank(ctx context.Context, bankID int64) ([]profile.Profile, error)
	Create(ctx context.Context, bankID int64, req *profile.CreateRequest) (*profile.Profile, error)
	Update(ctx context.Context, bankID, userID int64, req *profile.UpdateRequest) (*profile.Profile, error)
	Delete(ctx context.Context, bankID, userID int64) error
}

// PhotoService is the photo blob surface the handlers depend on.
type PhotoService interface {
	Get(ctx context.Context, userID int64) (*photo.Photo, error)
	Upload(ctx context.Context, bankID, userID int64, contentType string, data []byte) (*photo.Photo, error)
	Replace(ctx context.Context, bankID, userID int64, contentType string, data []byte) (*photo.Photo, error)
	Delete(ctx context.Context, bankID, userID int64) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connectivity reports whether a long-lived connection is up.
type Connectivity interface {
	IsConnected() bool
}

// BreakerReporter exposes the photo probe's breaker state.
type BreakerReporter interface {
	BreakerState() string
}

// Handlers holds the HTTP handler dependencies. Nil services leave their
// routes unmounted; nil health dependencies are reported as "disabled".
type Handlers struct {
	Profiles    ProfileService
	Photos      PhotoService
	MaxUploadMB int64
	Version     string

	DB      Pinger
	Queue   Connectivity
	Breaker BreakerReporter
}

type apiInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// APIInfo describes the service.
func (h *Handlers) APIInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, apiInfo{
		Title:       "User Profile Service API",
		Description: "Bank-scoped user profiles with a derived has-photo flag.",
		Version:     h.Version,
	})
}

type healthStatus struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	NATS     string `json:"nats"`
	Breaker  string `json:"photo_breaker"`
}

// Health reports dependency status. An unreachable database makes the whole
// service unhealthy; a lost queue or an open breaker only degrades it.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{Status: "ok", Postgres: "disabled", NATS: "disabled", Breaker: "disabled"}
	code := http.StatusOK

	if h.DB != nil {
		status.Postgres = "ok"
		if err := h.DB.Ping(r.Context()); err != nil {
			status.Postgres = "unreachable"
			status.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	if h.Queue != nil {
		status.NATS = "ok"
		if !h.Queue.IsConnected() {
			status.NATS = "disconnected"
			if code == http.StatusOK {
				status.Status = "degraded"
			}
		}
	}
	if h.Breaker != nil {
		status.Breaker = h.Breaker.BreakerState()
		if status.Breaker == "open" && code == http.StatusOK {
			status.Status = "degraded"
		}
	}

	writeJSON(w, code, status)
}
