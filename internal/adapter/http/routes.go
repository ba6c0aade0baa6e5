package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteOptions wraps route groups with optional middleware. Nil fields are
// skipped.
type RouteOptions struct {
	// Idempotency deduplicates retried writes.
	Idempotency func(http.Handler) http.Handler
	// RateLimit throttles per client.
	RateLimit func(http.Handler) http.Handler
}

// MountRoutes registers all API routes on the given chi router. Profile and
// photo routes are mounted only when their service is set, so the same
// binary can run as the profile service, the photo service, or both.
func MountRoutes(r chi.Router, h *Handlers, opts RouteOptions) {
	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		if opts.RateLimit != nil {
			r.Use(opts.RateLimit)
		}

		r.Get("/", h.APIInfo)

		if h.Profiles == nil && h.Photos == nil {
			return
		}
		r.Route("/banks/{bankId}/users", func(r chi.Router) {
			if h.Profiles != nil {
				r.Get("/", h.ListProfiles)
				r.With(optional(opts.Idempotency)...).Post("/", h.CreateProfile)
				r.Get("/{userId}", h.GetProfile)
				r.Put("/{userId}", h.UpdateProfile)
				r.Delete("/{userId}", h.DeleteProfile)
			}

			if h.Photos != nil {
				r.Get("/{userId}/photo", h.GetPhoto)
				r.Head("/{userId}/photo", h.GetPhoto)
				r.With(optional(opts.Idempotency)...).Post("/{userId}/photo", h.UploadPhoto)
				r.Put("/{userId}/photo", h.ReplacePhoto)
				r.Delete("/{userId}/photo", h.DeletePhoto)
			}
		})
	})
}

func optional(mw func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	if mw == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{mw}
}
