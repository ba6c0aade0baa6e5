package http

import (
	"net/http"

	"github.com/Strob0t/userprofile/internal/domain/profile"
)

const (
	msgProfileNotFound = "profile not found"
	msgEmailTaken      = "email already registered"
)

// ListProfiles handles GET /v1/banks/{bankId}/users.
func (h *Handlers) ListProfiles(w http.ResponseWriter, r *http.Request) {
	bankID, ok := idParam(w, r, "bankId")
	if !ok {
		return
	}
	profiles, err := h.Profiles.ListByBank(r.Context(), bankID)
	if err != nil {
		writeDomainError(w, r, err, msgProfileNotFound, msgEmailTaken)
		return
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

// CreateProfile handles POST /v1/banks/{bankId}/users.
func (h *Handlers) CreateProfile(w http.ResponseWriter, r *http.Request) {
	bankID, ok := idParam(w, r, "bankId")
	if !ok {
		return
	}
	req, ok := readJSON[profile.CreateRequest](w, r)
	if !ok {
		return
	}
	p, err := h.Profiles.Create(r.Context(), bankID, &req)
	if err != nil {
		writeDomainError(w, r, err, msgProfileNotFound, msgEmailTaken)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetProfile handles GET /v1/banks/{bankId}/users/{userId}.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	bankID, userID, ok := bankAndUser(w, r)
	if !ok {
		return
	}
	p, err := h.Profiles.Get(r.Context(), bankID, userID)
	if err != nil {
		writeDomainError(w, r, err, msgProfileNotFound, msgEmailTaken)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProfile handles PUT /v1/banks/{bankId}/users/{userId}.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	bankID, userID, ok := bankAndUser(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[profile.UpdateRequest](w, r)
	if !ok {
		return
	}
	p, err := h.Profiles.Update(r.Context(), bankID, userID, &req)
	if err != nil {
		writeDomainError(w, r, err, msgProfileNotFound, msgEmailTaken)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProfile handles DELETE /v1/banks/{bankId}/users/{userId}.
// Deleting a missing profile also answers 204.
func (h *Handlers) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	bankID, userID, ok := bankAndUser(w, r)
	if !ok {
		return
	}
	if err := h.Profiles.Delete(r.Context(), bankID, userID); err != nil {
		writeDomainError(w, r, err, msgProfileNotFound, msgEmailTaken)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
