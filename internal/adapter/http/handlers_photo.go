package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/Strob0t/userprofile/internal/domain/photo"
)

const (
	msgPhotoNotFound = "Photo not found"
	msgPhotoExists   = "Photo already exists"

	defaultMaxUploadMB = 5
)

type photoResponse struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"userId"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

func newPhotoResponse(p *photo.Photo) photoResponse {
	return photoResponse{ID: p.ID, UserID: p.UserID, ContentType: p.ContentType, Size: len(p.Data)}
}

// GetPhoto handles GET /v1/banks/{bankId}/users/{userId}/photo and streams
// the stored image. The status code alone answers the has-photo probe.
func (h *Handlers) GetPhoto(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := bankAndUser(w, r)
	if !ok {
		return
	}
	p, err := h.Photos.Get(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err, msgPhotoNotFound, msgPhotoExists)
		return
	}
	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(p.Data)
	}
}

// UploadPhoto handles POST .../photo with a multipart "file" field.
func (h *Handlers) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	bankID, userID, ok := bankAndUser(w, r)
	if !ok {
		return
	}
	data, contentType, ok := h.readPhotoFile(w, r)
	if !ok {
		return
	}
	p, err := h.Photos.Upload(r.Context(), bankID, userID, contentType, data)
	if err != nil {
		writeDomainError(w, r, err, msgPhotoNotFound, msgPhotoExists)
		return
	}
	writeJSON(w, http.StatusCreated, newPhotoResponse(p))
}

// ReplacePhoto handles PUT .../photo with a multipart "file" field.
func (h *Handlers) ReplacePhoto(w http.ResponseWriter, r *http.Request) {
	bankID, userID, ok := bankAndUser(w, r)
	if !ok {
		return
	}
	data, contentType, ok := h.readPhotoFile(w, r)
	if !ok {
		return
	}
	p, err := h.Photos.Replace(r.Context(), bankID, userID, contentType, data)
	if err != nil {
		writeDomainError(w, r, err, msgPhotoNotFound, msgPhotoExists)
		return
	}
	writeJSON(w, http.StatusOK, newPhotoResponse(p))
}

// DeletePhoto handles DELETE .../photo.
func (h *Handlers) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	bankID, userID, ok := bankAndUser(w, r)
	if !ok {
		return
	}
	if err := h.Photos.Delete(r.Context(), bankID, userID); err != nil {
		writeDomainError(w, r, err, msgPhotoNotFound, msgPhotoExists)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readPhotoFile reads the multipart "file" part within the upload limit.
func (h *Handlers) readPhotoFile(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	maxMB := h.MaxUploadMB
	if maxMB <= 0 {
		maxMB = defaultMaxUploadMB
	}
	limit := maxMB << 20

	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
		} else {
			writeError(w, http.StatusBadRequest, "expected multipart form")
		}
		return nil, "", false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
		return nil, "", false
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return nil, "", false
	}
	if int64(len(data)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
		return nil, "", false
	}
	return data, header.Header.Get("Content-Type"), true
}
