package handlers

import (
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/eventsnap/photo-finder/internal/imaging"
)

const (
	defaultThumbSize = 256
	maxThumbSize     = 2048
)

// PhotosHandler serves photo files from the library.
type PhotosHandler struct {
	svc *Service
}

// NewPhotosHandler creates a photos handler.
func NewPhotosHandler(svc *Service) *PhotosHandler {
	return &PhotosHandler{svc: svc}
}

// Thumbnail handles GET /photos/thumb?path=<relative path>&size=<pixels>.
// Returns a JPEG resized to fit within the requested size.
func (h *PhotosHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	size := defaultThumbSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxThumbSize {
			respondError(w, http.StatusBadRequest, "invalid size")
			return
		}
		size = n
	}

	full, err := resolvePhotoPath(h.svc.PhotoDir, rel)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid photo path")
		return
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			respondError(w, http.StatusNotFound, "photo not found")
			return
		}
		log.Printf("Failed to read photo %s: %v", sanitizeForLog(rel), err)
		respondError(w, http.StatusInternalServerError, "failed to read photo")
		return
	}

	thumb, err := imaging.Thumbnail(data, size)
	if err != nil {
		log.Printf("Failed to resize photo %s: %v", sanitizeForLog(rel), err)
		respondError(w, http.StatusInternalServerError, "failed to resize photo")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(thumb)
}
