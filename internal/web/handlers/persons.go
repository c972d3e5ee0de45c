package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/eventsnap/photo-finder/internal/embedding"
	"github.com/eventsnap/photo-finder/internal/profile"
)

// PersonsHandler manages registered person profiles.
type PersonsHandler struct {
	svc *Service
}

// NewPersonsHandler creates a persons handler.
func NewPersonsHandler(svc *Service) *PersonsHandler {
	return &PersonsHandler{svc: svc}
}

// List handles GET /persons.
func (h *PersonsHandler) List(w http.ResponseWriter, r *http.Request) {
	names := h.svc.Profiles.List()
	respondJSON(w, http.StatusOK, map[string]any{
		"persons": names,
		"count":   len(names),
	})
}

// Register handles POST /persons. Expects a multipart form with a "name"
// field and a "selfie" image containing exactly one face.
func (h *PersonsHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.svc.Config.MaxUploadSize()); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	file, _, err := r.FormFile("selfie")
	if err != nil {
		respondError(w, http.StatusBadRequest, "selfie image is required")
		return
	}
	defer file.Close()

	selfiePath, cleanup, err := saveUpload(file)
	if err != nil {
		log.Printf("Failed to store uploaded selfie: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to store uploaded selfie")
		return
	}
	defer cleanup()

	emb, err := embedding.SelfieEmbedding(r.Context(), h.svc.Provider, selfiePath)
	if err != nil {
		if errors.Is(err, embedding.ErrNoSingleFace) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Printf("Selfie embedding failed: %v", err)
		respondError(w, http.StatusBadGateway, "embedding service unavailable")
		return
	}

	if err := h.svc.Profiles.Register(name, emb, ""); err != nil {
		if errors.Is(err, profile.ErrInvalidName) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Failed to register person %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to register person")
		return
	}

	log.Printf("Registered person: %s", sanitizeForLog(name))
	respondJSON(w, http.StatusCreated, map[string]string{
		"name":    name,
		"message": fmt.Sprintf("Successfully registered %s", name),
	})
}

// Remove handles DELETE /persons/{name}.
func (h *PersonsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	removed, err := h.svc.Profiles.Remove(name)
	if err != nil {
		log.Printf("Failed to remove person %s: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to remove person")
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Removed %s", name),
	})
}

// saveUpload spools an uploaded file to a temp file so path-based APIs can
// read it. The returned cleanup removes the file.
func saveUpload(src io.Reader) (string, func(), error) {
	tmp, err := os.CreateTemp("", "photo-finder-upload-*.jpg")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}
