package handlers

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/eventsnap/photo-finder/internal/embedding"
	"github.com/eventsnap/photo-finder/internal/profile"
	"github.com/eventsnap/photo-finder/internal/retrieval"
)

// SearchHandler answers retrieval queries against the loaded indexes.
type SearchHandler struct {
	svc *Service
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(svc *Service) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// personSearchRequest is the JSON body for identity searches.
type personSearchRequest struct {
	Name          string   `json:"name"`
	Threshold     *float64 `json:"threshold,omitempty"`
	MaxCandidates int      `json:"max_candidates,omitempty"`
}

// textSearchRequest is the JSON body for free-text searches.
type textSearchRequest struct {
	Query         string   `json:"query"`
	Threshold     *float64 `json:"threshold,omitempty"`
	MaxCandidates int      `json:"max_candidates,omitempty"`
	Translate     bool     `json:"translate,omitempty"`
}

// ByPerson handles POST /search/person. Accepts either a JSON body naming a
// registered person, or a multipart form with a "selfie" image for one-off
// searches.
func (h *SearchHandler) ByPerson(w http.ResponseWriter, r *http.Request) {
	if h.svc.FaceEngine == nil {
		respondError(w, http.StatusServiceUnavailable, "face index is not built")
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.bySelfie(w, r)
		return
	}

	var req personSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	p, err := h.svc.Profiles.Lookup(req.Name)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("person not registered: %s", req.Name))
			return
		}
		log.Printf("Profile lookup failed for %s: %v", sanitizeForLog(req.Name), err)
		respondError(w, http.StatusInternalServerError, "profile lookup failed")
		return
	}

	result, err := h.svc.FaceEngine.FindPhotosByEmbedding(
		p.Embedding,
		h.svc.faceThreshold(req.Threshold),
		h.svc.maxCandidates(req.MaxCandidates),
		p.Name,
	)
	if err != nil {
		log.Printf("Person search failed: %v", err)
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// bySelfie runs an identity search from an uploaded selfie without
// registering a profile.
func (h *SearchHandler) bySelfie(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.svc.Config.MaxUploadSize()); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
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

	threshold := h.svc.Config.Defaults.Search.FaceThreshold
	result, err := h.svc.FaceEngine.FindPhotosByEmbedding(
		emb, threshold, h.svc.Config.Defaults.Search.MaxCandidates, "",
	)
	if err != nil {
		log.Printf("Selfie search failed: %v", err)
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ByText handles POST /search/text.
func (h *SearchHandler) ByText(w http.ResponseWriter, r *http.Request) {
	if h.svc.TextEngine == nil {
		respondError(w, http.StatusServiceUnavailable, "full-image index is not built")
		return
	}

	var req textSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	query := req.Query
	if req.Translate && h.svc.Translator != nil {
		translated, err := h.svc.Translator.Translate(r.Context(), query)
		if err != nil {
			// Translation is best-effort; fall back to the raw query.
			log.Printf("Query translation failed: %v", err)
		} else {
			query = translated.Text
		}
	}

	vec, err := h.svc.Provider.EmbedText(r.Context(), query)
	if err != nil {
		log.Printf("Text embedding failed: %v", err)
		respondError(w, http.StatusBadGateway, "embedding service unavailable")
		return
	}

	result, err := h.svc.TextEngine.FindPhotosByText(
		vec, req.Query,
		h.svc.textThreshold(req.Threshold),
		h.svc.maxCandidates(req.MaxCandidates),
	)
	if err != nil {
		log.Printf("Text search failed: %v", err)
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// downloadRequest is the JSON body for ZIP downloads of search results.
type downloadRequest struct {
	personSearchRequest
	Query string `json:"query"`
}

// Download handles POST /search/download. Runs the search and streams the
// matched photos as a ZIP archive.
func (h *SearchHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	var result *retrieval.QueryResult
	switch {
	case req.Name != "":
		if h.svc.FaceEngine == nil {
			respondError(w, http.StatusServiceUnavailable, "face index is not built")
			return
		}
		p, err := h.svc.Profiles.Lookup(req.Name)
		if err != nil {
			respondError(w, http.StatusNotFound, fmt.Sprintf("person not registered: %s", req.Name))
			return
		}
		result, err = h.svc.FaceEngine.FindPhotosByEmbedding(
			p.Embedding, h.svc.faceThreshold(req.Threshold), h.svc.maxCandidates(req.MaxCandidates), p.Name,
		)
		if err != nil {
			log.Printf("Person search failed: %v", err)
			respondError(w, http.StatusInternalServerError, "search failed")
			return
		}
	case req.Query != "":
		if h.svc.TextEngine == nil {
			respondError(w, http.StatusServiceUnavailable, "full-image index is not built")
			return
		}
		vec, err := h.svc.Provider.EmbedText(r.Context(), req.Query)
		if err != nil {
			respondError(w, http.StatusBadGateway, "embedding service unavailable")
			return
		}
		result, err = h.svc.TextEngine.FindPhotosByText(
			vec, req.Query, h.svc.textThreshold(req.Threshold), h.svc.maxCandidates(req.MaxCandidates),
		)
		if err != nil {
			log.Printf("Text search failed: %v", err)
			respondError(w, http.StatusInternalServerError, "search failed")
			return
		}
	default:
		respondError(w, http.StatusBadRequest, "either name or query is required")
		return
	}

	if !result.Success || len(result.Matches) == 0 {
		respondError(w, http.StatusNotFound, "no matching photos")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="photos.zip"`)
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	defer zw.Close()

	for _, match := range result.Matches {
		full, err := resolvePhotoPath(h.svc.PhotoDir, match.ImagePath)
		if err != nil {
			log.Printf("Skipping photo outside library: %s", sanitizeForLog(match.ImagePath))
			continue
		}
		if err := addFileToZip(zw, full, match.ImagePath); err != nil {
			// Headers already sent; log and move on.
			log.Printf("Failed to add %s to archive: %v", sanitizeForLog(match.ImagePath), err)
		}
	}
}

// addFileToZip copies one file into the archive under the given name.
func addFileToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	entry, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create archive entry: %w", err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return fmt.Errorf("write archive entry: %w", err)
	}
	return nil
}

// resolvePhotoPath joins a stored relative photo path with the library root,
// rejecting traversal outside it.
func resolvePhotoPath(root, rel string) (string, error) {
	if root == "" {
		return "", errors.New("photo directory not configured")
	}
	if filepath.IsAbs(rel) {
		return "", errors.New("absolute photo paths are not allowed")
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.New("photo path escapes the library")
	}
	return filepath.Join(root, clean), nil
}
