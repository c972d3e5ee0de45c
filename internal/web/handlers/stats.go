package handlers

import (
	"net/http"
)

// StatsResponse summarizes the loaded indexes and registered persons.
type StatsResponse struct {
	FaceVectors       int `json:"face_vectors"`
	FullImageVectors  int `json:"full_image_vectors"`
	RegisteredPersons int `json:"registered_persons"`
}

// StatsHandler reports index statistics.
type StatsHandler struct {
	svc *Service
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(svc *Service) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// Get handles GET /stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats := StatsResponse{
		RegisteredPersons: h.svc.Profiles.Count(),
	}
	if h.svc.FaceEngine != nil {
		stats.FaceVectors = h.svc.FaceEngine.Count()
	}
	if h.svc.TextEngine != nil {
		stats.FullImageVectors = h.svc.TextEngine.Count()
	}
	respondJSON(w, http.StatusOK, stats)
}
