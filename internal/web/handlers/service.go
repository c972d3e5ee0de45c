package handlers

import (
	"github.com/eventsnap/photo-finder/internal/config"
	"github.com/eventsnap/photo-finder/internal/embedding"
	"github.com/eventsnap/photo-finder/internal/profile"
	"github.com/eventsnap/photo-finder/internal/retrieval"
	"github.com/eventsnap/photo-finder/internal/translate"
)

// Service bundles the loaded engines and stores that handlers operate on.
// Engines are nil when the corresponding index has not been built yet;
// handlers answer 503 for searches against a missing index.
type Service struct {
	Config     *config.Config
	Provider   embedding.Provider
	Profiles   *profile.Store
	Translator translate.Provider // optional, nil disables query translation
	FaceEngine *retrieval.Engine
	TextEngine *retrieval.Engine
	PhotoDir   string
}

// faceThreshold resolves the similarity threshold for identity searches.
func (s *Service) faceThreshold(requested *float64) float64 {
	if requested != nil {
		return *requested
	}
	return s.Config.Defaults.Search.FaceThreshold
}

// textThreshold resolves the similarity threshold for text searches.
func (s *Service) textThreshold(requested *float64) float64 {
	if requested != nil {
		return *requested
	}
	return s.Config.Defaults.Search.TextThreshold
}

// maxCandidates resolves the candidate limit for searches.
func (s *Service) maxCandidates(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.Config.Defaults.Search.MaxCandidates
}
