package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/eventsnap/photo-finder/internal/config"
	"github.com/eventsnap/photo-finder/internal/embedding"
	"github.com/eventsnap/photo-finder/internal/index"
	"github.com/eventsnap/photo-finder/internal/profile"
	"github.com/eventsnap/photo-finder/internal/retrieval"
)

// newProvider creates the embedding sidecar client from config.
func newProvider(cfg *config.Config) (*embedding.Client, error) {
	client, err := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return client, nil
}

// loadPair loads the index pair for a mode from the configured index directory.
func loadPair(cfg *config.Config, mode index.Mode) (*index.FlatIndex, *index.Metadata, error) {
	idx, meta, err := index.LoadPair(
		cfg.Embedding.Dim,
		cfg.Index.VectorPath(string(mode)),
		cfg.Index.MetadataPath(string(mode)),
	)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return nil, nil, fmt.Errorf("no %s index found in %s, run 'photo-finder index build' first", mode, cfg.Index.Dir)
		}
		return nil, nil, fmt.Errorf("failed to load %s index: %w", mode, err)
	}
	return idx, meta, nil
}

// loadEngine loads the index pair for a mode and wraps it in a retrieval engine.
func loadEngine(cfg *config.Config, mode index.Mode) (*retrieval.Engine, error) {
	idx, meta, err := loadPair(cfg, mode)
	if err != nil {
		return nil, err
	}
	engine, err := retrieval.NewEngine(idx, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval engine: %w", err)
	}
	return engine, nil
}

// loadProfiles opens the person profile store from the configured index directory.
func loadProfiles(cfg *config.Config) (*profile.Store, error) {
	if err := os.MkdirAll(cfg.Index.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	store, err := profile.NewStore(cfg.Index.ProfilesPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	return store, nil
}
