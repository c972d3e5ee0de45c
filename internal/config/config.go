package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Embedding EmbeddingConfig
	Index     IndexConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Database  DatabaseConfig
	Defaults  DefaultsConfig
}

type EmbeddingConfig struct {
	URL string // embedding sidecar URL, defaults to http://localhost:8000
	Dim int    // embedding dimension, defaults to 512 (CLIP ViT-B-32)
}

type IndexConfig struct {
	Dir string // directory holding the index pair and profile file
}

// VectorPath returns the path of the binary vector index file for a mode
// ("face" or "full_image").
func (c *IndexConfig) VectorPath(mode string) string {
	return filepath.Join(c.Dir, mode+"_index.bin")
}

// MetadataPath returns the path of the JSON metadata file for a mode.
func (c *IndexConfig) MetadataPath(mode string) string {
	return filepath.Join(c.Dir, mode+"_metadata.json")
}

// ProfilesPath returns the path of the person profiles file.
func (c *IndexConfig) ProfilesPath() string {
	return filepath.Join(c.Dir, "person_profiles.json")
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL (optional pgvector backend)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// DefaultsConfig carries the built-in search defaults shipped in
// defaults.yaml. They match the recommendations from the reference embedding
// model: faces match reliably around 0.5, free text around 0.25.
type DefaultsConfig struct {
	Search struct {
		FaceThreshold float64 `yaml:"face_threshold"`
		TextThreshold float64 `yaml:"text_threshold"`
		MaxCandidates int     `yaml:"max_candidates"`
	} `yaml:"search"`
	Upload struct {
		MaxSizeMB int64 `yaml:"max_size_mb"`
	} `yaml:"upload"`
	Similar struct {
		Neighbors int `yaml:"neighbors"`
	} `yaml:"similar"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable with a fallback.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defaults DefaultsConfig
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Index: IndexConfig{
			Dir: envString("INDEX_DIR", filepath.Join("data", "embeddings")),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Defaults: defaults,
	}
}

// MaxUploadSize returns the upload size limit in bytes.
func (c *Config) MaxUploadSize() int64 {
	return c.Defaults.Upload.MaxSizeMB << 20
}
