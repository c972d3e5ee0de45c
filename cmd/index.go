package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eventsnap/photo-finder/internal/config"
	"github.com/eventsnap/photo-finder/internal/index"
	"github.com/eventsnap/photo-finder/internal/indexer"
	"github.com/eventsnap/photo-finder/internal/store/postgres"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and inspect search indexes",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Index a photo directory for searching",
	Long: `Walk a photo directory, embed every photo and write the search index.

Face mode stores one vector per detected face and powers person search.
Full-image mode stores one vector per photo and powers text search.

Examples:
  # Build the face index
  photo-finder index build --photos ./photos --mode face

  # Build the full-image index with more workers
  photo-finder index build --photos ./photos --mode full_image --concurrency 8

  # Also push the vectors to PostgreSQL (requires DATABASE_URL)
  photo-finder index build --photos ./photos --mode face --store-db`,
	RunE: runIndexBuild,
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show statistics about the built indexes",
	RunE:  runIndexInfo,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexInfoCmd)

	indexBuildCmd.Flags().String("photos", "", "Photo directory to index (required)")
	indexBuildCmd.Flags().String("mode", "face", "Index mode: face or full_image")
	indexBuildCmd.Flags().Int("concurrency", 4, "Number of parallel workers")
	indexBuildCmd.Flags().Bool("store-db", false, "Also store vectors in PostgreSQL (pgvector)")
	indexBuildCmd.MarkFlagRequired("photos")
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	photoDir := mustGetString(cmd, "photos")
	mode := index.Mode(mustGetString(cmd, "mode"))
	concurrency := mustGetInt(cmd, "concurrency")
	storeDB := mustGetBool(cmd, "store-db")

	if !mode.Valid() {
		return fmt.Errorf("invalid mode %q, expected face or full_image", mode)
	}

	ctx := context.Background()
	cfg := config.Load()

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Indexing %s in %s mode...\n", photoDir, mode)
	builder := indexer.NewBuilder(provider)
	idx, meta, stats, err := builder.BuildDir(ctx, photoDir, indexer.Options{
		Mode:        mode,
		Concurrency: concurrency,
		Progress:    true,
	})
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	if err := os.MkdirAll(cfg.Index.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	vectorPath := cfg.Index.VectorPath(string(mode))
	metaPath := cfg.Index.MetadataPath(string(mode))
	if err := index.SavePair(idx, meta, vectorPath, metaPath); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}

	fmt.Printf("\nCompleted: %d photos processed, %d skipped\n", stats.PhotosProcessed, stats.PhotosSkipped)
	fmt.Printf("Vectors indexed: %d\n", stats.VectorsIndexed)
	fmt.Printf("Index written to %s\n", vectorPath)

	if storeDB {
		if cfg.Database.URL == "" {
			return fmt.Errorf("--store-db requires the DATABASE_URL environment variable")
		}
		fmt.Println("Storing vectors in PostgreSQL...")
		pool, err := postgres.Connect(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer pool.Close()

		repo := postgres.NewVectorRepository(pool, cfg.Embedding.Dim)
		vectors := make([][]float32, idx.Count())
		for i := range vectors {
			vec, err := idx.Vector(i)
			if err != nil {
				return fmt.Errorf("failed to read vector %d: %w", i, err)
			}
			vectors[i] = vec
		}
		if err := repo.ReplaceAll(ctx, mode, vectors, meta.Records); err != nil {
			return fmt.Errorf("failed to store vectors: %w", err)
		}
		fmt.Printf("Stored %d vectors in PostgreSQL\n", len(vectors))
	}

	return nil
}

func runIndexInfo(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	for _, mode := range []index.Mode{index.ModeFace, index.ModeFullImage} {
		idx, meta, err := loadPair(cfg, mode)
		if err != nil {
			fmt.Printf("%s index: not built\n", mode)
			continue
		}

		photos := make(map[string]bool)
		for _, rec := range meta.Records {
			photos[rec.ImagePath] = true
		}
		fmt.Printf("%s index: %d vectors across %d photos (dim %d)\n",
			mode, idx.Count(), len(photos), idx.Dim())
	}

	profiles, err := loadProfiles(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Registered persons: %d\n", profiles.Count())
	return nil
}
