package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eventsnap/photo-finder/internal/config"
	"github.com/eventsnap/photo-finder/internal/index"
	"github.com/eventsnap/photo-finder/internal/retrieval"
	"github.com/eventsnap/photo-finder/internal/store/postgres"
	"github.com/eventsnap/photo-finder/internal/translate"
	"github.com/eventsnap/photo-finder/internal/web"
	"github.com/eventsnap/photo-finder/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Photo Finder web server.

The server exposes the search API: person registration, identity search,
free-text search, thumbnails and ZIP downloads of results. Built indexes are
loaded from the index directory; with --db, vectors are served from
PostgreSQL instead (requires DATABASE_URL).`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("photos", "", "Photo directory for thumbnails and downloads")
	serveCmd.Flags().Bool("db", false, "Serve vectors from PostgreSQL instead of index files")
}

// loadFileEngines loads whatever index pairs exist on disk. A missing index
// disables the corresponding search instead of failing startup.
func loadFileEngines(cfg *config.Config) (face, text *retrieval.Engine) {
	for _, mode := range []index.Mode{index.ModeFace, index.ModeFullImage} {
		engine, err := loadEngine(cfg, mode)
		if err != nil {
			fmt.Printf("Warning: %s search disabled: %v\n", mode, err)
			continue
		}
		fmt.Printf("Loaded %s index with %d vectors\n", mode, engine.Count())
		if mode == index.ModeFace {
			face = engine
		} else {
			text = engine
		}
	}
	return face, text
}

// loadDBEngines serves both modes from pgvector-backed repositories.
func loadDBEngines(ctx context.Context, cfg *config.Config) (*postgres.Pool, *retrieval.Engine, *retrieval.Engine, error) {
	pool, err := postgres.Connect(&cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	repo := postgres.NewVectorRepository(pool, cfg.Embedding.Dim)
	var engines [2]*retrieval.Engine
	for i, mode := range []index.Mode{index.ModeFace, index.ModeFullImage} {
		bound, err := repo.Index(ctx, mode)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to bind %s index: %w", mode, err)
		}
		if bound.Count() == 0 {
			fmt.Printf("Warning: %s search disabled: no vectors stored\n", mode)
			continue
		}
		meta, err := repo.Metadata(ctx, mode)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to load %s metadata: %w", mode, err)
		}
		engine, err := retrieval.NewEngine(bound, meta)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to create %s engine: %w", mode, err)
		}
		fmt.Printf("Loaded %s index from PostgreSQL with %d vectors\n", mode, engine.Count())
		engines[i] = engine
	}
	return pool, engines[0], engines[1], nil
}

func runServe(cmd *cobra.Command, args []string) error {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	photoDir := mustGetString(cmd, "photos")
	useDB := mustGetBool(cmd, "db")

	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if photoDir == "" {
		photoDir = os.Getenv("PHOTO_DIR")
	}

	ctx := context.Background()
	cfg := config.Load()

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	profiles, err := loadProfiles(cfg)
	if err != nil {
		return err
	}

	var faceEngine, textEngine *retrieval.Engine
	if useDB {
		if cfg.Database.URL == "" {
			return fmt.Errorf("--db requires the DATABASE_URL environment variable")
		}
		pool, face, text, err := loadDBEngines(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		faceEngine, textEngine = face, text
	} else {
		faceEngine, textEngine = loadFileEngines(cfg)
	}
	if faceEngine == nil && textEngine == nil {
		return fmt.Errorf("no index available, run 'photo-finder index build' first")
	}

	translator, err := translate.ForConfig(ctx, cfg.OpenAI.Token, cfg.Gemini.APIKey)
	if err != nil {
		fmt.Printf("Warning: query translation disabled: %v\n", err)
	} else if translator != nil {
		fmt.Printf("Query translation enabled (%s)\n", translator.Name())
	}

	svc := &handlers.Service{
		Config:     cfg,
		Provider:   provider,
		Profiles:   profiles,
		Translator: translator,
		FaceEngine: faceEngine,
		TextEngine: textEngine,
		PhotoDir:   photoDir,
	}

	server := web.NewServer(svc, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Photo Finder API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
