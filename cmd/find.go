package cmd

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eventsnap/photo-finder/internal/config"
	"github.com/eventsnap/photo-finder/internal/embedding"
	"github.com/eventsnap/photo-finder/internal/imaging"
	"github.com/eventsnap/photo-finder/internal/index"
	"github.com/eventsnap/photo-finder/internal/retrieval"
	"github.com/eventsnap/photo-finder/internal/translate"
)

// faceCropMargin is the padding in pixels around a face bounding box when
// exporting crops.
const faceCropMargin = 20

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find photos by person or description",
}

var findPersonCmd = &cobra.Command{
	Use:   "person NAME",
	Short: "Find all photos of a person",
	Long: `Find every photo containing a registered person, or anyone from a
one-off selfie.

Examples:
  # Find photos of a registered person
  photo-finder find person "Ann"

  # Search from a selfie without registering
  photo-finder find person --selfie ./ann.jpg

  # Export the matches as a ZIP archive
  photo-finder find person "Ann" --photos ./photos --zip ann.zip

  # Export the matched face crops
  photo-finder find person "Ann" --photos ./photos --crop-dir ./crops`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFindPerson,
}

var findTextCmd = &cobra.Command{
	Use:   "text QUERY",
	Short: "Find photos matching a free-text description",
	Long: `Find every photo matching a description like "people at the beach".

With --translate, the query is first rewritten by an LLM into a short
English phrase that embeds better (requires OPENAI_TOKEN or GEMINI_API_KEY).

Examples:
  photo-finder find text "birthday cake with candles"
  photo-finder find text "lidé na pláži" --translate`,
	Args: cobra.ExactArgs(1),
	RunE: runFindText,
}

func init() {
	rootCmd.AddCommand(findCmd)
	findCmd.AddCommand(findPersonCmd)
	findCmd.AddCommand(findTextCmd)

	for _, c := range []*cobra.Command{findPersonCmd, findTextCmd} {
		c.Flags().Float64("threshold", 0, "Similarity threshold (0 = use default)")
		c.Flags().Int("max-candidates", 0, "Maximum candidates to inspect (0 = use default)")
		c.Flags().String("photos", "", "Photo directory, required for --zip and --crop-dir")
		c.Flags().String("zip", "", "Write matched photos to a ZIP archive")
	}
	findPersonCmd.Flags().String("selfie", "", "Search from a selfie instead of a registered name")
	findPersonCmd.Flags().String("crop-dir", "", "Write matched face crops to a directory")
	findTextCmd.Flags().Bool("translate", false, "Translate the query for better matching")
}

func runFindPerson(cmd *cobra.Command, args []string) error {
	selfiePath := mustGetString(cmd, "selfie")
	if len(args) == 0 && selfiePath == "" {
		return errors.New("either a person name or --selfie is required")
	}

	ctx := context.Background()
	cfg := config.Load()

	engine, err := loadEngine(cfg, index.ModeFace)
	if err != nil {
		return err
	}

	var query []float32
	var personName string
	if selfiePath != "" {
		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}
		query, err = embedding.SelfieEmbedding(ctx, provider, selfiePath)
		if err != nil {
			return fmt.Errorf("failed to embed selfie: %w", err)
		}
	} else {
		personName = args[0]
		profiles, err := loadProfiles(cfg)
		if err != nil {
			return err
		}
		p, err := profiles.Lookup(personName)
		if err != nil {
			return fmt.Errorf("person not registered: %s (run 'photo-finder person register')", personName)
		}
		query = p.Embedding
		personName = p.Name
	}

	threshold := mustGetFloat64(cmd, "threshold")
	if threshold == 0 {
		threshold = cfg.Defaults.Search.FaceThreshold
	}
	maxCandidates := mustGetInt(cmd, "max-candidates")
	if maxCandidates == 0 {
		maxCandidates = cfg.Defaults.Search.MaxCandidates
	}

	result, err := engine.FindPhotosByEmbedding(query, threshold, maxCandidates, personName)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Println(retrieval.Summary(result))
	printMatches(result)

	if cropDir := mustGetString(cmd, "crop-dir"); cropDir != "" {
		if err := exportFaceCrops(result, mustGetString(cmd, "photos"), cropDir); err != nil {
			return err
		}
	}
	return maybeWriteZip(cmd, result)
}

func runFindText(cmd *cobra.Command, args []string) error {
	queryText := args[0]

	ctx := context.Background()
	cfg := config.Load()

	engine, err := loadEngine(cfg, index.ModeFullImage)
	if err != nil {
		return err
	}
	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	embedText := queryText
	if mustGetBool(cmd, "translate") {
		translator, err := translate.ForConfig(ctx, cfg.OpenAI.Token, cfg.Gemini.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create translator: %w", err)
		}
		if translator == nil {
			return errors.New("--translate requires OPENAI_TOKEN or GEMINI_API_KEY")
		}
		res, err := translator.Translate(ctx, queryText)
		if err != nil {
			fmt.Printf("Warning: translation failed, using raw query: %v\n", err)
		} else if res.Text != queryText {
			fmt.Printf("Translated query: %s\n", res.Text)
			embedText = res.Text
		}
	}

	query, err := provider.EmbedText(ctx, embedText)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	threshold := mustGetFloat64(cmd, "threshold")
	if threshold == 0 {
		threshold = cfg.Defaults.Search.TextThreshold
	}
	maxCandidates := mustGetInt(cmd, "max-candidates")
	if maxCandidates == 0 {
		maxCandidates = cfg.Defaults.Search.MaxCandidates
	}

	result, err := engine.FindPhotosByText(query, queryText, threshold, maxCandidates)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Println(retrieval.Summary(result))
	printMatches(result)
	return maybeWriteZip(cmd, result)
}

// printMatches prints one line per matched photo.
func printMatches(result *retrieval.QueryResult) {
	for i, match := range result.Matches {
		line := fmt.Sprintf("%3d. %s  (similarity %.3f", i+1, match.ImagePath, match.MaxSimilarity)
		if match.NumMatches > 1 {
			line += fmt.Sprintf(", %d faces", match.NumMatches)
		}
		fmt.Println(line + ")")
	}
}

// maybeWriteZip writes matched photos to a ZIP archive when --zip is set.
func maybeWriteZip(cmd *cobra.Command, result *retrieval.QueryResult) error {
	zipPath := mustGetString(cmd, "zip")
	if zipPath == "" {
		return nil
	}
	photoDir := mustGetString(cmd, "photos")
	if photoDir == "" {
		return errors.New("--zip requires --photos to locate the originals")
	}
	if len(result.Matches) == 0 {
		fmt.Println("No matches, skipping ZIP archive")
		return nil
	}

	f, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	for _, match := range result.Matches {
		src, err := os.Open(filepath.Join(photoDir, filepath.FromSlash(match.ImagePath)))
		if err != nil {
			fmt.Printf("Warning: skipping %s: %v\n", match.ImagePath, err)
			continue
		}
		entry, err := zw.Create(match.ImagePath)
		if err != nil {
			src.Close()
			return fmt.Errorf("failed to create archive entry: %w", err)
		}
		if _, err := io.Copy(entry, src); err != nil {
			src.Close()
			return fmt.Errorf("failed to write archive entry: %w", err)
		}
		src.Close()
	}

	fmt.Printf("Wrote %s\n", zipPath)
	return nil
}

// exportFaceCrops writes a JPEG crop for every matched face.
func exportFaceCrops(result *retrieval.QueryResult, photoDir, cropDir string) error {
	if photoDir == "" {
		return errors.New("--crop-dir requires --photos to locate the originals")
	}
	if err := os.MkdirAll(cropDir, 0755); err != nil {
		return fmt.Errorf("failed to create crop directory: %w", err)
	}

	var written int
	for _, match := range result.Matches {
		data, err := os.ReadFile(filepath.Join(photoDir, filepath.FromSlash(match.ImagePath)))
		if err != nil {
			fmt.Printf("Warning: skipping %s: %v\n", match.ImagePath, err)
			continue
		}
		base := filepath.Base(match.ImagePath)
		for i, face := range match.Faces {
			crop, err := imaging.CropFace(data, face.BBox, faceCropMargin)
			if err != nil {
				fmt.Printf("Warning: failed to crop face %d of %s: %v\n", i, match.ImagePath, err)
				continue
			}
			name := fmt.Sprintf("%s_face%d.jpg", base[:len(base)-len(filepath.Ext(base))], i)
			if err := os.WriteFile(filepath.Join(cropDir, name), crop, 0644); err != nil {
				return fmt.Errorf("failed to write crop: %w", err)
			}
			written++
		}
	}

	fmt.Printf("Wrote %d face crops to %s\n", written, cropDir)
	return nil
}
