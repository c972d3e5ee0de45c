package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eventsnap/photo-finder/internal/config"
	"github.com/eventsnap/photo-finder/internal/index"
	"github.com/eventsnap/photo-finder/internal/similar"
)

var similarCmd = &cobra.Command{
	Use:   "similar [PHOTO]",
	Short: "Explore visually similar photos in the index",
	Long: `Explore the full-image index for near-duplicate photos.

With a photo argument, lists its nearest neighbors. With --groups, clusters
the whole collection into near-duplicate groups.

Examples:
  # Photos similar to one photo
  photo-finder similar vacation/beach_001.jpg

  # Near-duplicate groups across the whole collection
  photo-finder similar --groups --threshold 0.97`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().Bool("groups", false, "Cluster the collection into near-duplicate groups")
	similarCmd.Flags().Float64("threshold", 0.97, "Similarity threshold for grouping")
	similarCmd.Flags().Int("neighbors", 0, "Number of neighbors to list (0 = use default)")
}

func runSimilar(cmd *cobra.Command, args []string) error {
	groups := mustGetBool(cmd, "groups")
	if !groups && len(args) == 0 {
		return fmt.Errorf("either a photo path or --groups is required")
	}

	cfg := config.Load()
	idx, meta, err := loadPair(cfg, index.ModeFullImage)
	if err != nil {
		return err
	}

	fmt.Printf("Building similarity graph over %d photos...\n", idx.Count())
	explorer, err := similar.NewExplorer(idx, meta)
	if err != nil {
		return fmt.Errorf("failed to build similarity graph: %w", err)
	}

	neighbors := mustGetInt(cmd, "neighbors")
	if neighbors == 0 {
		neighbors = cfg.Defaults.Similar.Neighbors
	}

	if groups {
		threshold := mustGetFloat64(cmd, "threshold")
		found, err := explorer.Groups(threshold, neighbors)
		if err != nil {
			return fmt.Errorf("grouping failed: %w", err)
		}
		if len(found) == 0 {
			fmt.Println("No near-duplicate groups found")
			return nil
		}
		fmt.Printf("Found %d near-duplicate groups:\n", len(found))
		for i, group := range found {
			fmt.Printf("\nGroup %d (%d photos):\n", i+1, len(group))
			for _, path := range group {
				fmt.Printf("  %s\n", path)
			}
		}
		return nil
	}

	results, err := explorer.NeighborsByPath(args[0], neighbors)
	if err != nil {
		return err
	}
	fmt.Printf("Photos similar to %s:\n", args[0])
	for i, nb := range results {
		fmt.Printf("%3d. %s  (similarity %.3f)\n", i+1, nb.ImagePath, nb.Similarity)
	}
	return nil
}
