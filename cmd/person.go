package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eventsnap/photo-finder/internal/config"
	"github.com/eventsnap/photo-finder/internal/embedding"
)

var personCmd = &cobra.Command{
	Use:   "person",
	Short: "Manage registered persons",
}

var personRegisterCmd = &cobra.Command{
	Use:   "register NAME",
	Short: "Register a person from a selfie",
	Long: `Register a person so they can be found by name. The selfie must
contain exactly one clearly visible face.

Names are case-insensitive: registering "Ann" and searching for "ann" refer
to the same person, and re-registering a name replaces the stored embedding.

Examples:
  photo-finder person register "Ann" --selfie ./ann.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runPersonRegister,
}

var personListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered persons",
	RunE:  runPersonList,
}

var personRemoveCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "Remove a registered person",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonRemove,
}

func init() {
	rootCmd.AddCommand(personCmd)
	personCmd.AddCommand(personRegisterCmd)
	personCmd.AddCommand(personListCmd)
	personCmd.AddCommand(personRemoveCmd)

	personRegisterCmd.Flags().String("selfie", "", "Path to a selfie image (required)")
	personRegisterCmd.MarkFlagRequired("selfie")
}

func runPersonRegister(cmd *cobra.Command, args []string) error {
	name := args[0]
	selfiePath := mustGetString(cmd, "selfie")

	cfg := config.Load()
	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Detecting face in %s...\n", selfiePath)
	emb, err := embedding.SelfieEmbedding(context.Background(), provider, selfiePath)
	if err != nil {
		if errors.Is(err, embedding.ErrNoSingleFace) {
			return fmt.Errorf("selfie must contain exactly one face: %w", err)
		}
		return fmt.Errorf("failed to embed selfie: %w", err)
	}

	profiles, err := loadProfiles(cfg)
	if err != nil {
		return err
	}
	if err := profiles.Register(name, emb, selfiePath); err != nil {
		return fmt.Errorf("failed to register %s: %w", name, err)
	}

	fmt.Printf("Registered %s (%d registered persons total)\n", name, profiles.Count())
	return nil
}

func runPersonList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	profiles, err := loadProfiles(cfg)
	if err != nil {
		return err
	}

	names := profiles.List()
	if len(names) == 0 {
		fmt.Println("No persons registered yet")
		return nil
	}

	fmt.Printf("Registered persons (%d):\n", len(names))
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func runPersonRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg := config.Load()
	profiles, err := loadProfiles(cfg)
	if err != nil {
		return err
	}

	removed, err := profiles.Remove(name)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	if !removed {
		return fmt.Errorf("person not registered: %s", name)
	}

	fmt.Printf("Removed %s\n", name)
	return nil
}
