package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photo-finder",
	Short: "A CLI tool for finding photos of people and scenes by embedding search",
	Long: `Photo Finder indexes a photo collection with CLIP and face embeddings
and finds every photo of a person (from a registered selfie) or every photo
matching a free-text description.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
