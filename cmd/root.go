package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "me-in-moments",
	Short: "Find the photos you appear in",
	Long: `Me in Moments compares the face in a reference photo against a batch of
target photos using face embeddings and keeps the photos whose best face is
closer than a distance threshold. Matching photos can be exported as a zip.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.SilenceErrors = true
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
