package cmd

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache management commands",
	Long: `Commands for managing the PostgreSQL embedding cache.
Faces are cached per image content hash and embedding settings, so
re-running a match over the same photos skips the embedding server.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached images and faces",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached embedding",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().Bool("yes", false, "Do not ask for confirmation")
}

var errNoDatabase = errors.New("DATABASE_URL environment variable is required")

func runCacheStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errNoDatabase
	}

	cache, closeCache, err := openFaceCache(cmd.Context(), cfg, cachePostgres)
	if err != nil {
		return err
	}
	defer closeCache()

	stats, err := cache.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	fmt.Printf("Backend: %s\n", stats.Backend)
	fmt.Printf("Images:  %d\n", stats.Images)
	fmt.Printf("Faces:   %d\n", stats.Faces)
	if len(stats.ByTag) == 0 {
		return nil
	}

	tags := make([]string, 0, len(stats.ByTag))
	for tag := range stats.ByTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SETTINGS\tIMAGES")
	fmt.Fprintln(w, "--------\t------")
	for _, tag := range tags {
		fmt.Fprintf(w, "%s\t%d\n", tag, stats.ByTag[tag])
	}
	return w.Flush()
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errNoDatabase
	}
	if !mustGetBool(cmd, "yes") {
		return errors.New("refusing to clear the cache without --yes")
	}

	cache, closeCache, err := openFaceCache(cmd.Context(), cfg, cachePostgres)
	if err != nil {
		return err
	}
	defer closeCache()

	if err := cache.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Println("Embedding cache cleared")
	return nil
}
