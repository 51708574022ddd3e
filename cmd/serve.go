package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/me-in-moments/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Me in Moments API server.
Runs are started by uploading a reference photo and target photos; progress
is streamed as server-sent events and matching photos can be downloaded as a
zip for any threshold once the run completes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from config, WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config, WEB_HOST)")
	serveCmd.Flags().String("cache", cacheAuto, "Embedding cache: auto, memory, postgres or none")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	ctx := context.Background()

	client := newEmbeddingClient(cfg, cfg.Match.PreprocessMode())
	if err := client.Health(ctx); err != nil {
		fmt.Printf("Warning: embedding server at %s is not reachable: %v\n", cfg.Embedding.URL, err)
	}

	cache, closeCache, err := openFaceCache(ctx, cfg, mustGetString(cmd, "cache"))
	if err != nil {
		return err
	}
	defer closeCache()
	if cache != nil {
		stats, err := cache.Stats(ctx)
		if err != nil {
			fmt.Printf("Warning: failed to read cache stats: %v\n", err)
		} else {
			fmt.Printf("Using %s embedding cache (%d images)\n", stats.Backend, stats.Images)
		}
	}

	server := web.NewServer(cfg, newSource(client, cache), cache)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Me in Moments API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
