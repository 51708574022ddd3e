package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/me-in-moments/internal/config"
	"github.com/kozaktomas/me-in-moments/internal/database"
	"github.com/kozaktomas/me-in-moments/internal/database/postgres"
	"github.com/kozaktomas/me-in-moments/internal/embedding"
	"github.com/kozaktomas/me-in-moments/internal/facematch"
	"github.com/kozaktomas/me-in-moments/internal/imageproc"
)

// Cache backends selectable with --cache
const (
	cacheAuto     = "auto"
	cacheMemory   = "memory"
	cachePostgres = "postgres"
	cacheNone     = "none"
)

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newEmbeddingClient creates the embedding client from the config.
func newEmbeddingClient(cfg *config.Config, mode imageproc.Mode) *embedding.Client {
	return embedding.NewClient(embedding.Options{
		URL:          cfg.Embedding.URL,
		Model:        cfg.Embedding.Model,
		Timeout:      cfg.Embedding.Timeout,
		MaxImageSize: cfg.Embedding.MaxImageSize,
		Preprocess:   mode,
		MinDetScore:  cfg.Embedding.MinDetScore,
		Dim:          cfg.Embedding.Dim,
	})
}

// openFaceCache opens the requested cache backend. "auto" uses PostgreSQL
// when DATABASE_URL is set and memory otherwise. A nil cache is returned for
// "none". The returned close function is never nil.
func openFaceCache(ctx context.Context, cfg *config.Config, backend string) (database.FaceCache, func(), error) {
	noop := func() {}

	if backend == cacheAuto {
		backend = cacheMemory
		if cfg.Database.URL != "" {
			backend = cachePostgres
		}
	}

	switch backend {
	case cacheNone:
		return nil, noop, nil
	case cacheMemory:
		return database.NewMemoryCache(), noop, nil
	case cachePostgres:
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		return postgres.NewFaceCache(pool), func() {
			if err := pool.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}, nil
	default:
		return nil, noop, fmt.Errorf("unknown cache backend %q (use auto, memory, postgres or none)", backend)
	}
}

// newSource wraps the client in the cache when one is configured.
func newSource(client *embedding.Client, cache database.FaceCache) facematch.EmbeddingSource {
	if cache == nil {
		return client
	}
	return embedding.NewCachedSource(client, cache, client.CacheTag())
}
