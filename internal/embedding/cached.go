package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

// Cache stores the faces found in an image, keyed by content hash and tag.
type Cache interface {
	GetFaces(ctx context.Context, contentHash, tag string) (facematch.EmbeddingSet, bool, error)
	SaveFaces(ctx context.Context, contentHash, tag string, faces facematch.EmbeddingSet) error
}

// CachedSource wraps an EmbeddingSource and skips it for images whose
// content was embedded before under the same tag.
type CachedSource struct {
	source facematch.EmbeddingSource
	cache  Cache
	tag    string
}

// NewCachedSource creates a caching decorator around source.
func NewCachedSource(source facematch.EmbeddingSource, cache Cache, tag string) *CachedSource {
	return &CachedSource{source: source, cache: cache, tag: tag}
}

// Embed returns cached faces when available and otherwise delegates to the
// wrapped source. Cache failures are logged and never fail the call.
func (s *CachedSource) Embed(ctx context.Context, imagePath string) (facematch.EmbeddingSet, error) {
	hash, err := ContentHash(imagePath)
	if err != nil {
		return nil, err
	}

	faces, ok, err := s.cache.GetFaces(ctx, hash, s.tag)
	if err != nil {
		log.Printf("Warning: embedding cache lookup failed for %s: %v", imagePath, err)
	}
	if err == nil && ok {
		return withSource(faces, imagePath), nil
	}

	faces, err = s.source.Embed(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SaveFaces(ctx, hash, s.tag, faces); err != nil {
		log.Printf("Warning: failed to cache embeddings for %s: %v", imagePath, err)
	}
	return faces, nil
}

// ContentHash returns the hex SHA-256 of the file at path.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided image path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", facematch.ErrInputNotFound, path)
		}
		return "", fmt.Errorf("%w: open %s: %v", facematch.ErrEmbeddingFailure, path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("%w: read %s: %v", facematch.ErrEmbeddingFailure, path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func withSource(faces facematch.EmbeddingSet, source string) facematch.EmbeddingSet {
	out := make(facematch.EmbeddingSet, len(faces))
	for i, f := range faces {
		f.Source = source
		out[i] = f
	}
	return out
}
