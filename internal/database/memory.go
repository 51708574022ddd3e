package database

import (
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

type cacheKey struct {
	hash string
	tag  string
}

// MemoryCache is a process-local FaceCache used when no database is configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]facematch.EmbeddingSet
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[cacheKey]facematch.EmbeddingSet)}
}

// GetFaces returns a copy of the cached faces.
func (c *MemoryCache) GetFaces(_ context.Context, contentHash, tag string) (facematch.EmbeddingSet, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	faces, ok := c.entries[cacheKey{contentHash, tag}]
	if !ok {
		return nil, false, nil
	}
	return cloneSet(faces), true, nil
}

// SaveFaces stores a copy of faces.
func (c *MemoryCache) SaveFaces(_ context.Context, contentHash, tag string, faces facematch.EmbeddingSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{contentHash, tag}] = cloneSet(faces)
	return nil
}

// Stats counts cached images and faces.
func (c *MemoryCache) Stats(_ context.Context) (CacheStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{ByTag: make(map[string]int), Backend: "memory"}
	for key, faces := range c.entries {
		stats.Images++
		stats.Faces += len(faces)
		stats.ByTag[key.tag]++
	}
	return stats, nil
}

// Clear drops every entry.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	return nil
}

// cloneSet deep copies vectors and boxes so callers cannot mutate cached data.
func cloneSet(faces facematch.EmbeddingSet) facematch.EmbeddingSet {
	out := make(facematch.EmbeddingSet, len(faces))
	for i, f := range faces {
		f.Vector = slices.Clone(f.Vector)
		f.BBox = slices.Clone(f.BBox)
		f.Source = ""
		out[i] = f
	}
	return out
}
