// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/me-in-moments/internal/database"
	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

// MockFaceCache is a mock implementation of database.FaceCache that records
// calls and supports error injection
type MockFaceCache struct {
	mu      sync.Mutex
	entries map[string]facematch.EmbeddingSet

	GetCalls  int
	SaveCalls int

	// Error injection
	GetError   error
	SaveError  error
	StatsError error
	ClearError error
}

// NewMockFaceCache creates a new mock face cache
func NewMockFaceCache() *MockFaceCache {
	return &MockFaceCache{entries: make(map[string]facematch.EmbeddingSet)}
}

func key(hash, tag string) string {
	return hash + "|" + tag
}

// AddFaces seeds the mock with an entry
func (m *MockFaceCache) AddFaces(hash, tag string, faces facematch.EmbeddingSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key(hash, tag)] = faces
}

// Len returns the number of stored entries
func (m *MockFaceCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// GetFaces returns the stored entry
func (m *MockFaceCache) GetFaces(ctx context.Context, hash, tag string) (facematch.EmbeddingSet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetError != nil {
		return nil, false, m.GetError
	}
	faces, ok := m.entries[key(hash, tag)]
	return faces, ok, nil
}

// SaveFaces stores an entry
func (m *MockFaceCache) SaveFaces(ctx context.Context, hash, tag string, faces facematch.EmbeddingSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.entries[key(hash, tag)] = faces
	return nil
}

// Stats reports the number of stored entries and faces
func (m *MockFaceCache) Stats(ctx context.Context) (database.CacheStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatsError != nil {
		return database.CacheStats{}, m.StatsError
	}
	stats := database.CacheStats{Images: len(m.entries), Backend: "mock", ByTag: map[string]int{}}
	for _, faces := range m.entries {
		stats.Faces += len(faces)
	}
	return stats, nil
}

// Clear removes all entries
func (m *MockFaceCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearError != nil {
		return m.ClearError
	}
	clear(m.entries)
	return nil
}

var _ database.FaceCache = (*MockFaceCache)(nil)
