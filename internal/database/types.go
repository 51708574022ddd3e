package database

import (
	"time"
)

// StoredFace represents one cached face embedding
type StoredFace struct {
	ContentHash string
	Tag         string
	FaceIndex   int
	Embedding   []float32
	BBox        []float64 // [x, y, w, h] in original pixel coordinates
	DetScore    float64
	CreatedAt   time.Time
}

// CacheStats summarizes the contents of a face cache
type CacheStats struct {
	Images  int            `json:"images"`  // cached images, including ones without faces
	Faces   int            `json:"faces"`   // cached face embeddings
	ByTag   map[string]int `json:"by_tag"`  // cached images per embedding tag
	Backend string         `json:"backend"` // "memory" or "postgres"
}
