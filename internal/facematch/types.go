// Package facematch scores face embeddings of target photos against a single
// reference face and filters the results by a distance threshold.
package facematch

import "context"

// Embedding is a single face embedding produced by the embedding model.
type Embedding struct {
	Vector   []float32 `json:"-"`
	Source   string    `json:"source,omitempty"`
	BBox     []float64 `json:"bbox,omitempty"` // [x, y, w, h] in pixels
	DetScore float64   `json:"det_score,omitempty"`
}

// Dim returns the vector length.
func (e Embedding) Dim() int {
	return len(e.Vector)
}

// EmbeddingSet holds all faces detected in one image, in detector order.
// An empty set means no face was found.
type EmbeddingSet []Embedding

// EmbeddingSource turns an image into the embeddings of the faces it contains.
// Implementations return an empty set (not an error) when no face is found.
type EmbeddingSource interface {
	Embed(ctx context.Context, imagePath string) (EmbeddingSet, error)
}

// MatchRecord is the best match of one target image against the reference.
type MatchRecord struct {
	ImagePath string    `json:"image_path"`
	Name      string    `json:"name"`
	Score     float64   `json:"similarity_score"`
	FaceIndex int       `json:"face_index"` // -1 when no face was detected
	FaceCount int       `json:"face_count"`
	BBox      []float64 `json:"bbox,omitempty"`
}

// Matched reports whether the record passes threshold t.
func (r MatchRecord) Matched(t float64) bool {
	return r.Score < t
}

// MatchSet is the ordered collection of records produced by one run.
type MatchSet []MatchRecord

// Paths returns the image paths of the set in order.
func (s MatchSet) Paths() []string {
	paths := make([]string, 0, len(s))
	for _, r := range s {
		paths = append(paths, r.ImagePath)
	}
	return paths
}
