package facematch

import (
	"fmt"
	"math"
)

// cosineEpsilon keeps the denominator non-zero when either vector is all zeros.
const cosineEpsilon = 1e-10

// CosineDistance computes 1 - cosine similarity of a and b.
// Returns a value between 0 (identical direction) and 2 (opposite).
// A zero vector has similarity 0 with anything, so its distance is 1.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	similarity := dotProduct / (math.Sqrt(normA)*math.Sqrt(normB) + cosineEpsilon)
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity, nil
}
