package facematch

import (
	"fmt"
	"path/filepath"
)

// ValidateReference checks that the reference image yielded exactly one face.
func ValidateReference(ref EmbeddingSet) error {
	if len(ref) != 1 {
		return fmt.Errorf("%w: found %d", ErrInvalidReference, len(ref))
	}
	if ref[0].Dim() == 0 {
		return fmt.Errorf("%w: empty embedding vector", ErrInvalidReference)
	}
	return nil
}

// ZeroEmbedding returns the sentinel embedding used for targets without a face.
func ZeroEmbedding(dim int) Embedding {
	return Embedding{Vector: make([]float32, dim)}
}

// BestMatch compares every reference face with every target face and keeps
// the lowest distance. A target without faces is scored with a zero vector
// so it still produces a record (distance 1). Ties keep the first pair in
// iteration order.
func BestMatch(ref, target EmbeddingSet, imagePath string) (MatchRecord, error) {
	if err := ValidateReference(ref); err != nil {
		return MatchRecord{}, err
	}

	faceCount := len(target)
	if faceCount == 0 {
		target = EmbeddingSet{ZeroEmbedding(ref[0].Dim())}
	}

	record := MatchRecord{
		ImagePath: imagePath,
		Name:      filepath.Base(imagePath),
		FaceIndex: -1,
		FaceCount: faceCount,
	}

	found := false
	for i, t := range target {
		for _, r := range ref {
			dist, err := CosineDistance(r.Vector, t.Vector)
			if err != nil {
				return MatchRecord{}, fmt.Errorf("face %d: %w", i, err)
			}
			if !found || dist < record.Score {
				found = true
				record.Score = dist
				if faceCount > 0 {
					record.FaceIndex = i
					record.BBox = t.BBox
				}
			}
		}
	}

	return record, nil
}
