package database

import (
	"context"

	"github.com/kozaktomas/me-in-moments/internal/facematch"
)

// FaceReader provides read-only access to cached face embeddings
type FaceReader interface {
	// GetFaces returns the faces cached for an image's content hash under tag.
	// ok is false when the image was never cached; an empty set with ok true
	// means the image was processed and has no faces.
	GetFaces(ctx context.Context, contentHash, tag string) (faces facematch.EmbeddingSet, ok bool, err error)
	// Stats summarizes the cache contents
	Stats(ctx context.Context) (CacheStats, error)
}

// FaceCache stores the faces detected in images so repeated runs over the
// same files skip the embedding server
type FaceCache interface {
	FaceReader

	// SaveFaces stores the faces of an image (replaces an existing entry)
	SaveFaces(ctx context.Context, contentHash, tag string, faces facematch.EmbeddingSet) error
	// Clear removes every cached entry
	Clear(ctx context.Context) error
}

// ToStored converts an embedding set to rows for storage.
func ToStored(contentHash, tag string, faces facematch.EmbeddingSet) []StoredFace {
	stored := make([]StoredFace, len(faces))
	for i, f := range faces {
		stored[i] = StoredFace{
			ContentHash: contentHash,
			Tag:         tag,
			FaceIndex:   i,
			Embedding:   f.Vector,
			BBox:        f.BBox,
			DetScore:    f.DetScore,
		}
	}
	return stored
}

// FromStored converts stored rows back to an embedding set in face order.
func FromStored(stored []StoredFace) facematch.EmbeddingSet {
	faces := make(facematch.EmbeddingSet, len(stored))
	for i, s := range stored {
		faces[i] = facematch.Embedding{
			Vector:   s.Embedding,
			BBox:     s.BBox,
			DetScore: s.DetScore,
		}
	}
	return faces
}
