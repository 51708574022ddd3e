package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/me-in-moments/internal/database"
	"github.com/kozaktomas/me-in-moments/internal/facematch"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// FaceCache provides PostgreSQL storage for detected face embeddings.
type FaceCache struct {
	pool *Pool
}

// NewFaceCache creates a face cache on top of pool.
func NewFaceCache(pool *Pool) *FaceCache {
	return &FaceCache{pool: pool}
}

// GetFaces returns the cached faces of an image in face order.
func (r *FaceCache) GetFaces(ctx context.Context, contentHash, tag string) (facematch.EmbeddingSet, bool, error) {
	var faceCount int
	err := r.pool.QueryRow(ctx,
		"SELECT face_count FROM face_sets WHERE content_hash = $1 AND tag = $2",
		contentHash, tag,
	).Scan(&faceCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query face set: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT face_index, embedding, bbox, det_score, created_at
		FROM face_embeddings
		WHERE content_hash = $1 AND tag = $2
		ORDER BY face_index
	`, contentHash, tag)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	stored := make([]database.StoredFace, 0, faceCount)
	for rows.Next() {
		face := database.StoredFace{ContentHash: contentHash, Tag: tag}
		var vec pgvector.Vector
		var bbox pq.Float64Array
		if err := rows.Scan(&face.FaceIndex, &vec, &bbox, &face.DetScore, &face.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan face: %w", err)
		}
		face.Embedding = vec.Slice()
		if len(bbox) > 0 {
			face.BBox = []float64(bbox)
		}
		stored = append(stored, face)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate faces: %w", err)
	}
	if len(stored) != faceCount {
		// Partially written entry: treat as a miss so it is recomputed.
		return nil, false, nil
	}
	return database.FromStored(stored), true, nil
}

// SaveFaces stores the faces of an image, replacing an existing entry.
func (r *FaceCache) SaveFaces(ctx context.Context, contentHash, tag string, faces facematch.EmbeddingSet) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM face_sets WHERE content_hash = $1 AND tag = $2", contentHash, tag,
	); err != nil {
		return fmt.Errorf("delete face set: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO face_sets (content_hash, tag, face_count) VALUES ($1, $2, $3)",
		contentHash, tag, len(faces),
	); err != nil {
		return fmt.Errorf("insert face set: %w", err)
	}

	for _, face := range database.ToStored(contentHash, tag, faces) {
		var bbox any
		if len(face.BBox) > 0 {
			bbox = pq.Array(face.BBox)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO face_embeddings (content_hash, tag, face_index, embedding, bbox, det_score)
			VALUES ($1, $2, $3, $4::vector, $5, $6)
		`, contentHash, tag, face.FaceIndex, pgvector.NewVector(face.Embedding), bbox, face.DetScore); err != nil {
			return fmt.Errorf("insert face %d: %w", face.FaceIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Stats counts cached images and faces per tag.
func (r *FaceCache) Stats(ctx context.Context) (database.CacheStats, error) {
	stats := database.CacheStats{ByTag: make(map[string]int), Backend: "postgres"}

	rows, err := r.pool.Query(ctx, "SELECT tag, COUNT(*), COALESCE(SUM(face_count), 0) FROM face_sets GROUP BY tag")
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var tag string
		var images, faces int
		if err := rows.Scan(&tag, &images, &faces); err != nil {
			return stats, fmt.Errorf("scan stats: %w", err)
		}
		stats.ByTag[tag] = images
		stats.Images += images
		stats.Faces += faces
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate stats: %w", err)
	}
	return stats, nil
}

// Clear removes every cached entry.
func (r *FaceCache) Clear(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "TRUNCATE face_sets, face_embeddings"); err != nil {
		return fmt.Errorf("clear face cache: %w", err)
	}
	return nil
}

var _ database.FaceCache = (*FaceCache)(nil)
