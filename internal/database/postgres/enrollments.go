package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// EnrollmentRepository caches enrollment embeddings in a pgvector column.
type EnrollmentRepository struct {
	pool *Pool
}

// NewEnrollmentRepository creates a new PostgreSQL enrollment cache
func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

// GetEmbedding returns the cached embedding for an image hash and model.
func (r *EnrollmentRepository) GetEmbedding(ctx context.Context, imageHash, model string) (facematch.Embedding, bool, error) {
	query := `
		SELECT embedding
		FROM enrollment_embeddings
		WHERE image_hash = $1 AND model = $2
	`
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx, query, imageHash, model).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query enrollment embedding: %w", err)
	}
	return facematch.Embedding(vec.Slice()), true, nil
}

// SaveEmbedding stores or replaces a cached embedding.
func (r *EnrollmentRepository) SaveEmbedding(ctx context.Context, imageHash, model, name, path string, emb facematch.Embedding) error {
	query := `
		INSERT INTO enrollment_embeddings (image_hash, model, name, path, embedding, dim, created_at)
		VALUES ($1, $2, $3, $4, $5::vector, $6, NOW())
		ON CONFLICT (image_hash, model) DO UPDATE SET
			name = EXCLUDED.name,
			path = EXCLUDED.path,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			created_at = NOW()
	`
	vec := pgvector.NewVector([]float32(emb))
	if _, err := r.pool.Exec(ctx, query, imageHash, model, name, path, vec, len(emb)); err != nil {
		return fmt.Errorf("save enrollment embedding: %w", err)
	}
	return nil
}

// List returns every cached embedding ordered by name.
func (r *EnrollmentRepository) List(ctx context.Context) ([]database.StoredEnrollment, error) {
	query := `
		SELECT image_hash, model, name, path, embedding, dim, created_at
		FROM enrollment_embeddings
		ORDER BY name, path
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []database.StoredEnrollment
	for rows.Next() {
		var e database.StoredEnrollment
		var vec pgvector.Vector
		if err := rows.Scan(&e.ImageHash, &e.Model, &e.Name, &e.Path, &vec, &e.Dim, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment embedding: %w", err)
		}
		e.Embedding = vec.Slice()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollment embeddings: %w", err)
	}
	return out, nil
}

// Count returns the number of cached embeddings.
func (r *EnrollmentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM enrollment_embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count enrollment embeddings: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes entries not refreshed since before.
func (r *EnrollmentRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM enrollment_embeddings WHERE created_at < $1", before)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
