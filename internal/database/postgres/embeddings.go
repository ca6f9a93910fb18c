package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-matcher/internal/database"
)

// EmbeddingRepository provides PostgreSQL-backed embedding storage
type EmbeddingRepository struct {
	pool  *Pool
	locks database.NamespaceLocks
}

// NewEmbeddingRepository creates a new PostgreSQL embedding repository
func NewEmbeddingRepository(pool *Pool) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool}
}

// Exists checks if an embedding is stored for filename
func (r *EmbeddingRepository) Exists(ctx context.Context, ns database.Namespace, filename string) (bool, error) {
	if err := ns.Validate(); err != nil {
		return false, err
	}
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE filename = $1)", ns.Table())
	if err := r.pool.QueryRow(ctx, query, filename).Scan(&exists); err != nil {
		return false, database.StorageError("check embedding exists", err)
	}
	return exists, nil
}

// Get retrieves an embedding by filename
func (r *EmbeddingRepository) Get(ctx context.Context, ns database.Namespace, filename string) (*database.EmbeddingRecord, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT filename, embedding, model, created_at, updated_at
		FROM %s
		WHERE filename = $1
	`, ns.Table())

	var rec database.EmbeddingRecord
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, query, filename).Scan(
		&rec.Filename,
		&vec,
		&rec.Model,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", database.ErrNotFound, ns, filename)
	}
	if err != nil {
		return nil, database.StorageError("query embedding", err)
	}

	rec.Embedding = vec.Slice()
	return &rec, nil
}

// GetAll returns every embedding of ns keyed by filename
func (r *EmbeddingRepository) GetAll(ctx context.Context, ns database.Namespace) (map[string][]float32, []database.SkippedRecord, error) {
	if err := ns.Validate(); err != nil {
		return nil, nil, err
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT filename, embedding FROM %s ORDER BY filename", ns.Table()))
	if err != nil {
		return nil, nil, database.StorageError("query embeddings", err)
	}
	defer rows.Close()

	embeddings := make(map[string][]float32)
	var skipped []database.SkippedRecord
	for rows.Next() {
		var filename string
		var vec pgvector.Vector
		if err := rows.Scan(&filename, &vec); err != nil {
			return nil, nil, database.StorageError("scan embedding", err)
		}
		if len(vec.Slice()) == 0 {
			skipped = append(skipped, database.SkippedRecord{Filename: filename, Err: errors.New("empty vector")})
			continue
		}
		embeddings[filename] = vec.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, nil, database.StorageError("iterate embeddings", err)
	}
	return embeddings, skipped, nil
}

// List returns every record of ns ordered by filename
func (r *EmbeddingRepository) List(ctx context.Context, ns database.Namespace) ([]database.EmbeddingRecord, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT filename, embedding, model, created_at, updated_at
		FROM %s
		ORDER BY filename
	`, ns.Table())
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, database.StorageError("list embeddings", err)
	}
	defer rows.Close()

	var records []database.EmbeddingRecord
	for rows.Next() {
		var rec database.EmbeddingRecord
		var vec pgvector.Vector
		if err := rows.Scan(&rec.Filename, &vec, &rec.Model, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, database.StorageError("scan embedding", err)
		}
		rec.Embedding = vec.Slice()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.StorageError("iterate embeddings", err)
	}
	return records, nil
}

// Count returns the number of embeddings stored in ns
func (r *EmbeddingRepository) Count(ctx context.Context, ns database.Namespace) (int, error) {
	if err := ns.Validate(); err != nil {
		return 0, err
	}
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+ns.Table()).Scan(&count); err != nil {
		return 0, database.StorageError("count embeddings", err)
	}
	return count, nil
}

// Upsert stores or overwrites the embedding for filename
func (r *EmbeddingRepository) Upsert(ctx context.Context, ns database.Namespace, filename string, embedding []float32, model string) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	if len(embedding) == 0 {
		return database.StorageError("upsert embedding "+filename, errors.New("embedding is empty"))
	}

	unlock := r.locks.Lock(ns)
	defer unlock()

	query := fmt.Sprintf(`
		INSERT INTO %s (filename, embedding, model, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (filename) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			updated_at = NOW()
	`, ns.Table())

	if _, err := r.pool.Exec(ctx, query, filename, pgvector.NewVector(embedding), model); err != nil {
		return database.StorageError("upsert embedding "+filename, err)
	}
	return nil
}

// Delete removes the embedding for filename
func (r *EmbeddingRepository) Delete(ctx context.Context, ns database.Namespace, filename string) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	unlock := r.locks.Lock(ns)
	defer unlock()

	if _, err := r.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE filename = $1", ns.Table()), filename); err != nil {
		return database.StorageError("delete embedding "+filename, err)
	}
	return nil
}

// Drop empties ns. The table itself is owned by the migrations and is kept.
func (r *EmbeddingRepository) Drop(ctx context.Context, ns database.Namespace) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	unlock := r.locks.Lock(ns)
	defer unlock()

	if _, err := r.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY", ns.Table())); err != nil {
		return database.StorageError("truncate "+ns.Table(), err)
	}
	return nil
}

// Close closes the underlying pool
func (r *EmbeddingRepository) Close() error {
	return r.pool.Close()
}
