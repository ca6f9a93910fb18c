package database

import (
	"context"
)

// EmbeddingReader provides read-only access to stored embeddings
type EmbeddingReader interface {
	// Exists reports whether filename is stored in ns
	Exists(ctx context.Context, ns Namespace, filename string) (bool, error)
	// Get retrieves one record, returns ErrNotFound if missing
	Get(ctx context.Context, ns Namespace, filename string) (*EmbeddingRecord, error)
	// GetAll returns every decodable embedding of ns keyed by filename.
	// Rows that fail to deserialize are reported in the second result and skipped.
	GetAll(ctx context.Context, ns Namespace) (map[string][]float32, []SkippedRecord, error)
	// List returns records ordered by filename, skipping undecodable rows
	List(ctx context.Context, ns Namespace) ([]EmbeddingRecord, error)
	// Count returns the number of rows in ns
	Count(ctx context.Context, ns Namespace) (int, error)
}

// EmbeddingWriter provides write access to stored embeddings
type EmbeddingWriter interface {
	EmbeddingReader

	// Upsert inserts or overwrites the embedding stored under filename
	Upsert(ctx context.Context, ns Namespace, filename string, embedding []float32, model string) error
	// Delete removes one record; deleting a missing record is not an error
	Delete(ctx context.Context, ns Namespace, filename string) error
	// Drop removes every record of ns and the backing table
	Drop(ctx context.Context, ns Namespace) error
	// Close releases the backend connection
	Close() error
}
