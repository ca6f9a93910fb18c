package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Dialect holds the statements that differ between SQL engines storing embeddings as JSON text.
type Dialect struct {
	Name string
	// CreateTable returns an idempotent DDL statement for table.
	CreateTable func(table string) string
	// Upsert returns an insert-or-overwrite statement taking
	// (filename, embedding, model, created_at, updated_at).
	Upsert func(table string) string
}

// TextStore implements EmbeddingWriter on a database/sql handle with embeddings kept as JSON text.
// Timestamps are stored as RFC 3339 strings so every engine reads them back the same way.
type TextStore struct {
	db      *sql.DB
	dialect Dialect
	locks   NamespaceLocks
	logger  *slog.Logger
	now     func() time.Time
}

// NewTextStore wraps db and creates both namespace tables.
func NewTextStore(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) (*TextStore, error) {
	s := &TextStore{db: db, dialect: dialect, logger: logger, now: time.Now}
	for _, ns := range Namespaces {
		if err := s.createTable(ctx, ns); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DB returns the underlying sql.DB for direct access.
func (s *TextStore) DB() *sql.DB {
	return s.db
}

func (s *TextStore) createTable(ctx context.Context, ns Namespace) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.CreateTable(ns.Table())); err != nil {
		return storageErr("create table "+ns.Table(), err)
	}
	return nil
}

func (s *TextStore) Exists(ctx context.Context, ns Namespace, filename string) (bool, error) {
	if err := ns.Validate(); err != nil {
		return false, err
	}
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE filename = ?", ns.Table())
	if err := s.db.QueryRowContext(ctx, query, filename).Scan(&n); err != nil {
		return false, storageErr("check embedding exists", err)
	}
	return n > 0, nil
}

func (s *TextStore) Get(ctx context.Context, ns Namespace, filename string) (*EmbeddingRecord, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT filename, embedding, model, created_at, updated_at FROM %s WHERE filename = ?`, ns.Table())

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, filename))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, ns, filename)
	}
	if err != nil {
		return nil, storageErr("get embedding "+filename, err)
	}
	return rec, nil
}

func (s *TextStore) GetAll(ctx context.Context, ns Namespace) (map[string][]float32, []SkippedRecord, error) {
	if err := ns.Validate(); err != nil {
		return nil, nil, err
	}
	query := fmt.Sprintf("SELECT filename, embedding FROM %s ORDER BY filename", ns.Table())
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, storageErr("query embeddings", err)
	}
	defer rows.Close()

	embeddings := make(map[string][]float32)
	var skipped []SkippedRecord
	for rows.Next() {
		var filename, text string
		if err := rows.Scan(&filename, &text); err != nil {
			return nil, nil, storageErr("scan embedding", err)
		}
		emb, err := DecodeEmbedding(text)
		if err != nil {
			s.logger.Warn("skipping undecodable embedding", "namespace", ns, "filename", filename, "error", err)
			skipped = append(skipped, SkippedRecord{Filename: filename, Err: err})
			continue
		}
		embeddings[filename] = emb
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storageErr("iterate embeddings", err)
	}
	return embeddings, skipped, nil
}

func (s *TextStore) List(ctx context.Context, ns Namespace) ([]EmbeddingRecord, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT filename, embedding, model, created_at, updated_at FROM %s ORDER BY filename`, ns.Table())
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("list embeddings", err)
	}
	defer rows.Close()

	var records []EmbeddingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable row", "namespace", ns, "error", err)
			continue
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate embeddings", err)
	}
	return records, nil
}

func (s *TextStore) Count(ctx context.Context, ns Namespace) (int, error) {
	if err := ns.Validate(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ns.Table()).Scan(&n); err != nil {
		return 0, storageErr("count embeddings", err)
	}
	return n, nil
}

func (s *TextStore) Upsert(ctx context.Context, ns Namespace, filename string, embedding []float32, model string) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	text, err := EncodeEmbedding(embedding)
	if err != nil {
		return storageErr("encode embedding "+filename, err)
	}

	unlock := s.locks.Lock(ns)
	defer unlock()

	now := s.now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, s.dialect.Upsert(ns.Table()), filename, text, model, now, now); err != nil {
		return storageErr("upsert embedding "+filename, err)
	}
	return nil
}

func (s *TextStore) Delete(ctx context.Context, ns Namespace, filename string) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	unlock := s.locks.Lock(ns)
	defer unlock()

	query := fmt.Sprintf("DELETE FROM %s WHERE filename = ?", ns.Table())
	if _, err := s.db.ExecContext(ctx, query, filename); err != nil {
		return storageErr("delete embedding "+filename, err)
	}
	return nil
}

// Drop removes the namespace table and recreates it empty.
func (s *TextStore) Drop(ctx context.Context, ns Namespace) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	unlock := s.locks.Lock(ns)
	defer unlock()

	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+ns.Table()); err != nil {
		return storageErr("drop table "+ns.Table(), err)
	}
	return s.createTable(ctx, ns)
}

func (s *TextStore) Close() error {
	if err := s.db.Close(); err != nil {
		return storageErr("close "+s.dialect.Name, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*EmbeddingRecord, error) {
	var rec EmbeddingRecord
	var text, created, updated string
	if err := row.Scan(&rec.Filename, &text, &rec.Model, &created, &updated); err != nil {
		return nil, err
	}
	emb, err := DecodeEmbedding(text)
	if err != nil {
		return nil, err
	}
	rec.Embedding = emb
	rec.CreatedAt = parseTimestamp(created)
	rec.UpdatedAt = parseTimestamp(updated)
	return &rec, nil
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
