// Package sqlite is the default embedding store, a single local database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/database"
)

// BackendName is the STORE_BACKEND value selecting this package.
const BackendName = "sqlite"

var dialect = database.Dialect{
	Name: BackendName,
	CreateTable: func(table string) string {
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL UNIQUE,
			embedding TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`, table)
	},
	Upsert: func(table string) string {
		return fmt.Sprintf(`INSERT INTO %s (filename, embedding, model, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(filename) DO UPDATE SET
				embedding = excluded.embedding,
				model = excluded.model,
				updated_at = excluded.updated_at`, table)
	},
}

func init() {
	database.RegisterBackend(BackendName, func(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (database.EmbeddingWriter, error) {
		return Open(ctx, cfg.SQLitePath, logger)
	})
}

// Open opens (creating if needed) the database file at path.
// The special path ":memory:" keeps everything in memory.
func Open(ctx context.Context, path string, logger *slog.Logger) (*database.TextStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer connection; this also keeps a :memory: database alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	store, err := database.NewTextStore(ctx, db, dialect, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("sqlite store ready", "path", path)
	return store, nil
}
