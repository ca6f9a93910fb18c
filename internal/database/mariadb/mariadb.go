// Package mariadb stores embeddings in MariaDB or MySQL.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/database"
)

// BackendName is the STORE_BACKEND value selecting this package.
const BackendName = "mariadb"

var dialect = database.Dialect{
	Name: BackendName,
	CreateTable: func(table string) string {
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			filename VARCHAR(512) NOT NULL,
			embedding LONGTEXT NOT NULL,
			model VARCHAR(64) NOT NULL DEFAULT '',
			created_at VARCHAR(40) NOT NULL,
			updated_at VARCHAR(40) NOT NULL,
			UNIQUE KEY uq_%s_filename (filename)
		) CHARACTER SET utf8mb4`, table, table)
	},
	Upsert: func(table string) string {
		return fmt.Sprintf(`INSERT INTO %s (filename, embedding, model, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				embedding = VALUES(embedding),
				model = VALUES(model),
				updated_at = VALUES(updated_at)`, table)
	},
}

func init() {
	database.RegisterBackend(BackendName, func(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (database.EmbeddingWriter, error) {
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store, err := database.NewTextStore(ctx, pool.db, dialect, logger)
		if err != nil {
			_ = pool.Close()
			return nil, err
		}
		return store, nil
	})
}

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(ctx context.Context, cfg config.StoreConfig) (*Pool, error) {
	if cfg.MariaDBDSN == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := normalizeDSN(cfg.MariaDBDSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// normalizeDSN validates dsn and forces utf8mb4 so filenames round-trip.
func normalizeDSN(dsn string) (string, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	if parsed.Params == nil {
		parsed.Params = map[string]string{}
	}
	if _, ok := parsed.Params["charset"]; !ok {
		parsed.Params["charset"] = "utf8mb4"
	}
	return parsed.FormatDSN(), nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
