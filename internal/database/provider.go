package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kozaktomas/face-matcher/internal/config"
)

// Opener constructs a backend from the store configuration.
type Opener func(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (EmbeddingWriter, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

// RegisterBackend registers a backend constructor under name.
// This is called from the backend packages' init to avoid import cycles.
func RegisterBackend(name string, opener Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if opener == nil {
		panic("database: RegisterBackend opener is nil")
	}
	backends[name] = opener
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open returns the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (EmbeddingWriter, error) {
	backendsMu.RLock()
	opener, ok := backends[cfg.Backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage backend %q not registered (available: %v)", cfg.Backend, Backends())
	}

	store, err := opener(ctx, cfg, logger)
	if err != nil {
		return nil, storageErr("open "+cfg.Backend, err)
	}
	logger.Debug("storage backend opened", "backend", cfg.Backend)
	return store, nil
}
