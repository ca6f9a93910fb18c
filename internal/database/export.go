package database

import (
	"context"
	"fmt"
	"time"
)

// Export dumps both namespaces. Undecodable rows are left out by List.
func Export(ctx context.Context, store EmbeddingReader) (*ExportData, error) {
	data := &ExportData{
		Version:    currentExportVersion,
		ExportedAt: time.Now().UTC(),
	}

	refs, err := store.List(ctx, NamespaceReference)
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	groups, err := store.List(ctx, NamespaceGroup)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	data.References = refs
	data.Groups = groups
	return data, nil
}

// ImportStats counts imported records per namespace.
type ImportStats struct {
	References int
	Groups     int
}

// Import upserts every record of data into store, overwriting existing filenames.
func Import(ctx context.Context, store EmbeddingWriter, data *ExportData) (ImportStats, error) {
	var stats ImportStats
	if data == nil {
		return stats, fmt.Errorf("import data is nil")
	}
	if data.Version > currentExportVersion {
		return stats, fmt.Errorf("unsupported export version %d (max %d)", data.Version, currentExportVersion)
	}

	for _, rec := range data.References {
		if err := store.Upsert(ctx, NamespaceReference, rec.Filename, rec.Embedding, rec.Model); err != nil {
			return stats, fmt.Errorf("import reference %s: %w", rec.Filename, err)
		}
		stats.References++
	}
	for _, rec := range data.Groups {
		if err := store.Upsert(ctx, NamespaceGroup, rec.Filename, rec.Embedding, rec.Model); err != nil {
			return stats, fmt.Errorf("import group %s: %w", rec.Filename, err)
		}
		stats.Groups++
	}
	return stats, nil
}
