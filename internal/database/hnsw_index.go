package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-matcher/internal/facematch"
)

// ErrIndexEmpty is returned by Search before Build or Load populated the graph.
var ErrIndexEmpty = errors.New("index not initialized")

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	Namespace Namespace `json:"namespace"`
	Metric    string    `json:"metric"`
	Count     int       `json:"count"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"` // For future compatibility
}

const hnswMetadataVersion = 1

// HNSWIndex is an approximate nearest-neighbour index over one namespace, keyed by filename.
// It narrows candidates only; callers re-score the hits exactly.
type HNSWIndex struct {
	namespace Namespace
	metric    facematch.Metric
	graph     *hnsw.Graph[string]
	mu        sync.RWMutex
}

// NewHNSWIndex creates an empty index for ns using metric's distance.
func NewHNSWIndex(ns Namespace, metric facematch.Metric) (*HNSWIndex, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	return &HNSWIndex{namespace: ns, metric: metric}, nil
}

func (h *HNSWIndex) newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	if h.metric == facematch.MetricEuclidean {
		g.Distance = hnsw.EuclideanDistance
	} else {
		g.Distance = hnsw.CosineDistance
	}
	return g
}

// Build replaces the graph with the given embeddings.
// Vectors whose length differs from the first one seen are skipped and returned.
func (h *HNSWIndex) Build(embeddings map[string][]float32) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(embeddings) == 0 {
		h.graph = nil
		return nil
	}

	g := h.newGraph()
	dim := 0
	var skipped []string
	for filename, emb := range embeddings {
		if len(emb) == 0 {
			skipped = append(skipped, filename)
			continue
		}
		if dim == 0 {
			dim = len(emb)
		}
		if len(emb) != dim {
			skipped = append(skipped, filename)
			continue
		}
		g.Add(hnsw.MakeNode(filename, emb))
	}
	h.graph = g
	return skipped
}

// BuildFromStore loads every embedding of the index namespace and builds the graph.
func (h *HNSWIndex) BuildFromStore(ctx context.Context, store EmbeddingReader) (int, []SkippedRecord, error) {
	embeddings, skipped, err := store.GetAll(ctx, h.namespace)
	if err != nil {
		return 0, nil, err
	}
	for _, filename := range h.Build(embeddings) {
		skipped = append(skipped, SkippedRecord{Filename: filename, Err: facematch.ErrDimensionMismatch})
		delete(embeddings, filename)
	}
	return len(embeddings), skipped, nil
}

// Search returns up to k candidate filenames nearest to query.
func (h *HNSWIndex) Search(query []float32, k int) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || h.graph.Len() == 0 {
		return nil, ErrIndexEmpty
	}
	if k <= 0 {
		k = h.graph.Len()
	}

	neighbors := h.graph.Search(query, k*HNSWSearchMultiplier)
	filenames := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		filenames = append(filenames, n.Key)
	}
	return filenames, nil
}

// Add inserts or replaces a single embedding.
func (h *HNSWIndex) Add(filename string, embedding []float32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(embedding) == 0 {
		return
	}
	if h.graph == nil {
		h.graph = h.newGraph()
	}
	h.graph.Delete(filename)
	h.graph.Add(hnsw.MakeNode(filename, embedding))
}

// Delete removes filename from the graph.
func (h *HNSWIndex) Delete(filename string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.graph != nil {
		h.graph.Delete(filename)
	}
}

// Count returns the number of indexed embeddings.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.graph == nil {
		return 0
	}
	return h.graph.Len()
}

// IndexPath returns the file used for ns under base.
func IndexPath(base string, ns Namespace) string {
	return fmt.Sprintf("%s.%s.hnsw", base, ns)
}

// Save persists the graph and its metadata sidecar to path.
func (h *HNSWIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close HNSW index file: %w", err)
	}

	metadata := HNSWIndexMetadata{
		Namespace: h.namespace,
		Metric:    string(h.metric),
		Count:     h.graph.Len(),
		BuildTime: time.Now().UTC(),
		Version:   hnswMetadataVersion,
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", data, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load reads a graph written by Save. It fails when the sidecar names another namespace or metric.
func (h *HNSWIndex) Load(path string) (HNSWIndexMetadata, error) {
	metadata, err := LoadHNSWMetadata(path)
	if err != nil {
		return metadata, err
	}
	if metadata.Namespace != h.namespace || metadata.Metric != string(h.metric) {
		return metadata, fmt.Errorf("index %s was built for %s/%s", path, metadata.Namespace, metadata.Metric)
	}

	if _, err := os.Stat(path); err != nil {
		return metadata, fmt.Errorf("failed to open HNSW index: %w", err)
	}
	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return metadata, fmt.Errorf("failed to load HNSW index: %w", err)
	}

	// The export carries the graph parameters; search settings follow this index.
	g := saved.Graph
	defaults := h.newGraph()
	g.Distance = defaults.Distance
	g.EfSearch = defaults.EfSearch

	h.mu.Lock()
	h.graph = g
	h.mu.Unlock()
	return metadata, nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}
