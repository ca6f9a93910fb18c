// Package mock provides an in-memory database.EmbeddingWriter for testing.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-matcher/internal/database"
)

// MockStore is an in-memory implementation of database.EmbeddingWriter
type MockStore struct {
	mu      sync.RWMutex
	records map[database.Namespace]map[string]database.EmbeddingRecord
	corrupt map[database.Namespace]map[string]error

	// Error injection
	ExistsError error
	GetError    error
	GetAllError error
	UpsertError error
	DeleteError error
	DropError   error

	// UpsertCalls counts successful Upsert calls.
	UpsertCalls int
	Closed      bool
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		records: map[database.Namespace]map[string]database.EmbeddingRecord{
			database.NamespaceReference: {},
			database.NamespaceGroup:     {},
		},
		corrupt: map[database.Namespace]map[string]error{
			database.NamespaceReference: {},
			database.NamespaceGroup:     {},
		},
	}
}

// AddCorrupt registers a row that GetAll reports as skipped
func (m *MockStore) AddCorrupt(ns database.Namespace, filename string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corrupt[ns][filename] = err
}

func (m *MockStore) Exists(ctx context.Context, ns database.Namespace, filename string) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[ns][filename]
	return ok, nil
}

func (m *MockStore) Get(ctx context.Context, ns database.Namespace, filename string) (*database.EmbeddingRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[ns][filename]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", database.ErrNotFound, ns, filename)
	}
	rec.Embedding = slices.Clone(rec.Embedding)
	return &rec, nil
}

func (m *MockStore) GetAll(ctx context.Context, ns database.Namespace) (map[string][]float32, []database.SkippedRecord, error) {
	if m.GetAllError != nil {
		return nil, nil, m.GetAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]float32, len(m.records[ns]))
	for name, rec := range m.records[ns] {
		out[name] = slices.Clone(rec.Embedding)
	}
	var skipped []database.SkippedRecord
	for name, err := range m.corrupt[ns] {
		skipped = append(skipped, database.SkippedRecord{Filename: name, Err: err})
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Filename < skipped[j].Filename })
	return out, skipped, nil
}

func (m *MockStore) List(ctx context.Context, ns database.Namespace) ([]database.EmbeddingRecord, error) {
	if m.GetAllError != nil {
		return nil, m.GetAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.EmbeddingRecord, 0, len(m.records[ns]))
	for _, rec := range m.records[ns] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func (m *MockStore) Count(ctx context.Context, ns database.Namespace) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records[ns]) + len(m.corrupt[ns]), nil
}

func (m *MockStore) Upsert(ctx context.Context, ns database.Namespace, filename string, embedding []float32, model string) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	if err := ns.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	rec, ok := m.records[ns][filename]
	if !ok {
		rec.CreatedAt = now
	}
	rec.Filename = filename
	rec.Embedding = slices.Clone(embedding)
	rec.Model = model
	rec.UpdatedAt = now
	m.records[ns][filename] = rec
	delete(m.corrupt[ns], filename)
	m.UpsertCalls++
	return nil
}

func (m *MockStore) Delete(ctx context.Context, ns database.Namespace, filename string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records[ns], filename)
	delete(m.corrupt[ns], filename)
	return nil
}

func (m *MockStore) Drop(ctx context.Context, ns database.Namespace) error {
	if m.DropError != nil {
		return m.DropError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[ns] = map[string]database.EmbeddingRecord{}
	m.corrupt[ns] = map[string]error{}
	return nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Ensure interface compliance
var _ database.EmbeddingWriter = (*MockStore)(nil)
