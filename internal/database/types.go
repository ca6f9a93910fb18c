package database

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get when no record exists for a filename.
	ErrNotFound = errors.New("embedding not found")
	// ErrStorage wraps backend I/O and serialization failures.
	ErrStorage = errors.New("storage failure")
	// ErrInvalidNamespace is returned for anything but reference and group.
	ErrInvalidNamespace = errors.New("invalid namespace, use 'reference' or 'group'")
)

// Namespace is one of the two independent filename -> embedding tables.
type Namespace string

const (
	NamespaceReference Namespace = "reference"
	NamespaceGroup     Namespace = "group"
)

// Namespaces lists every namespace in a stable order.
var Namespaces = []Namespace{NamespaceReference, NamespaceGroup}

// ParseNamespace accepts "reference", "ref" and "group".
func ParseNamespace(s string) (Namespace, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reference", "ref", "references":
		return NamespaceReference, nil
	case "group", "groups":
		return NamespaceGroup, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidNamespace, s)
}

// Table returns the SQL table backing the namespace.
func (n Namespace) Table() string {
	if n == NamespaceGroup {
		return "group_images"
	}
	return "reference_images"
}

// Validate returns ErrInvalidNamespace for unknown values.
func (n Namespace) Validate() error {
	if n == NamespaceReference || n == NamespaceGroup {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidNamespace, string(n))
}

// EmbeddingRecord is one stored face embedding. Filename is unique within a namespace.
type EmbeddingRecord struct {
	Filename  string    `json:"filename"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dim returns the embedding length.
func (r EmbeddingRecord) Dim() int {
	return len(r.Embedding)
}

// SkippedRecord describes a row GetAll could not deserialize.
type SkippedRecord struct {
	Filename string
	Err      error
}

// ExportData is a portable dump of both namespaces, used to move data between backends.
type ExportData struct {
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	References []EmbeddingRecord `json:"references"`
	Groups     []EmbeddingRecord `json:"groups"`
}

const currentExportVersion = 1

// storageErr wraps err as a StorageFailure with an operation label.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// StorageError is exported for backend packages.
func StorageError(op string, err error) error {
	return storageErr(op, err)
}
