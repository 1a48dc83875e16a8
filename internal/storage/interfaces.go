// Package storage provides the blob persistence interface used by thinkgraph.
//
// Every persisted artifact is a JSON document addressed by a namespace and a
// key: library snapshots live in NamespaceLibraries, system documents in
// NamespaceSystemJSON. Backends only move bytes; encoding belongs to callers.
package storage

import "context"

// Namespaces used by thinkgraph components.
const (
	NamespaceLibraries  = "libraries"
	NamespaceSystemJSON = "system_json"
)

// BlobStore persists opaque documents grouped by namespace.
type BlobStore interface {
	// Put creates or replaces the document at (namespace, key).
	Put(ctx context.Context, namespace, key string, data []byte) error

	// Get returns the document at (namespace, key).
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// List returns every document in namespace, sorted by key.
	// An unknown namespace yields an empty slice.
	List(ctx context.Context, namespace string) ([]BlobInfo, error)

	// Close releases backend resources.
	Close() error
}
