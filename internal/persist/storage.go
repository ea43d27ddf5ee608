// Package persist provides the durable byte storage the index snapshot and
// queue state are written to. Callers only ever write, read, check and
// delete opaque blobs under string keys.
package persist

import (
	"context"
	"errors"
	"fmt"
)

// Well-known storage keys.
const (
	IndexSnapshotKey = "index.snapshot"
	QueueStateKey    = "queue.state"
)

// ErrNotFound is returned by ReadBytes when no blob exists under the key.
var ErrNotFound = errors.New("blob not found")

// Storage stores opaque blobs under keys.
type Storage interface {
	// WriteBytes stores data under key, replacing any previous blob.
	// Readers never observe a partially written blob.
	WriteBytes(ctx context.Context, key string, data []byte) error

	// ReadBytes returns the blob under key, or ErrNotFound.
	ReadBytes(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// DeleteBytes removes the blob under key. Missing keys are not an error.
	DeleteBytes(ctx context.Context, key string) error

	// Close releases resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open creates the storage backend named by backend rooted at dir.
func Open(backend, dir string) (Storage, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStorage(dir)
	case BackendSQLite:
		return NewSQLiteStorage(dir)
	case BackendMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", backend)
	}
}

// validateKey rejects keys that cannot be stored safely.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty storage key")
	}
	return nil
}
