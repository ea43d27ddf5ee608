package persist

import (
	"context"
	"sync"
)

// MemoryStorage keeps blobs in memory. Used in tests and for ephemeral
// indexes.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

// WriteBytes implements Storage.
func (m *MemoryStorage) WriteBytes(_ context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	cp := append([]byte(nil), data...)

	m.mu.Lock()
	m.blobs[key] = cp
	m.mu.Unlock()
	return nil
}

// ReadBytes implements Storage.
func (m *MemoryStorage) ReadBytes(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Exists implements Storage.
func (m *MemoryStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[key]
	return ok, nil
}

// DeleteBytes implements Storage.
func (m *MemoryStorage) DeleteBytes(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.blobs, key)
	m.mu.Unlock()
	return nil
}

// Close implements Storage.
func (m *MemoryStorage) Close() error {
	return nil
}
