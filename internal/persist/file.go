package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a blocked writer retries the lock.
const lockRetryDelay = 50 * time.Millisecond

// FileStorage stores each blob as a file in a directory. Writes go to a
// temp file that is renamed into place, under an exclusive cross-process
// lock, so a concurrent reader sees either the old or the new blob.
type FileStorage struct {
	dir  string
	mu   sync.Mutex // flock is per handle, not per goroutine
	lock *flock.Flock
}

// NewFileStorage creates the directory if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStorage{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

// Dir returns the storage directory.
func (f *FileStorage) Dir() string {
	return f.dir
}

// path maps a key to a file name that cannot escape the directory.
func (f *FileStorage) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".bin")
}

// withLock runs fn while holding the exclusive directory lock.
func (f *FileStorage) withLock(ctx context.Context, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire storage lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquire storage lock: %s is held by another process", f.lock.Path())
	}
	defer func() { _ = f.lock.Unlock() }()

	return fn()
}

// WriteBytes implements Storage.
func (f *FileStorage) WriteBytes(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	return f.withLock(ctx, func() error {
		target := f.path(key)
		tmp, err := os.CreateTemp(f.dir, ".tmp-*")
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
		tmpPath := tmp.Name()

		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("write %s: %w", key, err)
		}
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return fmt.Errorf("sync %s: %w", key, err)
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("close %s: %w", key, err)
		}

		if err := os.Rename(tmpPath, target); err != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("rename %s: %w", key, err)
		}
		return nil
	})
}

// ReadBytes implements Storage.
func (f *FileStorage) ReadBytes(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Exists implements Storage.
func (f *FileStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, nil
}

// DeleteBytes implements Storage.
func (f *FileStorage) DeleteBytes(ctx context.Context, key string) error {
	return f.withLock(ctx, func() error {
		err := os.Remove(f.path(key))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

// Close implements Storage.
func (f *FileStorage) Close() error {
	return f.lock.Close()
}
