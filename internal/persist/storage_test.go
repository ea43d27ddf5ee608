package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()

	file, err := NewFileStorage(filepath.Join(t.TempDir(), "file"))
	require.NoError(t, err)
	sqlite, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "sqlite"))
	require.NoError(t, err)

	stores := map[string]Storage{
		BackendMemory: NewMemoryStorage(),
		BackendFile:   file,
		BackendSQLite: sqlite,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStorage_Contract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// Given: an empty store
			ok, err := s.Exists(ctx, IndexSnapshotKey)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = s.ReadBytes(ctx, IndexSnapshotKey)
			assert.ErrorIs(t, err, ErrNotFound)

			// When: a blob is written and overwritten
			require.NoError(t, s.WriteBytes(ctx, IndexSnapshotKey, []byte("v1")))
			require.NoError(t, s.WriteBytes(ctx, IndexSnapshotKey, []byte{0x00, 0xff, 0x10}))

			// Then: the latest bytes come back
			ok, err = s.Exists(ctx, IndexSnapshotKey)
			require.NoError(t, err)
			assert.True(t, ok)

			data, err := s.ReadBytes(ctx, IndexSnapshotKey)
			require.NoError(t, err)
			assert.Equal(t, []byte{0x00, 0xff, 0x10}, data)

			// And: keys are independent
			_, err = s.ReadBytes(ctx, QueueStateKey)
			assert.ErrorIs(t, err, ErrNotFound)

			// When: deleted twice
			require.NoError(t, s.DeleteBytes(ctx, IndexSnapshotKey))
			require.NoError(t, s.DeleteBytes(ctx, IndexSnapshotKey))

			ok, err = s.Exists(ctx, IndexSnapshotKey)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStorage_RejectsEmptyKey(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.WriteBytes(context.Background(), "", []byte("x")))
		})
	}
}

func TestMemoryStorage_CopiesData(t *testing.T) {
	s := NewMemoryStorage()
	buf := []byte("abc")
	require.NoError(t, s.WriteBytes(context.Background(), "k", buf))
	buf[0] = 'z'

	data, err := s.ReadBytes(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestFileStorage_KeysCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteBytes(context.Background(), "../outside", []byte("x")))

	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "outside.bin"))
	assert.True(t, os.IsNotExist(err))

	data, err := s.ReadBytes(context.Background(), "../outside")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestFileStorage_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteBytes(context.Background(), QueueStateKey, []byte("state")))

	matches, err := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestOpen(t *testing.T) {
	s, err := Open(BackendMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = Open("", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, s)
	_ = s.Close()

	_, err = Open("s3", t.TempDir())
	assert.Error(t, err)
}
