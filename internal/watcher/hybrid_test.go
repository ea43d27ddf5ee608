package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vaultindex/internal/scanner"
)

func newVault(t *testing.T) (string, *scanner.Scanner) {
	t.Helper()
	root := t.TempDir()
	s, err := scanner.New(scanner.Options{Root: root})
	require.NoError(t, err)
	return root, s
}

// waitFor reads events until one matches or the timeout expires.
func waitFor(t *testing.T, events <-chan ChangeEvent, match func(ChangeEvent) bool) ChangeEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("event channel closed")
			}
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "UNKNOWN", Operation(99).String())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{EventBufferSize: 5}.WithDefaults()

	assert.Equal(t, 5, opts.EventBufferSize)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 100*time.Millisecond, opts.RenameWindow)
}

func TestHybridWatcher_RequiresScanner(t *testing.T) {
	_, err := NewHybridWatcher(nil, DefaultOptions())
	assert.Error(t, err)
}

func TestHybridWatcher_Polling_DetectsLifecycle(t *testing.T) {
	// Given: a polling watcher over an empty vault
	root, s := newVault(t)
	w, err := NewHybridWatcher(s, Options{PollInterval: 20 * time.Millisecond, ForcePolling: true})
	require.NoError(t, err)
	require.Equal(t, "polling", w.WatcherType())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	note := filepath.Join(root, "note.md")

	// When: a note is created
	require.NoError(t, os.WriteFile(note, []byte("# Note"), 0o644))
	ev := waitFor(t, w.Events(), func(e ChangeEvent) bool { return e.Key == "note.md" })
	assert.Equal(t, OpCreate, ev.Operation)

	// When: it grows
	require.NoError(t, os.WriteFile(note, []byte("# Note\n\nmore text"), 0o644))
	ev = waitFor(t, w.Events(), func(e ChangeEvent) bool { return e.Key == "note.md" })
	assert.Equal(t, OpModify, ev.Operation)

	// When: it is deleted
	require.NoError(t, os.Remove(note))
	ev = waitFor(t, w.Events(), func(e ChangeEvent) bool { return e.Key == "note.md" })
	assert.Equal(t, OpDelete, ev.Operation)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestHybridWatcher_Fsnotify_CreateAndIgnore(t *testing.T) {
	root, s := newVault(t)
	w, err := NewHybridWatcher(s, DefaultOptions())
	require.NoError(t, err)
	if w.WatcherType() != "fsnotify" {
		t.Skip("fsnotify not available")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// When: a non-markdown file and a note are written
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte("# Note"), 0o644))

	// Then: the note is reported and the image never is
	ev := waitFor(t, w.Events(), func(e ChangeEvent) bool {
		require.NotEqual(t, "image.png", e.Key)
		return e.Key == "note.md"
	})
	assert.Contains(t, []Operation{OpCreate, OpModify}, ev.Operation)

	require.NoError(t, w.Stop())
}

func TestHybridWatcher_Fsnotify_RenamePairsWithCreate(t *testing.T) {
	root, s := newVault(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "old.md"), []byte("# Old"), 0o644))

	w, err := NewHybridWatcher(s, Options{RenameWindow: 500 * time.Millisecond})
	require.NoError(t, err)
	if w.WatcherType() != "fsnotify" {
		t.Skip("fsnotify not available")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// When: the note is renamed within the vault
	require.NoError(t, os.Rename(filepath.Join(root, "old.md"), filepath.Join(root, "new.md")))

	// Then: a single rename event links both keys
	ev := waitFor(t, w.Events(), func(e ChangeEvent) bool { return e.Key == "new.md" })
	assert.Equal(t, OpRename, ev.Operation)
	assert.Equal(t, "old.md", ev.OldKey)

	require.NoError(t, w.Stop())
}
