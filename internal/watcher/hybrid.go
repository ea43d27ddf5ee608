package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/vaultindex/internal/scanner"
)

// HybridWatcher implements Source using fsnotify as the primary watching
// mechanism with polling as a fallback.
type HybridWatcher struct {
	vault         *scanner.Scanner
	fsWatcher     *fsnotify.Watcher
	pollWatcher   *PollingWatcher
	useFsnotify   bool
	events        chan ChangeEvent
	errors        chan error
	stopCh        chan struct{}
	opts          Options
	mu            sync.RWMutex
	stopped       bool
	renames       map[string]*time.Timer
	droppedEvents atomic.Uint64
}

var _ Source = (*HybridWatcher)(nil)

// NewHybridWatcher creates a watcher for the vault behind s.
// Falls back to polling if fsnotify cannot be initialised.
func NewHybridWatcher(s *scanner.Scanner, opts Options) (*HybridWatcher, error) {
	if s == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	opts = opts.WithDefaults()

	h := &HybridWatcher{
		vault:   s,
		events:  make(chan ChangeEvent, opts.EventBufferSize),
		errors:  make(chan error, 10),
		stopCh:  make(chan struct{}),
		opts:    opts,
		renames: make(map[string]*time.Timer),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			h.fsWatcher = fsw
			h.useFsnotify = true
			return h, nil
		}
		slog.Warn("fsnotify unavailable, falling back to polling",
			slog.String("error", err.Error()))
	}

	h.pollWatcher = NewPollingWatcher(s, opts.PollInterval)
	return h, nil
}

// Start begins watching the vault.
func (h *HybridWatcher) Start(ctx context.Context) error {
	if h.useFsnotify {
		return h.startFsnotify(ctx)
	}
	return h.startPolling(ctx)
}

// startFsnotify starts the fsnotify-based watcher.
func (h *HybridWatcher) startFsnotify(ctx context.Context) error {
	if err := h.addRecursive(h.vault.Root()); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case event, ok := <-h.fsWatcher.Events:
			if !ok {
				return nil
			}
			h.handleFsnotifyEvent(event)
		case err, ok := <-h.fsWatcher.Errors:
			if !ok {
				return nil
			}
			h.emitError(err)
		}
	}
}

// startPolling forwards events from the polling watcher.
func (h *HybridWatcher) startPolling(ctx context.Context) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case event, ok := <-h.pollWatcher.Events():
				if !ok {
					return
				}
				h.emit(event)
			case err, ok := <-h.pollWatcher.Errors():
				if !ok {
					return
				}
				h.emitError(err)
			}
		}
	}()

	return h.pollWatcher.Start(ctx)
}

// handleFsnotifyEvent converts and filters fsnotify events.
func (h *HybridWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	key, ok := h.vault.KeyFor(event.Name)
	if !ok {
		return
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if isDir {
			if h.vault.Filter().SkipDir(key) {
				return
			}
			// Files can land in a new directory before its watch exists.
			_ = h.addRecursive(event.Name)
			h.emitCreatesUnder(event.Name)
			return
		}
		if !h.vault.Filter().Match(key) {
			return
		}
		if oldKey, ok := h.takeRename(); ok {
			h.emit(ChangeEvent{Key: key, OldKey: oldKey, Operation: OpRename, Timestamp: time.Now()})
			return
		}
		h.emit(ChangeEvent{Key: key, Operation: OpCreate, Timestamp: time.Now()})

	case event.Op&fsnotify.Write != 0:
		if isDir || !h.vault.Filter().Match(key) {
			return
		}
		h.emit(ChangeEvent{Key: key, Operation: OpModify, Timestamp: time.Now()})

	case event.Op&fsnotify.Remove != 0:
		// The path is gone, so it may have been a directory of documents.
		if h.vault.Filter().Match(key) || !h.vault.Filter().SkipDir(key) {
			h.emit(ChangeEvent{Key: key, Operation: OpDelete, Timestamp: time.Now()})
		}

	case event.Op&fsnotify.Rename != 0:
		if h.vault.Filter().Match(key) {
			h.holdRename(key)
			return
		}
		if !h.vault.Filter().SkipDir(key) {
			h.emit(ChangeEvent{Key: key, Operation: OpDelete, Timestamp: time.Now()})
		}
	}
}

// holdRename parks a renamed-away key until the matching create arrives.
// If none arrives within the rename window it is reported as a delete.
func (h *HybridWatcher) holdRename(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	if t, ok := h.renames[key]; ok {
		t.Stop()
	}
	h.renames[key] = time.AfterFunc(h.opts.RenameWindow, func() {
		h.mu.Lock()
		_, pending := h.renames[key]
		delete(h.renames, key)
		h.mu.Unlock()
		if pending {
			h.emit(ChangeEvent{Key: key, Operation: OpDelete, Timestamp: time.Now()})
		}
	})
}

// takeRename claims a parked rename, if exactly one is waiting.
func (h *HybridWatcher) takeRename() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.renames) != 1 {
		return "", false
	}
	for key, t := range h.renames {
		t.Stop()
		delete(h.renames, key)
		return key, true
	}
	return "", false
}

// emitCreatesUnder reports every document below a newly created directory.
func (h *HybridWatcher) emitCreatesUnder(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if key, ok := h.vault.KeyFor(path); ok && h.vault.Filter().Match(key) {
			h.emit(ChangeEvent{Key: key, Operation: OpCreate, Timestamp: time.Now()})
		}
		return nil
	})
}

// addRecursive adds all directories under root to the fsnotify watcher.
func (h *HybridWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip directories we can't access
		}
		if !d.IsDir() {
			return nil
		}

		if key, ok := h.vault.KeyFor(path); ok && h.vault.Filter().SkipDir(key) {
			return filepath.SkipDir
		}
		return h.fsWatcher.Add(path)
	})
}

// emit sends an event to the output channel.
func (h *HybridWatcher) emit(event ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return
	}

	select {
	case h.events <- event:
	default:
		count := h.droppedEvents.Add(1)
		slog.Warn("event buffer full, dropping event",
			slog.String("key", event.Key),
			slog.String("op", event.Operation.String()),
			slog.Uint64("total_dropped_events", count),
		)
	}
}

// DroppedEvents returns the number of events dropped due to buffer overflow.
func (h *HybridWatcher) DroppedEvents() uint64 {
	return h.droppedEvents.Load()
}

// emitError sends an error to the error channel.
func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return
	}

	select {
	case h.errors <- err:
	default:
	}
}

// Stop stops the watcher and releases resources.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}

	h.stopped = true
	close(h.stopCh)

	for key, t := range h.renames {
		t.Stop()
		delete(h.renames, key)
	}

	if h.fsWatcher != nil {
		_ = h.fsWatcher.Close()
	}
	if h.pollWatcher != nil {
		_ = h.pollWatcher.Stop()
	}

	close(h.events)
	close(h.errors)
	return nil
}

// Events returns the channel of change events.
func (h *HybridWatcher) Events() <-chan ChangeEvent {
	return h.events
}

// Errors returns the channel of errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// WatcherType returns the type of watcher being used ("fsnotify" or "polling").
func (h *HybridWatcher) WatcherType() string {
	if h.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}
