package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/vaultindex/internal/fingerprint"
	"github.com/Aman-CERP/vaultindex/internal/queue"
	"github.com/Aman-CERP/vaultindex/internal/store"
	"github.com/Aman-CERP/vaultindex/internal/watcher"
)

// CoordinatorDependencies contains the injected dependencies for Coordinator.
type CoordinatorDependencies struct {
	Source    Source
	Queue     *queue.Queue
	Index     *store.Index
	Cache     *fingerprint.Cache
	Debouncer *watcher.Debouncer

	// Optional
	Logger   *slog.Logger
	Recorder Recorder

	// CommitLock is the Worker's commit lock; nil uses a private one.
	CommitLock sync.Locker
}

// Coordinator turns change events into queue operations. Creates are
// enqueued at once, modifications after the debounce delay, and deletions
// are applied to the index directly.
type Coordinator struct {
	source    Source
	queue     *queue.Queue
	index     *store.Index
	cache     *fingerprint.Cache
	debouncer *watcher.Debouncer
	delay     time.Duration
	logger    *slog.Logger
	recorder  Recorder

	// mu serializes event handling with Reconcile and worker commits.
	mu sync.Locker
}

// ReconcileResult summarizes a Reconcile pass.
type ReconcileResult struct {
	// Documents is the number of documents found in the vault.
	Documents int

	// Enqueued is the number of new or changed documents queued.
	Enqueued int

	// Removed is the number of index records whose document is gone.
	Removed int

	Duration time.Duration
}

// NewCoordinator creates a Coordinator. delay is the modify debounce
// (0 uses the debouncer's default).
func NewCoordinator(deps CoordinatorDependencies, delay time.Duration) (*Coordinator, error) {
	if deps.Source == nil || deps.Queue == nil || deps.Index == nil || deps.Cache == nil || deps.Debouncer == nil {
		return nil, fmt.Errorf("coordinator: source, queue, index, cache and debouncer are required")
	}
	c := &Coordinator{
		source:    deps.Source,
		queue:     deps.Queue,
		index:     deps.Index,
		cache:     deps.Cache,
		debouncer: deps.Debouncer,
		delay:     delay,
		logger:    deps.Logger,
		recorder:  deps.Recorder,
		mu:        deps.CommitLock,
	}
	if c.mu == nil {
		c.mu = &sync.Mutex{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}
	return c, nil
}

// Run handles events until the channel closes or ctx is done.
func (c *Coordinator) Run(ctx context.Context, events <-chan watcher.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent applies a single change event.
func (c *Coordinator) HandleEvent(ctx context.Context, ev watcher.ChangeEvent) {
	c.logger.Debug("change_event",
		slog.String("key", ev.Key),
		slog.String("operation", ev.Operation.String()))

	switch ev.Operation {
	case watcher.OpCreate:
		c.enqueueIfChanged(ctx, ev.Key)
	case watcher.OpModify:
		key := ev.Key
		c.debouncer.Debounce(key, func() {
			if ctx.Err() != nil {
				return
			}
			c.enqueueIfChanged(ctx, key)
		}, c.delay)
	case watcher.OpDelete:
		c.remove(ev.Key)
	case watcher.OpRename:
		if ev.OldKey != "" {
			c.remove(ev.OldKey)
		}
		c.enqueueIfChanged(ctx, ev.Key)
	}
}

// enqueueIfChanged queues key at high priority when its fingerprint
// differs from the cached one.
func (c *Coordinator) enqueueIfChanged(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.source.Stat(ctx, key)
	if err != nil {
		// Gone again before we looked; the delete event covers it.
		c.logger.Debug("change_stat_failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return
	}
	if !c.cache.IsChanged(doc) {
		c.logger.Debug("change_unchanged", slog.String("key", key))
		return
	}
	c.queue.Enqueue(key, queue.PriorityHigh)
}

// remove drops key, and every key below it when key was a directory, from
// the debouncer, the queue, the index and the fingerprint cache.
func (c *Coordinator) remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := []string{key}
	prefix := strings.TrimSuffix(key, "/") + "/"

	removed, err := c.index.RemovePrefix(prefix)
	if err != nil {
		c.logger.Warn("index_remove_failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	keys = append(keys, removed...)
	for _, it := range c.queue.Items() {
		if strings.HasPrefix(it.Key, prefix) {
			keys = append(keys, it.Key)
		}
	}

	for _, k := range keys {
		c.debouncer.Cancel(k)
		c.queue.Remove(k)
		c.cache.Remove(k)
		if err := c.index.Remove(k); err != nil {
			c.logger.Warn("index_remove_failed", slog.String("key", k), slog.String("error", err.Error()))
		}
	}

	c.recorder.IndexSizeChanged(c.index.Len())
	c.logger.Debug("document_removed", slog.String("key", key), slog.Int("keys", len(keys)))
}

// Reconcile compares the vault with the index: new or changed documents
// are queued at low priority and records whose document is gone are
// removed.
func (c *Coordinator) Reconcile(ctx context.Context) (ReconcileResult, error) {
	start := time.Now()

	docs, err := c.source.List(ctx)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list documents: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result := ReconcileResult{Documents: len(docs)}
	present := make(map[string]bool, len(docs))
	for _, doc := range docs {
		present[doc.Key] = true
		if c.cache.IsChanged(doc) {
			if c.queue.Enqueue(doc.Key, queue.PriorityLow) {
				result.Enqueued++
			}
		}
	}

	for _, id := range c.index.IDs() {
		if present[id] {
			continue
		}
		c.queue.Remove(id)
		c.cache.Remove(id)
		if err := c.index.Remove(id); err == nil {
			result.Removed++
		}
	}
	if result.Removed > 0 {
		c.recorder.IndexSizeChanged(c.index.Len())
	}

	result.Duration = time.Since(start)
	c.logger.Info("reconcile_complete",
		slog.Int("documents", result.Documents),
		slog.Int("enqueued", result.Enqueued),
		slog.Int("removed", result.Removed),
		slog.Duration("duration", result.Duration))
	return result, nil
}
