package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/vaultindex/internal/embed"
	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
	"github.com/Aman-CERP/vaultindex/internal/fingerprint"
	"github.com/Aman-CERP/vaultindex/internal/persist"
	"github.com/Aman-CERP/vaultindex/internal/queue"
	"github.com/Aman-CERP/vaultindex/internal/search"
	"github.com/Aman-CERP/vaultindex/internal/store"
	"github.com/Aman-CERP/vaultindex/internal/watcher"
)

// DefaultSaveInterval is how often a running service persists its state.
const DefaultSaveInterval = 30 * time.Second

// Config configures a Service.
type Config struct {
	Queue         queue.Config
	Index         store.Options
	Search        search.EngineConfig
	DebounceDelay time.Duration
	EmbedTimeout  time.Duration

	// SaveInterval is the periodic save period (0 = 30s, <0 disables).
	SaveInterval time.Duration
}

// Dependencies are the collaborators a Service is built from. The caller
// keeps ownership of Provider and Storage and closes them after Close.
type Dependencies struct {
	Source   Source
	Provider embed.Provider
	Storage  persist.Storage

	// Optional
	Changes       watcher.Source
	Logger        *slog.Logger
	QueueObserver queue.Observer
	Recorder      Recorder
	SearchRecord  search.Recorder
}

// OpenInfo describes how the service's state was restored.
type OpenInfo struct {
	// Restored is true when an index snapshot was loaded.
	Restored bool

	// Rebuilt is true when a stored snapshot was discarded because the
	// embedding model or dimension changed, or it could not be read.
	Rebuilt bool

	Documents   int
	QueuedItems int
	Snapshot    store.SnapshotInfo
}

// Service owns the whole pipeline for one vault: index, queue, fingerprint
// cache, debouncer, worker, coordinator and persistence.
type Service struct {
	cfg      Config
	deps     Dependencies
	logger   *slog.Logger
	index    *store.Index
	cache    *fingerprint.Cache
	queue    *queue.Queue
	debounce *watcher.Debouncer
	worker   *Worker
	coord    *Coordinator
	engine   *search.Engine
	info     OpenInfo

	// commitMu is shared by the worker and the coordinator.
	commitMu sync.Mutex

	saveMu       sync.Mutex
	savedVersion uint64
	savedQueue   string
	saved        bool

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Open restores the persisted index and queue state and wires the
// pipeline. Nothing runs until Start.
func Open(ctx context.Context, cfg Config, deps Dependencies) (*Service, error) {
	if deps.Source == nil || deps.Provider == nil || deps.Storage == nil {
		return nil, fmt.Errorf("open index service: source, provider and storage are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SaveInterval == 0 {
		cfg.SaveInterval = DefaultSaveInterval
	}
	if cfg.Index.Dimensions == 0 {
		cfg.Index.Dimensions = deps.Provider.Dimensions()
	}

	s := &Service{
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		cache:    fingerprint.NewCache(),
		debounce: watcher.NewDebouncer(cfg.DebounceDelay),
	}

	if err := s.restoreIndex(ctx); err != nil {
		return nil, err
	}

	opts := []queue.Option{queue.WithLogger(logger)}
	if deps.QueueObserver != nil {
		opts = append(opts, queue.WithObserver(deps.QueueObserver))
	}

	var err error
	s.worker, err = NewWorker(WorkerDependencies{
		Source:     deps.Source,
		Provider:   deps.Provider,
		Index:      s.index,
		Cache:      s.cache,
		Logger:     logger,
		Recorder:   deps.Recorder,
		CommitLock: &s.commitMu,
	}, cfg.EmbedTimeout)
	if err != nil {
		return nil, err
	}
	s.queue = queue.New(cfg.Queue, s.worker.Process, opts...)

	s.coord, err = NewCoordinator(CoordinatorDependencies{
		Source:     deps.Source,
		Queue:      s.queue,
		Index:      s.index,
		Cache:      s.cache,
		Debouncer:  s.debounce,
		Logger:     logger,
		Recorder:   deps.Recorder,
		CommitLock: &s.commitMu,
	}, cfg.DebounceDelay)
	if err != nil {
		return nil, err
	}

	engineOpts := []search.EngineOption{search.WithLogger(logger)}
	if deps.SearchRecord != nil {
		engineOpts = append(engineOpts, search.WithRecorder(deps.SearchRecord))
	}
	s.engine, err = search.NewEngine(s.index, deps.Provider, cfg.Search, engineOpts...)
	if err != nil {
		return nil, err
	}

	if !s.info.Rebuilt {
		n, err := s.queue.LoadState(ctx, deps.Storage, persist.QueueStateKey)
		if err != nil {
			logger.Warn("queue_state_discarded", slog.String("error", err.Error()))
		}
		s.info.QueuedItems = n
	}
	if s.info.Restored {
		// Storage already holds this state.
		s.markSaved()
	}

	if deps.Recorder != nil {
		deps.Recorder.IndexSizeChanged(s.index.Len())
	}

	logger.Info("index_service_opened",
		slog.Bool("restored", s.info.Restored),
		slog.Bool("rebuilt", s.info.Rebuilt),
		slog.Int("documents", s.info.Documents),
		slog.Int("queued", s.info.QueuedItems),
		slog.String("model", deps.Provider.ModelName()))
	return s, nil
}

// restoreIndex loads the snapshot, or creates an empty index when there is
// none or it no longer matches the provider.
func (s *Service) restoreIndex(ctx context.Context) error {
	storage := s.deps.Storage
	model := s.deps.Provider.ModelName()

	blob, err := storage.ReadBytes(ctx, persist.IndexSnapshotKey)
	switch {
	case errors.Is(err, persist.ErrNotFound):
		return s.freshIndex()
	case err != nil:
		return fmt.Errorf("read index snapshot: %w", err)
	}

	info, err := store.ReadSnapshotInfo(blob)
	if err == nil && info.Model != model {
		err = fmt.Errorf("%w: snapshot model %q, provider model %q", store.ErrIncompatibleSnapshot, info.Model, model)
	}
	var idx *store.Index
	if err == nil {
		idx, info, err = store.Restore(blob, s.cfg.Index)
	}
	if err != nil {
		// Any unusable snapshot is discarded and the vault re-indexed.
		s.logger.Warn("index_rebuild_required",
			slog.String("reason", err.Error()),
			slog.String("model", model))
		if delErr := storage.DeleteBytes(ctx, persist.IndexSnapshotKey); delErr != nil {
			return fmt.Errorf("discard index snapshot: %w", delErr)
		}
		if delErr := storage.DeleteBytes(ctx, persist.QueueStateKey); delErr != nil {
			return fmt.Errorf("discard queue state: %w", delErr)
		}
		s.info.Rebuilt = true
		return s.freshIndex()
	}

	s.index = idx
	s.info.Restored = true
	s.info.Snapshot = info
	s.info.Documents = idx.Len()
	s.primeCache()
	return nil
}

func (s *Service) freshIndex() error {
	idx, err := store.NewIndex(s.cfg.Index)
	if err != nil {
		return err
	}
	s.index = idx
	return nil
}

// primeCache seeds fingerprints from restored records so unchanged
// documents are not re-embedded after a restart.
func (s *Service) primeCache() {
	ids := s.index.IDs()
	docs := make([]fingerprint.Doc, 0, len(ids))
	for _, id := range ids {
		rec, ok := s.index.Get(id)
		if !ok {
			continue
		}
		docs = append(docs, fingerprint.Doc{
			Key:     id,
			ModTime: rec.Metadata.LastModified,
			Size:    rec.Metadata.SizeBytes,
		})
	}
	s.cache.Prime(docs)
}

// Start runs the queue, the change-event loop (when a change source was
// given) and the periodic saver. It returns immediately.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return queue.ErrClosed
	}
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := s.queue.Start(runCtx); err != nil {
		cancel()
		return err
	}
	s.cancel = cancel
	s.started = true

	if changes := s.deps.Changes; changes != nil {
		s.wg.Add(3)
		go func() {
			defer s.wg.Done()
			if err := changes.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("change_source_failed", slog.String("error", err.Error()))
			}
		}()
		go func() {
			defer s.wg.Done()
			s.coord.Run(runCtx, changes.Events())
		}()
		go func() {
			defer s.wg.Done()
			for err := range changes.Errors() {
				s.logger.Warn("change_source_error", slog.String("error", err.Error()))
			}
		}()
	}

	if s.cfg.SaveInterval > 0 {
		s.wg.Add(1)
		go s.saveLoop(runCtx)
	}
	return nil
}

func (s *Service) saveLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Save(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("periodic_save_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Save persists the index snapshot and queue state. It is skipped when
// neither changed since the last save.
func (s *Service) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	version := s.index.Version()
	items := s.queue.Items()
	failures := s.queue.Failures()
	sig := s.stateSignature(items, failures)
	if s.saved && version == s.savedVersion && sig == s.savedQueue {
		return nil
	}

	start := time.Now()
	blob, err := s.index.Snapshot(s.deps.Provider.ModelName())
	if err != nil {
		return err
	}
	if err := s.deps.Storage.WriteBytes(ctx, persist.IndexSnapshotKey, blob); err != nil {
		return verrors.New(verrors.ErrCodeStorageFailed, "write index snapshot", err)
	}

	state, err := queue.EncodeStateWithFailures(items, failures)
	if err != nil {
		return err
	}
	if err := s.deps.Storage.WriteBytes(ctx, persist.QueueStateKey, state); err != nil {
		return verrors.New(verrors.ErrCodeStorageFailed, "write queue state", err)
	}

	s.saved = true
	s.savedVersion = version
	s.savedQueue = sig

	s.logger.Debug("state_saved",
		slog.Int("documents", s.index.Len()),
		slog.Int("queued", len(items)),
		slog.Int("snapshot_bytes", len(blob)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// markSaved records the current state as persisted.
func (s *Service) markSaved() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.saved = true
	s.savedVersion = s.index.Version()
	s.savedQueue = s.stateSignature(s.queue.Items(), s.queue.Failures())
}

// stateSignature identifies the persisted part of the queue.
func (s *Service) stateSignature(items []queue.Item, failures []queue.Failure) string {
	return queueSignature(items) + "failures:" + strconv.Itoa(len(failures))
}

// queueSignature identifies the persisted part of the queue.
func queueSignature(items []queue.Item) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(it.Key)
		b.WriteByte(0)
		b.WriteString(strconv.Itoa(int(it.Priority)))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(it.RetryCount))
		b.WriteByte('\n')
	}
	return b.String()
}

// Close stops the change source, debouncer and queue, then saves a final
// time. Safe to call multiple times.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if s.deps.Changes != nil {
		_ = s.deps.Changes.Stop()
	}
	s.debounce.Stop()
	s.queue.Stop()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	saveErr := s.Save(ctx)
	closeErr := s.index.Close()

	s.logger.Info("index_service_closed", slog.Int("documents", s.index.Len()))
	return errors.Join(saveErr, closeErr)
}

// Reconcile queues new and changed documents and drops records of deleted
// ones. See Coordinator.Reconcile.
func (s *Service) Reconcile(ctx context.Context) (ReconcileResult, error) {
	return s.coord.Reconcile(ctx)
}

// HandleEvent applies a change event, e.g. from a host that delivers its
// own notifications.
func (s *Service) HandleEvent(ctx context.Context, ev watcher.ChangeEvent) {
	s.coord.HandleEvent(ctx, ev)
}

// WaitIdle blocks until the queue has no pending, processing or
// backing-off items.
func (s *Service) WaitIdle(ctx context.Context) error {
	return s.queue.WaitIdle(ctx)
}

// Progress returns queue progress.
func (s *Service) Progress() queue.Progress {
	return s.queue.Progress()
}

// Failures returns the failure ledger.
func (s *Service) Failures() []queue.Failure {
	return s.queue.Failures()
}

// Items returns a snapshot of queued items.
func (s *Service) Items() []queue.Item {
	return s.queue.Items()
}

// Queue returns the work queue.
func (s *Service) Queue() *queue.Queue {
	return s.queue
}

// Engine returns the search engine over the service's index.
func (s *Service) Engine() *search.Engine {
	return s.engine
}

// Index returns the live index.
func (s *Service) Index() *store.Index {
	return s.index
}

// Info reports how state was restored by Open.
func (s *Service) Info() OpenInfo {
	return s.info
}
