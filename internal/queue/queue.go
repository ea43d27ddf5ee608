package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
)

// ErrClosed is returned when starting a queue that was stopped.
var ErrClosed = errors.New("queue closed")

// entry is the live, queue-owned state of an item.
type entry struct {
	item      Item
	retry     *time.Timer        // set while waiting out a backoff
	cancel    context.CancelFunc // set while processing
	removed   bool               // removed while processing; result is discarded
	rerun     bool               // re-added after removal while processing
	startedAt time.Time
}

// Queue is a priority work queue with bounded concurrency.
//
// At most one live item exists per key. High items dispatch before Low
// items and each priority is FIFO. Items waiting on a retry backoff are
// pending but not dispatchable until their timer re-enters them.
type Queue struct {
	cfg      Config
	process  ProcessFunc
	logger   *slog.Logger
	observer Observer

	mu        sync.Mutex
	live      map[string]*entry
	high      []string
	low       []string
	inFlight  int
	completed int
	failed    int
	failures  []Failure
	paused    bool
	running   bool
	closed    bool
	runCtx    context.Context
	stop      context.CancelFunc
	changed   chan struct{} // closed and replaced on every state change

	wake chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithObserver registers an observer for queue events.
func WithObserver(o Observer) Option {
	return func(q *Queue) {
		if o != nil {
			q.observer = o
		}
	}
}

// New creates a stopped queue that runs process for each item.
func New(cfg Config, process ProcessFunc, opts ...Option) *Queue {
	q := &Queue{
		cfg:      cfg.WithDefaults(),
		process:  process,
		logger:   slog.Default(),
		observer: nopObserver{},
		live:     make(map[string]*entry),
		changed:  make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Config returns the effective configuration.
func (q *Queue) Config() Config {
	return q.cfg
}

// Enqueue adds key with priority p.
//
// A pending key is raised to High (never lowered) and moved to the front
// of the High order; a processing key is ignored. Returns true if a new
// item was created.
func (q *Queue) Enqueue(key string, p Priority) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if key == "" || q.closed {
		return false
	}

	if e, ok := q.live[key]; ok {
		if e.item.Status == StatusProcessing {
			if e.removed {
				e.removed = false
				e.rerun = true
				e.item.Priority = maxPriority(e.item.Priority, p)
			}
			return false
		}
		if p == PriorityHigh && e.item.Priority == PriorityLow {
			e.item.Priority = PriorityHigh
			// Items in backoff keep waiting; they re-enter as High.
			if e.retry == nil {
				q.low = removeKey(q.low, key)
				q.pushFrontLocked(key, PriorityHigh)
			}
			q.notifyLocked()
		}
		return false
	}

	q.live[key] = &entry{item: Item{
		Key:      key,
		Priority: p,
		Status:   StatusPending,
		AddedAt:  time.Now(),
	}}
	q.pushLocked(key, p)
	q.observer.ItemEnqueued(p)
	q.notifyLocked()
	return true
}

// Remove drops a pending item. A processing item has its context cancelled
// and its result discarded. Returns true if the key was live.
func (q *Queue) Remove(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.live[key]
	if !ok {
		return false
	}

	if e.item.Status == StatusProcessing {
		e.removed = true
		if e.cancel != nil {
			e.cancel()
		}
		return true
	}

	if e.retry != nil {
		e.retry.Stop()
	}
	q.high = removeKey(q.high, key)
	q.low = removeKey(q.low, key)
	delete(q.live, key)
	q.notifyLocked()
	return true
}

// Start launches the scheduler. Items are processed until Stop is called
// or ctx is cancelled.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if q.running {
		return nil
	}

	q.runCtx, q.stop = context.WithCancel(ctx)
	q.running = true

	q.wg.Add(1)
	go q.schedule(q.runCtx)

	q.logger.Debug("queue_started",
		slog.Int("concurrency", q.cfg.Concurrency),
		slog.Int("max_retries", q.cfg.MaxRetries))
	return nil
}

// Stop cancels in-flight work and waits for the scheduler and jobs to exit.
// Interrupted items return to pending so they can be saved.
// Safe to call multiple times.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	stop := q.stop
	for key, e := range q.live {
		if e.retry != nil {
			e.retry.Stop()
			e.retry = nil
			e.item.RetryAt = nil
			q.pushLocked(key, e.item.Priority)
		}
	}
	q.mu.Unlock()

	if stop != nil {
		stop()
	}
	q.wg.Wait()

	q.mu.Lock()
	q.running = false
	q.notifyLocked()
	q.mu.Unlock()
}

// Pause stops dispatching new items. Running items finish normally.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume restarts dispatching after Pause.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.notifyLocked()
	q.mu.Unlock()
}

// Paused reports whether dispatching is paused.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// schedule is the single control loop. It dispatches while capacity and
// ready items allow, then sleeps until something changes.
func (q *Queue) schedule(ctx context.Context) {
	defer q.wg.Done()

	for {
		q.dispatchReady(ctx)

		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
	}
}

// dispatchReady starts as many ready items as capacity allows.
func (q *Queue) dispatchReady(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.paused && ctx.Err() == nil && q.inFlight < q.cfg.Concurrency {
		key, ok := q.popLocked()
		if !ok {
			return
		}
		e := q.live[key]

		now := time.Now()
		e.item.Status = StatusProcessing
		e.item.StartedAt = &now
		e.item.RetryAt = nil
		e.startedAt = now

		jobCtx, cancel := context.WithCancel(ctx)
		e.cancel = cancel
		q.inFlight++
		q.observer.ItemDispatched()
		q.observer.DepthChanged(len(q.live)-q.inFlight, q.inFlight)

		snapshot := e.item
		q.wg.Add(1)
		go q.run(jobCtx, cancel, snapshot)
	}
}

// run executes one item and reports the result back to the queue.
func (q *Queue) run(ctx context.Context, cancel context.CancelFunc, item Item) {
	defer q.wg.Done()
	defer cancel()

	err := q.safeProcess(ctx, item)
	q.finish(item.Key, err)
}

// safeProcess turns a panic in process into a terminal error so one bad
// document cannot take down the scheduler.
func (q *Queue) safeProcess(ctx context.Context, item Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = verrors.InternalError(fmt.Sprintf("panic while processing %s: %v", item.Key, r), nil)
		}
	}()
	return q.process(ctx, item)
}

// finish applies the outcome of a processed item.
func (q *Queue) finish(key string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	defer q.notifyLocked()

	q.inFlight--
	e, ok := q.live[key]
	if !ok {
		return
	}
	e.cancel = nil
	now := time.Now()

	switch {
	case e.removed:
		delete(q.live, key)

	case e.rerun:
		// Deleted and re-created while running: start over from scratch.
		e.rerun = false
		e.item = Item{Key: key, Priority: e.item.Priority, Status: StatusPending, AddedAt: now}
		q.pushLocked(key, e.item.Priority)

	case err == nil:
		e.item.Status = StatusCompleted
		e.item.CompletedAt = &now
		delete(q.live, key)
		q.completed++
		q.observer.ItemCompleted(now.Sub(e.startedAt))
		q.logger.Debug("queue_item_completed",
			slog.String("key", key),
			slog.Int("retry_count", e.item.RetryCount),
			slog.Duration("duration", now.Sub(e.startedAt)))

	case q.runCtx.Err() != nil:
		// Interrupted by Stop: not the document's fault, keep it pending.
		e.item.Status = StatusPending
		e.item.StartedAt = nil
		q.pushFrontLocked(key, e.item.Priority)

	default:
		q.handleFailureLocked(e, err, now)
	}

	q.observer.DepthChanged(len(q.live)-q.inFlight, q.inFlight)
}

// handleFailureLocked retries transient failures with backoff and moves
// everything else to the failure ledger.
func (q *Queue) handleFailureLocked(e *entry, err error, now time.Time) {
	key := e.item.Key
	e.item.LastError = err.Error()
	e.item.StartedAt = nil

	class := verrors.Classify(err)
	if class == verrors.ClassTransient {
		e.item.RetryCount++
		if e.item.RetryCount < q.cfg.MaxRetries {
			delay := q.cfg.Retry.Delay(e.item.RetryCount)
			retryAt := now.Add(delay)
			e.item.Status = StatusPending
			e.item.RetryAt = &retryAt
			e.retry = time.AfterFunc(delay, func() { q.requeue(key, e) })

			q.observer.ItemRetried(delay)
			q.logger.Warn("queue_item_retry",
				slog.String("key", key),
				slog.Int("retry_count", e.item.RetryCount),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()))
			return
		}
	}

	terminal := class == verrors.ClassTerminal
	e.item.Status = StatusFailed
	e.item.CompletedAt = &now
	delete(q.live, key)
	q.failed++
	q.recordFailureLocked(Failure{
		Key:        key,
		LastError:  e.item.LastError,
		RetryCount: e.item.RetryCount,
		Terminal:   terminal,
		FailedAt:   now,
	})
	q.observer.ItemFailed(terminal)

	attrs := append([]any{
		slog.String("key", key),
		slog.Int("retry_count", e.item.RetryCount),
		slog.Bool("terminal", terminal),
	}, verrors.LogAttrs(err)...)
	q.logger.Error("queue_item_failed", attrs...)
}

// requeue returns an item to the dispatch order once its backoff elapsed.
func (q *Queue) requeue(key string, e *entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// The entry may have been removed, or replaced by a fresh enqueue.
	if cur, ok := q.live[key]; !ok || cur != e || e.retry == nil {
		return
	}
	e.retry = nil
	e.item.RetryAt = nil
	q.pushLocked(key, e.item.Priority)
	q.notifyLocked()
}

// recordFailureLocked appends to the bounded failure ledger.
func (q *Queue) recordFailureLocked(f Failure) {
	q.failures = append(q.failures, f)
	if over := len(q.failures) - q.cfg.FailureLedgerSize; over > 0 {
		q.failures = append([]Failure(nil), q.failures[over:]...)
	}
}

// pushLocked appends key to the back of its priority order.
func (q *Queue) pushLocked(key string, p Priority) {
	if p == PriorityHigh {
		q.high = append(q.high, key)
	} else {
		q.low = append(q.low, key)
	}
}

// pushFrontLocked puts key at the front of its priority order.
func (q *Queue) pushFrontLocked(key string, p Priority) {
	if p == PriorityHigh {
		q.high = append([]string{key}, q.high...)
	} else {
		q.low = append([]string{key}, q.low...)
	}
}

// popLocked takes the next dispatchable key: High before Low, FIFO within.
func (q *Queue) popLocked() (string, bool) {
	if len(q.high) > 0 {
		key := q.high[0]
		q.high = q.high[1:]
		return key, true
	}
	if len(q.low) > 0 {
		key := q.low[0]
		q.low = q.low[1:]
		return key, true
	}
	return "", false
}

// notifyLocked wakes the scheduler and any WaitIdle callers.
func (q *Queue) notifyLocked() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
	close(q.changed)
	q.changed = make(chan struct{})
}

// Progress returns item counts by state.
func (q *Queue) Progress() Progress {
	q.mu.Lock()
	defer q.mu.Unlock()

	p := Progress{
		Processing: q.inFlight,
		Pending:    len(q.live) - q.inFlight,
		Completed:  q.completed,
		Failed:     q.failed,
	}
	p.Total = p.Pending + p.Processing + p.Completed + p.Failed
	return p
}

// ResetCounters zeroes the cumulative completed and failed counts.
func (q *Queue) ResetCounters() {
	q.mu.Lock()
	q.completed = 0
	q.failed = 0
	q.notifyLocked()
	q.mu.Unlock()
}

// Items returns a snapshot of live items in dispatch order: processing,
// then ready High, ready Low, and finally items waiting on a backoff.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]Item, 0, len(q.live))
	var processing, backingOff []Item
	for _, e := range q.live {
		switch {
		case e.item.Status == StatusProcessing:
			processing = append(processing, e.item)
		case e.retry != nil:
			backingOff = append(backingOff, e.item)
		}
	}
	sort.Slice(processing, func(i, j int) bool {
		return processing[i].StartedAt.Before(*processing[j].StartedAt)
	})
	sort.Slice(backingOff, func(i, j int) bool {
		return backingOff[i].RetryAt.Before(*backingOff[j].RetryAt)
	})

	items = append(items, processing...)
	for _, key := range q.high {
		items = append(items, q.live[key].item)
	}
	for _, key := range q.low {
		items = append(items, q.live[key].item)
	}
	items = append(items, backingOff...)
	return items
}

// Failures returns a copy of the failure ledger, oldest first.
func (q *Queue) Failures() []Failure {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Failure(nil), q.failures...)
}

// ClearFailures empties the failure ledger.
func (q *Queue) ClearFailures() {
	q.mu.Lock()
	q.failures = nil
	q.mu.Unlock()
}

// WaitIdle blocks until no item is pending or processing, or ctx is done.
func (q *Queue) WaitIdle(ctx context.Context) error {
	for {
		q.mu.Lock()
		idle := len(q.live) == 0
		changed := q.changed
		q.mu.Unlock()

		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Changed returns a channel that is closed on the next state change.
func (q *Queue) Changed() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.changed
}

func maxPriority(a, b Priority) Priority {
	if a > b {
		return a
	}
	return b
}

func removeKey(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
