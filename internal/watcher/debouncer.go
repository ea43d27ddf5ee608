package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDelay is the quiescence period before a debounced action runs.
const DefaultDebounceDelay = 3 * time.Second

// Debouncer delays an action per key until changes to that key have been
// quiet for the delay. Registering again for a pending key restarts its
// timer and replaces the action, so only the latest action runs.
type Debouncer struct {
	delay   time.Duration
	mu      sync.Mutex
	pending map[string]*debounceEntry
	gen     uint64
	stopped bool
}

type debounceEntry struct {
	timer *time.Timer
	gen   uint64
}

// NewDebouncer creates a Debouncer. A non-positive delay uses
// DefaultDebounceDelay.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*debounceEntry),
	}
}

// Debounce schedules action to run after delay of quiescence on key.
// A non-positive delay uses the debouncer default.
func (d *Debouncer) Debounce(key string, action func(), delay time.Duration) {
	if delay <= 0 {
		delay = d.delay
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[key]; ok {
		existing.timer.Stop()
	}

	d.gen++
	gen := d.gen
	entry := &debounceEntry{gen: gen}
	entry.timer = time.AfterFunc(delay, func() {
		d.fire(key, gen, action)
	})
	d.pending[key] = entry
}

// fire runs action unless it was superseded or cancelled after the timer
// had already started firing.
func (d *Debouncer) fire(key string, gen uint64, action func()) {
	d.mu.Lock()
	entry, ok := d.pending[key]
	if !ok || entry.gen != gen || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	action()
}

// Cancel drops the pending action for key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.pending[key]; ok {
		entry.timer.Stop()
		delete(d.pending, key)
	}
}

// CancelAll drops every pending action.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, entry := range d.pending {
		entry.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending returns the number of keys waiting to fire.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels everything; later Debounce calls are ignored.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.CancelAll()

	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}
