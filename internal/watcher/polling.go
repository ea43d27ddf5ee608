package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/vaultindex/internal/fingerprint"
	"github.com/Aman-CERP/vaultindex/internal/scanner"
)

// PollingWatcher watches for document changes by periodically listing the
// vault. Used as a fallback when fsnotify is not available.
type PollingWatcher struct {
	vault     *scanner.Scanner
	interval  time.Duration
	fileState map[string]fingerprint.Doc
	events    chan ChangeEvent
	errors    chan error
	stopCh    chan struct{}
	mu        sync.Mutex
	stopped   bool
}

// NewPollingWatcher creates a new polling watcher with the given interval.
func NewPollingWatcher(s *scanner.Scanner, interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		vault:     s,
		interval:  interval,
		fileState: make(map[string]fingerprint.Doc),
		events:    make(chan ChangeEvent, 100),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
}

// Start begins polling. It blocks until Stop is called or ctx is done.
func (p *PollingWatcher) Start(ctx context.Context) error {
	// Initial scan to establish baseline
	docs, err := p.vault.List(ctx)
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}
	p.mu.Lock()
	for _, d := range docs {
		p.fileState[d.Key] = d
	}
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.detectChanges(ctx); err != nil {
				select {
				case p.errors <- err:
				default:
				}
			}
		}
	}
}

// Stop stops the polling watcher.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}

	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of change events.
func (p *PollingWatcher) Events() <-chan ChangeEvent {
	return p.events
}

// Errors returns the channel of errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

// detectChanges compares the current listing with the previous one and
// emits events for the differences.
func (p *PollingWatcher) detectChanges(ctx context.Context) error {
	docs, err := p.vault.List(ctx)
	if err != nil {
		return fmt.Errorf("list vault for changes: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]fingerprint.Doc, len(docs))
	for _, d := range docs {
		current[d.Key] = d

		prev, exists := p.fileState[d.Key]
		switch {
		case !exists:
			p.emitEvent(ChangeEvent{Key: d.Key, Operation: OpCreate, Timestamp: time.Now()})
		case !prev.ModTime.Equal(d.ModTime) || prev.Size != d.Size:
			p.emitEvent(ChangeEvent{Key: d.Key, Operation: OpModify, Timestamp: time.Now()})
		}
	}

	for key := range p.fileState {
		if _, exists := current[key]; !exists {
			p.emitEvent(ChangeEvent{Key: key, Operation: OpDelete, Timestamp: time.Now()})
		}
	}

	p.fileState = current
	return nil
}

// emitEvent sends an event to the events channel.
// Must be called with lock held.
func (p *PollingWatcher) emitEvent(event ChangeEvent) {
	if p.stopped {
		return
	}

	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("key", event.Key),
			slog.String("op", event.Operation.String()),
		)
	}
}
