package watcher

import (
	"context"
	"time"
)

// Operation represents a document change type.
type Operation int

const (
	// OpCreate indicates a new document was created.
	OpCreate Operation = iota
	// OpModify indicates an existing document was modified.
	OpModify
	// OpDelete indicates a document (or a directory of documents) was deleted.
	OpDelete
	// OpRename indicates a document moved from OldKey to Key.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// ChangeEvent is a single change notification. Delivery is at-least-once.
type ChangeEvent struct {
	// Key is the vault-relative, slash-separated document key.
	Key string

	// OldKey is the previous key for rename events.
	OldKey string

	// Operation is the type of change.
	Operation Operation

	// Timestamp is when the change was detected.
	Timestamp time.Time
}

// Source delivers change events for a vault.
type Source interface {
	// Start begins watching. It blocks until Stop is called or ctx is done.
	Start(ctx context.Context) error

	// Stop stops the source and closes its channels.
	// Safe to call multiple times.
	Stop() error

	// Events returns the channel of change events.
	Events() <-chan ChangeEvent

	// Errors returns non-fatal watcher errors.
	Errors() <-chan error
}

// Options configures the watcher behavior.
type Options struct {
	// PollInterval is the interval for polling mode (fallback).
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the size of the event channel buffer.
	// Default: 1000
	EventBufferSize int

	// RenameWindow is how long a rename-away waits for its matching create
	// before it is reported as a delete.
	// Default: 100ms
	RenameWindow time.Duration

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
		RenameWindow:    100 * time.Millisecond,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if o.RenameWindow == 0 {
		o.RenameWindow = defaults.RenameWindow
	}
	return o
}
