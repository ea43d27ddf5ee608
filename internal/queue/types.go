// Package queue implements the priority work queue that drives indexing:
// bounded concurrent dispatch, retry with exponential backoff, a failure
// ledger and save/restore of unfinished work.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Priority orders pending work. High is dispatched before Low.
type Priority int

const (
	// PriorityLow is used for background reconciliation.
	PriorityLow Priority = iota
	// PriorityHigh is used for documents the user just changed.
	PriorityHigh
)

// String returns the priority name.
func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "low"
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	switch string(text) {
	case "high":
		*p = PriorityHigh
	case "low":
		*p = PriorityLow
	default:
		return fmt.Errorf("unknown priority %q", text)
	}
	return nil
}

// Status is the lifecycle state of an item.
type Status int

const (
	// StatusPending items wait for dispatch (or for their retry backoff).
	StatusPending Status = iota
	// StatusProcessing items are running.
	StatusProcessing
	// StatusCompleted items finished successfully.
	StatusCompleted
	// StatusFailed items exhausted retries or failed terminally.
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*s = StatusPending
	case "processing":
		*s = StatusProcessing
	case "completed":
		*s = StatusCompleted
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// Item is a snapshot of one unit of work.
type Item struct {
	Key         string     `json:"key"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   string     `json:"last_error,omitempty"`
	AddedAt     time.Time  `json:"added_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RetryAt     *time.Time `json:"retry_at,omitempty"`
}

// ProcessFunc does the work for one item. The returned error is classified
// to decide between retry and failure.
type ProcessFunc func(ctx context.Context, item Item) error

// Progress counts items by state. Completed and Failed are cumulative.
type Progress struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Done reports whether nothing is pending or processing.
func (p Progress) Done() bool {
	return p.Pending == 0 && p.Processing == 0
}

// Failure is a failure ledger entry.
type Failure struct {
	Key        string    `json:"key"`
	LastError  string    `json:"last_error"`
	RetryCount int       `json:"retry_count"`
	Terminal   bool      `json:"terminal"`
	FailedAt   time.Time `json:"failed_at"`
}

// RetryPolicy computes retry delays as min(Base*2^retryCount, Max).
type RetryPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultRetryPolicy returns the 1s base, 60s cap policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: time.Second, Max: 60 * time.Second}
}

// Delay returns the wait before the attempt that follows retryCount
// failed attempts.
func (p RetryPolicy) Delay(retryCount int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.Max
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 0; i < retryCount; i++ {
		d = b.NextBackOff()
	}
	if d > p.Max {
		d = p.Max
	}
	return d
}

// Config configures a Queue.
type Config struct {
	// Concurrency is the number of items processed at once.
	// Default: 2
	Concurrency int

	// MaxRetries bounds retries of transient failures.
	// Default: 5
	MaxRetries int

	// Retry is the backoff schedule between attempts.
	Retry RetryPolicy

	// FailureLedgerSize bounds the failure ledger; oldest entries are evicted.
	// Default: 100
	FailureLedgerSize int
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		MaxRetries:        5,
		Retry:             DefaultRetryPolicy(),
		FailureLedgerSize: 100,
	}
}

// WithDefaults returns the config with defaults applied for zero values.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.Retry.Base <= 0 {
		c.Retry.Base = d.Retry.Base
	}
	if c.Retry.Max <= 0 {
		c.Retry.Max = d.Retry.Max
	}
	if c.Retry.Max < c.Retry.Base {
		c.Retry.Max = c.Retry.Base
	}
	if c.FailureLedgerSize <= 0 {
		c.FailureLedgerSize = d.FailureLedgerSize
	}
	return c
}

// Observer receives queue events, e.g. for metrics.
type Observer interface {
	ItemEnqueued(p Priority)
	ItemDispatched()
	ItemCompleted(d time.Duration)
	ItemRetried(delay time.Duration)
	ItemFailed(terminal bool)
	DepthChanged(pending, processing int)
}

type nopObserver struct{}

func (nopObserver) ItemEnqueued(Priority)       {}
func (nopObserver) ItemDispatched()             {}
func (nopObserver) ItemCompleted(time.Duration) {}
func (nopObserver) ItemRetried(time.Duration)   {}
func (nopObserver) ItemFailed(bool)             {}
func (nopObserver) DepthChanged(int, int)       {}
