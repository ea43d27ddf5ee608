package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
	"github.com/Aman-CERP/vaultindex/internal/persist"
)

// StateVersion is the queue state format version.
const StateVersion = 1

// state is the persisted queue document.
type state struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Items   []Item    `json:"items"`

	// Failures is informational. It is reported by status tools and never
	// restored into a running queue.
	Failures []Failure `json:"failures,omitempty"`
}

// EncodeState serializes the pending and processing items among items.
// Completed and failed items are never resumed and are skipped.
func EncodeState(items []Item) ([]byte, error) {
	return EncodeStateWithFailures(items, nil)
}

// EncodeStateWithFailures is EncodeState plus a copy of the failure ledger.
func EncodeStateWithFailures(items []Item, failures []Failure) ([]byte, error) {
	st := state{Version: StateVersion, SavedAt: time.Now().UTC(), Items: []Item{}, Failures: failures}
	for _, it := range items {
		if it.Status != StatusPending && it.Status != StatusProcessing {
			continue
		}
		st.Items = append(st.Items, it)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode queue state: %w", err)
	}
	return data, nil
}

// DecodeFailures returns the failure ledger stored in a queue state blob.
func DecodeFailures(data []byte) ([]Failure, error) {
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, verrors.New(verrors.ErrCodeCorruptSnapshot, "decode queue state", err)
	}
	if st.Version != StateVersion {
		return nil, verrors.New(verrors.ErrCodeIncompatible,
			fmt.Sprintf("queue state version %d, want %d", st.Version, StateVersion), nil)
	}
	return st.Failures, nil
}

// DecodeState parses a queue state blob. Processing items come back as
// pending since in-flight work cannot be resumed.
func DecodeState(data []byte) ([]Item, error) {
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, verrors.New(verrors.ErrCodeCorruptSnapshot, "decode queue state", err)
	}
	if st.Version != StateVersion {
		return nil, verrors.New(verrors.ErrCodeIncompatible,
			fmt.Sprintf("queue state version %d, want %d", st.Version, StateVersion), nil)
	}

	items := make([]Item, 0, len(st.Items))
	for _, it := range st.Items {
		if it.Key == "" {
			continue
		}
		it.Status = StatusPending
		it.StartedAt = nil
		it.CompletedAt = nil
		it.RetryAt = nil
		items = append(items, it)
	}
	return items, nil
}

// SaveState writes the queue's unfinished items to storage under key.
func (q *Queue) SaveState(ctx context.Context, store persist.Storage, key string) error {
	data, err := EncodeState(q.Items())
	if err != nil {
		return err
	}
	if err := store.WriteBytes(ctx, key, data); err != nil {
		return fmt.Errorf("save queue state: %w", err)
	}
	return nil
}

// LoadState restores items saved by SaveState. Keys already live are left
// alone. A missing blob is not an error. Returns the number restored.
func (q *Queue) LoadState(ctx context.Context, store persist.Storage, key string) (int, error) {
	data, err := store.ReadBytes(ctx, key)
	if errors.Is(err, persist.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load queue state: %w", err)
	}

	items, err := DecodeState(data)
	if err != nil {
		return 0, err
	}
	n := q.Restore(items)
	q.logger.Info("queue_state_restored", slog.Int("items", n))
	return n, nil
}

// Restore re-adds items as pending, keeping their priority, retry count
// and original enqueue time, in the given order.
func (q *Queue) Restore(items []Item) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}

	n := 0
	for _, it := range items {
		if _, ok := q.live[it.Key]; ok || it.Key == "" {
			continue
		}
		if it.RetryCount >= q.cfg.MaxRetries {
			it.RetryCount = q.cfg.MaxRetries - 1
		}
		it.Status = StatusPending
		it.StartedAt, it.CompletedAt, it.RetryAt = nil, nil, nil
		q.live[it.Key] = &entry{item: it}
		q.pushLocked(it.Key, it.Priority)
		q.observer.ItemEnqueued(it.Priority)
		n++
	}
	if n > 0 {
		q.notifyLocked()
	}
	return n
}
