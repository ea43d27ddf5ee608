package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes). A line is
// written only when the completed or failed count changes.
type PlainRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	lastDone int
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, lastDone: -1}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// Update implements Renderer.
func (r *PlainRenderer) Update(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := s.Progress
	done := p.Completed + p.Failed
	if done == r.lastDone {
		return
	}
	r.lastDone = done

	_, _ = fmt.Fprintf(r.out, "[INDEX] %d/%d", done, p.Total)
	if p.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d failed)", p.Failed)
	}
	if len(s.Active) > 0 {
		_, _ = fmt.Fprintf(r.out, " - %s", s.Active[0])
	}
	_, _ = fmt.Fprintln(r.out)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d documents indexed (%d processed, %d removed) in %s",
		s.Indexed, s.Completed, s.Removed, s.Duration.Round(100*time.Millisecond))
	if len(s.Failures) > 0 {
		_, _ = fmt.Fprintf(r.out, ", %d failed", len(s.Failures))
	}
	_, _ = fmt.Fprintln(r.out)

	for _, f := range s.Failures {
		kind := "retries exhausted"
		if f.Terminal {
			kind = "terminal"
		}
		_, _ = fmt.Fprintf(r.out, "  FAILED %s (%s): %s\n", f.Key, kind, f.LastError)
	}

	if s.Provider.Name != "" {
		_, _ = fmt.Fprintf(r.out, "Embeddings: %s (%s, %d dims)\n",
			s.Provider.Name, s.Provider.Model, s.Provider.Dimensions)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
