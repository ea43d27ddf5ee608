// Package ui provides terminal UI components for indexing progress and
// index status display.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/vaultindex/internal/queue"
)

// Snapshot is one progress sample taken from the work queue.
type Snapshot struct {
	Progress queue.Progress
	// Active lists the keys being processed.
	Active []string
}

// ProviderInfo describes the embedding backend.
type ProviderInfo struct {
	Name       string // "ollama", "openai" or "static"
	Model      string
	Dimensions int
}

// Summary contains final indexing statistics.
type Summary struct {
	Documents int // documents in the vault
	Indexed   int // documents in the index afterwards
	Completed int
	Removed   int
	Duration  time.Duration
	Failures  []queue.Failure
	Provider  ProviderInfo
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Update shows a new progress sample.
	Update(s Snapshot)

	// Complete marks rendering as complete with summary.
	Complete(s Summary)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	VaultDir   string // shown in the header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithVaultDir sets the vault path shown in the header.
func WithVaultDir(dir string) ConfigOption {
	return func(c *Config) {
		c.VaultDir = dir
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	if DetectNoColor() {
		cfg.NoColor = true
	}
	return cfg
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// text renderer for CI, pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// Watch samples q whenever it changes, feeding r until ctx is done.
// Samples are rate limited to one per interval.
func Watch(ctx context.Context, q *queue.Queue, r Renderer, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		changed := q.Changed()
		r.Update(sample(q))

		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sample(q *queue.Queue) Snapshot {
	s := Snapshot{Progress: q.Progress()}
	for _, it := range q.Items() {
		if it.Status == queue.StatusProcessing {
			s.Active = append(s.Active, it.Key)
		}
	}
	return s
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
