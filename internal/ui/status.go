package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Aman-CERP/vaultindex/internal/queue"
)

// StatusInfo contains index health information.
type StatusInfo struct {
	Vault     string `json:"vault"`
	Documents int    `json:"documents"`

	Model         string `json:"model"`
	Dimensions    int    `json:"dimensions"`
	Provider      string `json:"provider"`
	VectorBackend string `json:"vector_backend"`

	Storage      string    `json:"storage"`
	SnapshotAt   time.Time `json:"snapshot_at,omitempty"`
	SnapshotSize int64     `json:"snapshot_size"`

	Pending  int             `json:"pending"`
	Failures []queue.Failure `json:"failures"`

	// Stale is set when the stored snapshot was built with another model
	// or dimension and will be rebuilt on the next index run.
	Stale bool `json:"stale"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.Vault))

	_, _ = fmt.Fprintf(r.out, "  Documents:  %d\n", info.Documents)
	if info.SnapshotAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Snapshot:   %s\n", r.styles.Warning.Render("none"))
	} else {
		_, _ = fmt.Fprintf(r.out, "  Snapshot:   %s (%s, %s)\n",
			formatTime(info.SnapshotAt), FormatBytes(info.SnapshotSize), info.Storage)
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Embeddings:")
	_, _ = fmt.Fprintf(r.out, "    Provider:   %s\n", info.Provider)
	_, _ = fmt.Fprintf(r.out, "    Model:      %s\n", info.Model)
	_, _ = fmt.Fprintf(r.out, "    Dimensions: %d\n", info.Dimensions)
	_, _ = fmt.Fprintf(r.out, "    Vectors:    %s\n", info.VectorBackend)
	if info.Stale {
		_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Warning.Render("snapshot model differs from configuration; next run rebuilds"))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Queue:      %d pending\n", info.Pending)
	if len(info.Failures) == 0 {
		_, _ = fmt.Fprintf(r.out, "  Failures:   %s\n", r.styles.Success.Render("none"))
		return nil
	}
	_, _ = fmt.Fprintf(r.out, "  Failures:   %s\n", r.styles.Error.Render(fmt.Sprint(len(info.Failures))))
	for _, f := range info.Failures {
		kind := "exhausted"
		if f.Terminal {
			kind = "terminal"
		}
		_, _ = fmt.Fprintf(r.out, "    %s [%s, %d retries] %s\n", f.Key, kind, f.RetryCount, f.LastError)
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
