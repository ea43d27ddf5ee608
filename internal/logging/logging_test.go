package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()

	assert.Equal(t, "server.log", filepath.Base(path))
	assert.Contains(t, path, ".vaultindex")
	assert.Equal(t, DefaultLogDir(), filepath.Dir(path))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxFiles)
	assert.True(t, cfg.WriteToStderr)
	assert.Equal(t, "debug", DebugConfig().Level)
}

func TestServeMode_NeverWritesToStderr(t *testing.T) {
	cfg := ServeMode(Config{Level: "info", WriteToStderr: true})

	assert.False(t, cfg.WriteToStderr)
	assert.Equal(t, DefaultLogPath(), cfg.FilePath)
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelFromString(tt.in))
		})
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: file-only logging at warn
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: path})
	require.NoError(t, err)

	// When: logging below and at the threshold
	logger.Info("ignored_event")
	logger.Warn("queue_stalled", slog.Int("pending", 3))
	cleanup()

	// Then: only the warning is in the file, as JSON
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ignored_event")
	assert.Contains(t, string(data), `"msg":"queue_stalled"`)
	assert.Contains(t, string(data), `"pending":3`)
}

func TestSetup_NoOutputs_Discards(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "debug"})
	require.NoError(t, err)
	defer cleanup()

	assert.NotPanics(t, func() { logger.Info("nowhere") })
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestViewer_TailFiltersByLevel(t *testing.T) {
	// Given: a log with mixed levels
	path := writeLog(t,
		`{"time":"2024-05-01T10:00:00Z","level":"DEBUG","msg":"change_event","key":"a.md"}`,
		`{"time":"2024-05-01T10:00:01Z","level":"INFO","msg":"reconcile_complete","enqueued":2}`,
		`{"time":"2024-05-01T10:00:02Z","level":"WARN","msg":"vector_search_degraded"}`,
	)
	v := NewViewer(ViewerConfig{Level: "info", NoColor: true}, &bytes.Buffer{})

	// When: tailing everything
	entries, err := v.Tail(path, 10)

	// Then: debug is filtered out
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "reconcile_complete", entries[0].Msg)
	assert.Equal(t, float64(2), entries[0].Attrs["enqueued"])
	assert.Equal(t, "vector_search_degraded", entries[1].Msg)
}

func TestViewer_TailKeepsLastLines(t *testing.T) {
	path := writeLog(t,
		`{"level":"INFO","msg":"one"}`,
		`{"level":"INFO","msg":"two"}`,
		`{"level":"INFO","msg":"three"}`,
	)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 2)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Msg)
	assert.Equal(t, "three", entries[1].Msg)
}

func TestViewer_PatternAndRawLines(t *testing.T) {
	path := writeLog(t,
		`plain text line about notes`,
		`{"level":"ERROR","msg":"document_failed","key":"notes/a.md"}`,
		`{"level":"ERROR","msg":"document_failed","key":"journal/b.md"}`,
	)
	var out bytes.Buffer
	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`notes`), NoColor: true}, &out)

	entries, err := v.Tail(path, 10)
	require.NoError(t, err)
	v.Print(entries)

	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsValid)
	assert.Contains(t, out.String(), "plain text line about notes")
	assert.Contains(t, out.String(), "ERROR document_failed key=notes/a.md")
	assert.NotContains(t, out.String(), "journal")
}

func TestViewer_FormatEntrySortsAttrs(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	entry := parseLine(`{"time":"2024-05-01T10:00:00Z","level":"INFO","msg":"m","z":1,"a":"x"}`)

	line := v.FormatEntry(entry)

	assert.True(t, strings.HasSuffix(line, "INFO  m a=x z=1"), line)
}

func TestViewer_FollowSeesAppendedLines(t *testing.T) {
	// Given: a log file being followed
	path := writeLog(t, `{"level":"INFO","msg":"before"}`)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// When: a line is appended
	require.Eventually(t, func() bool {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return false
		}
		_, _ = f.WriteString(`{"level":"INFO","msg":"after"}` + "\n")
		_ = f.Close()

		select {
		case e := <-entries:
			return e.Msg == "after"
		case <-time.After(300 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	// Then: cancelling stops Follow cleanly
	cancel()
	assert.NoError(t, <-done)
}
