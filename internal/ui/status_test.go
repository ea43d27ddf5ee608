package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vaultindex/internal/queue"
)

func TestStatusRenderer_Render(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)

	err := r.Render(StatusInfo{
		Vault:         "/notes",
		Documents:     42,
		Model:         "nomic-embed-text",
		Dimensions:    768,
		Provider:      "ollama",
		VectorBackend: "flat",
		Storage:       "file",
		SnapshotAt:    time.Now().Add(-2 * time.Hour),
		SnapshotSize:  3 * 1024 * 1024,
		Pending:       2,
		Failures: []queue.Failure{
			{Key: "broken.md", LastError: "rate limited", RetryCount: 5},
		},
	})

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Index Status: /notes")
	assert.Contains(t, out, "Documents:  42")
	assert.Contains(t, out, "2 hours ago (3.0 MB, file)")
	assert.Contains(t, out, "Dimensions: 768")
	assert.Contains(t, out, "2 pending")
	assert.Contains(t, out, "broken.md [exhausted, 5 retries] rate limited")
}

func TestStatusRenderer_NoSnapshotNoFailures(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)

	require.NoError(t, r.Render(StatusInfo{Vault: "/v", Stale: true}))

	out := buf.String()
	assert.Contains(t, out, "Snapshot:   none")
	assert.Contains(t, out, "Failures:   none")
	assert.Contains(t, out, "next run rebuilds")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)

	require.NoError(t, r.RenderJSON(StatusInfo{Vault: "/v", Documents: 3}))

	var decoded StatusInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded.Documents)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 GB", FormatBytes(2*1024*1024*1024))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "just now", formatTime(time.Now()))
	assert.Equal(t, "1 minute ago", formatTime(time.Now().Add(-90*time.Second)))
	assert.Equal(t, "3 days ago", formatTime(time.Now().Add(-73*time.Hour)))
}
