package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vaultindex/internal/queue"
)

func TestNewRenderer_NonTTY_ReturnsPlain(t *testing.T) {
	// Given: a buffer as output
	cfg := NewConfig(&bytes.Buffer{})

	// When: creating a renderer
	r := NewRenderer(cfg)

	// Then: plain text is used
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewTUIRenderer_NonTTY_ReturnsError(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestNewConfig_Options(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	cfg := NewConfig(&bytes.Buffer{}, WithForcePlain(true), WithVaultDir("/notes"))

	assert.True(t, cfg.ForcePlain)
	assert.Equal(t, "/notes", cfg.VaultDir)
	assert.True(t, cfg.NoColor, "NO_COLOR presence disables color")
}

func TestIsTTY_NonFile(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}

func TestDetectCI(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, DetectCI())
}

// recordingRenderer collects snapshots for Watch tests.
type recordingRenderer struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recordingRenderer) Start(context.Context) error { return nil }
func (r *recordingRenderer) Complete(Summary)            {}
func (r *recordingRenderer) Stop() error                 { return nil }
func (r *recordingRenderer) Update(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recordingRenderer) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return Snapshot{}
	}
	return r.snaps[len(r.snaps)-1]
}

func TestWatch_FollowsQueue(t *testing.T) {
	// Given: a running queue where one document fails terminally
	q := queue.New(queue.Config{Concurrency: 1}, func(ctx context.Context, it queue.Item) error {
		if it.Key == "bad.md" {
			return errors.New("boom")
		}
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	r := &recordingRenderer{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, q, r, 5*time.Millisecond)
	}()

	// When: documents are processed
	q.Enqueue("a.md", queue.PriorityHigh)
	q.Enqueue("b.md", queue.PriorityLow)
	q.Enqueue("bad.md", queue.PriorityLow)

	// Then: the renderer sees the final counts
	require.Eventually(t, func() bool {
		p := r.last().Progress
		return p.Completed == 2 && p.Failed == 1 && p.Done()
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestPlainRenderer_UpdateOnlyOnChange(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.Update(Snapshot{Progress: queue.Progress{Total: 3, Pending: 3}})
	r.Update(Snapshot{Progress: queue.Progress{Total: 3, Pending: 2, Processing: 1}, Active: []string{"a.md"}})
	r.Update(Snapshot{Progress: queue.Progress{Total: 3, Pending: 1, Processing: 1, Completed: 1}, Active: []string{"b.md"}})
	r.Update(Snapshot{Progress: queue.Progress{Total: 3, Completed: 2, Failed: 1}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[INDEX] 0/3", lines[0])
	assert.Equal(t, "[INDEX] 1/3 - b.md", lines[1])
	assert.Equal(t, "[INDEX] 3/3 (1 failed)", lines[2])
}

func TestPlainRenderer_Complete(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.Complete(Summary{
		Documents: 4,
		Indexed:   3,
		Completed: 3,
		Removed:   1,
		Duration:  1500 * time.Millisecond,
		Failures: []queue.Failure{
			{Key: "empty.md", LastError: "no indexable text", Terminal: true},
		},
		Provider: ProviderInfo{Name: "static", Model: "static-hash", Dimensions: 64},
	})

	out := buf.String()
	assert.Contains(t, out, "Complete: 3 documents indexed (3 processed, 1 removed) in 1.5s, 1 failed")
	assert.Contains(t, out, "FAILED empty.md (terminal): no indexable text")
	assert.Contains(t, out, "Embeddings: static (static-hash, 64 dims)")
}
