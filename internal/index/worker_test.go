package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vaultindex/internal/embed"
	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
	"github.com/Aman-CERP/vaultindex/internal/extract"
	"github.com/Aman-CERP/vaultindex/internal/fingerprint"
	"github.com/Aman-CERP/vaultindex/internal/queue"
	"github.com/Aman-CERP/vaultindex/internal/store"
)

type workerFixture struct {
	source *memSource
	index  *store.Index
	cache  *fingerprint.Cache
	worker *Worker
}

func newWorkerFixture(t *testing.T, provider embed.Provider, opts store.Options) *workerFixture {
	t.Helper()
	idx, err := store.NewIndex(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	f := &workerFixture{source: newMemSource(), index: idx, cache: fingerprint.NewCache()}
	f.worker, err = NewWorker(WorkerDependencies{
		Source:   f.source,
		Provider: provider,
		Index:    idx,
		Cache:    f.cache,
	}, 50*time.Millisecond)
	require.NoError(t, err)
	return f
}

func TestNewWorker_RequiresDependencies(t *testing.T) {
	_, err := NewWorker(WorkerDependencies{}, 0)

	assert.Error(t, err)
}

func TestWorker_Process_IndexesDocument(t *testing.T) {
	// Given: a markdown document
	f := newWorkerFixture(t, embed.NewStaticProvider(16), store.Options{})
	f.source.put("finance/budget.md", "---\ntags: [money]\n---\n# Budget Report\n\nQuarterly **budget** numbers.\n\n```go\nfunc hidden() {}\n```\n")

	// When: processing it
	err := f.worker.Process(context.Background(), queue.Item{Key: "finance/budget.md"})

	// Then: a record with extracted text and stamped metadata exists
	require.NoError(t, err)
	rec, ok := f.index.Get("finance/budget.md")
	require.True(t, ok)
	assert.Equal(t, "Budget Report", rec.Title)
	assert.Contains(t, rec.ContentPreview, "Quarterly budget numbers.")
	assert.NotContains(t, rec.ContentPreview, "hidden")
	assert.NotContains(t, rec.ContentPreview, "tags")
	assert.Len(t, rec.Vector, 16)
	assert.Equal(t, embed.StaticModelName, rec.Metadata.EmbeddingModel)
	assert.Equal(t, "finance/budget.md", rec.Metadata.SourcePath)
	assert.Equal(t, baseTime, rec.Metadata.LastModified)
	assert.False(t, rec.Metadata.VectorizedAt.IsZero())

	// And: the fingerprint is current
	doc, err := f.source.Stat(context.Background(), "finance/budget.md")
	require.NoError(t, err)
	assert.False(t, f.cache.IsChanged(doc))
}

func TestWorker_Process_TitleFallsBackToPath(t *testing.T) {
	f := newWorkerFixture(t, embed.NewStaticProvider(16), store.Options{})
	f.source.put("daily/meeting-notes_2026.md", "Some notes without a heading.")

	require.NoError(t, f.worker.Process(context.Background(), queue.Item{Key: "daily/meeting-notes_2026.md"}))

	rec, ok := f.index.Get("daily/meeting-notes_2026.md")
	require.True(t, ok)
	assert.Equal(t, "meeting notes 2026", rec.Title)
}

func TestWorker_Process_MissingDocumentIsTerminal(t *testing.T) {
	f := newWorkerFixture(t, embed.NewStaticProvider(16), store.Options{})

	err := f.worker.Process(context.Background(), queue.Item{Key: "gone.md"})

	require.Error(t, err)
	assert.Equal(t, verrors.ClassTerminal, verrors.Classify(err))
	assert.True(t, errors.Is(err, ErrDocumentNotFound))
}

func TestWorker_Process_ReadFailureIsTransient(t *testing.T) {
	// Given: a document whose read fails with an IO error
	f := newWorkerFixture(t, embed.NewStaticProvider(16), store.Options{})
	f.source.put("a.md", "# A\n\nbody")
	f.source.failRead("a.md", verrors.New(verrors.ErrCodeReadFailed, "read a.md", errors.New("EIO")))

	// When: processing it
	err := f.worker.Process(context.Background(), queue.Item{Key: "a.md"})

	// Then: the failure is retryable and nothing was indexed
	require.Error(t, err)
	assert.Equal(t, verrors.ClassTransient, verrors.Classify(err))
	assert.False(t, f.index.Exists("a.md"))
}

func TestWorker_Process_EmptyContentIsTerminal(t *testing.T) {
	// Given: an indexed document that is then emptied
	f := newWorkerFixture(t, embed.NewStaticProvider(16), store.Options{})
	f.source.put("a.md", "# A\n\nbody")
	require.NoError(t, f.worker.Process(context.Background(), queue.Item{Key: "a.md"}))
	f.source.put("a.md", "```\nonly code\n```\n")

	// When: processing it again
	err := f.worker.Process(context.Background(), queue.Item{Key: "a.md"})

	// Then: it fails terminally and the stale record is gone
	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeEmptyContent, verrors.GetCode(err))
	assert.Equal(t, verrors.ClassTerminal, verrors.Classify(err))
	assert.False(t, f.index.Exists("a.md"))
}

func TestWorker_Process_EmbedTimeoutIsTransient(t *testing.T) {
	f := newWorkerFixture(t, blockingProvider{}, store.Options{})
	f.source.put("slow.md", "# Slow\n\ntext")

	err := f.worker.Process(context.Background(), queue.Item{Key: "slow.md"})

	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeNetworkTimeout, verrors.GetCode(err))
	assert.Equal(t, verrors.ClassTransient, verrors.Classify(err))
	assert.False(t, f.index.Exists("slow.md"))
}

func TestWorker_Process_CancelledContext(t *testing.T) {
	f := newWorkerFixture(t, blockingProvider{}, store.Options{})
	f.source.put("slow.md", "# Slow\n\ntext")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.worker.Process(ctx, queue.Item{Key: "slow.md"})

	assert.ErrorIs(t, err, context.Canceled)
}

// cancellingProvider cancels the job while answering.
type cancellingProvider struct {
	embed.Provider
	cancel context.CancelFunc
}

func (p cancellingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := p.Provider.Embed(context.WithoutCancel(ctx), text)
	p.cancel()
	return vec, err
}

func TestWorker_Process_CancelledAfterEmbedWritesNothing(t *testing.T) {
	// Given: a job cancelled while its embedding returns
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newWorkerFixture(t, cancellingProvider{Provider: embed.NewStaticProvider(16), cancel: cancel}, store.Options{})
	f.source.put("gone.md", "# Gone\n\ndeleted mid-flight")

	// When: processing
	err := f.worker.Process(ctx, queue.Item{Key: "gone.md"})

	// Then: neither the index nor the fingerprint cache is touched
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.index.Exists("gone.md"))
	_, cached := f.cache.Get("gone.md")
	assert.False(t, cached)
}

func TestWorker_Process_DimensionMismatchIsTerminal(t *testing.T) {
	// Given: an index fixed at 3 dimensions and a 16-dimension provider
	f := newWorkerFixture(t, embed.NewStaticProvider(16), store.Options{Dimensions: 3})
	f.source.put("a.md", "# A\n\nbody")

	// When: processing
	err := f.worker.Process(context.Background(), queue.Item{Key: "a.md"})

	// Then: the invariant violation is terminal and matchable
	require.Error(t, err)
	assert.Equal(t, verrors.ClassTerminal, verrors.Classify(err))
	var mismatch store.ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 16, mismatch.Got)
}

func TestEmbedInput_Bounded(t *testing.T) {
	long := make([]rune, MaxEmbedRunes+50)
	for i := range long {
		long[i] = 'é'
	}

	got := embedInput(extract.Result{Title: "T", Text: string(long)})

	assert.Equal(t, MaxEmbedRunes, len([]rune(got)))
	assert.Equal(t, "T\n\n", string([]rune(got)[:3]))
}
