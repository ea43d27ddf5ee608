package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vaultindex/internal/embed"
	"github.com/Aman-CERP/vaultindex/internal/store"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// failingProvider always fails to embed.
type failingProvider struct {
	calls atomic.Int64
}

func (f *failingProvider) Embed(context.Context, string) ([]float32, error) {
	f.calls.Add(1)
	return nil, errors.New("provider offline")
}
func (f *failingProvider) Dimensions() int   { return 3 }
func (f *failingProvider) ModelName() string { return "failing" }
func (f *failingProvider) Close() error      { return nil }

// countingRecorder collects search telemetry.
type countingRecorder struct {
	mu    sync.Mutex
	modes []string
}

func (r *countingRecorder) SearchCompleted(mode string, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modes = append(r.modes, mode)
}

func newBudgetIndex(t *testing.T) *store.Index {
	t.Helper()
	x, err := store.NewIndex(store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.Close() })

	docs := []struct {
		id, title, body string
		vec             []float32
		age             time.Duration
	}{
		{"finance/budget.md", "Budget Report", "quarterly budget report for the team", []float32{1, 0, 0}, 2 * time.Hour},
		{"weekly.md", "Weekly", "weekly status report", []float32{0, 1, 0}, time.Hour},
		{"garden.md", "Garden", "tomatoes and basil", []float32{0.6, 0, 0.8}, 0},
	}
	for _, d := range docs {
		require.NoError(t, x.Upsert(store.Record{
			ID:             d.id,
			Title:          d.title,
			ContentPreview: d.body,
			Vector:         d.vec,
			Metadata: store.Metadata{
				SourcePath:   d.id,
				LastModified: baseTime.Add(-d.age),
			},
		}))
	}
	return x
}

func resultIDs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestNewEngine_NilIndex(t *testing.T) {
	_, err := NewEngine(nil, nil, EngineConfig{})

	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestNewEngine_Defaults(t *testing.T) {
	e, err := NewEngine(newBudgetIndex(t), nil, EngineConfig{})
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), e.Config())
}

func TestSearchHybrid_StrongDocumentRanksFirst(t *testing.T) {
	// Given: one document matching both signals strongly
	e, err := NewEngine(newBudgetIndex(t), nil, EngineConfig{})
	require.NoError(t, err)

	// When: searching for "budget report" with a vector close to it
	results, err := e.SearchHybrid(context.Background(), "budget report", []float32{1, 0, 0}, 10)

	// Then: it ranks above documents matching a single signal weakly
	require.NoError(t, err)
	require.NotEmpty(t, results)
	top := results[0]
	assert.Equal(t, "finance/budget.md", top.ID)
	assert.Equal(t, 1, top.KeywordRank)
	assert.Equal(t, 1, top.VectorRank)
	assert.True(t, top.InBothLists())
	assert.InDelta(t, 2.0/60.0, top.Score, 1e-12)
	assert.Nil(t, top.Vector)
	for _, r := range results[1:] {
		assert.Less(t, r.Score, top.Score)
	}
}

func TestSearchHybrid_NilVectorIsKeywordOnly(t *testing.T) {
	e, err := NewEngine(newBudgetIndex(t), nil, EngineConfig{})
	require.NoError(t, err)

	results, err := e.SearchHybrid(context.Background(), "budget report", nil, 10)

	require.NoError(t, err)
	assert.Equal(t, []string{"finance/budget.md", "weekly.md"}, resultIDs(results))
	for _, r := range results {
		assert.Zero(t, r.VectorRank)
	}
}

func TestSearchHybrid_LimitTruncates(t *testing.T) {
	e, err := NewEngine(newBudgetIndex(t), nil, EngineConfig{})
	require.NoError(t, err)

	results, err := e.SearchHybrid(context.Background(), "report", []float32{0, 0, 1}, 1)

	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchHybrid_VectorFailureDegrades(t *testing.T) {
	// Given: a query vector of the wrong dimension
	e, err := NewEngine(newBudgetIndex(t), nil, EngineConfig{})
	require.NoError(t, err)

	// When: running a hybrid search
	results, err := e.SearchHybrid(context.Background(), "budget", []float32{1, 0}, 10)

	// Then: keyword results are returned alone
	require.NoError(t, err)
	assert.Equal(t, []string{"finance/budget.md"}, resultIDs(results))
	assert.Zero(t, results[0].VectorRank)
}

func TestSearchHybrid_BothFail(t *testing.T) {
	x := newBudgetIndex(t)
	e, err := NewEngine(x, nil, EngineConfig{})
	require.NoError(t, err)
	require.NoError(t, x.Close())

	_, err = e.SearchHybrid(context.Background(), "budget", []float32{1, 0, 0}, 10)

	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestSearchHybrid_CancelledContext(t *testing.T) {
	e, err := NewEngine(newBudgetIndex(t), nil, EngineConfig{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.SearchHybrid(ctx, "budget", []float32{1, 0, 0}, 10)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchHybrid_EmptyIndex(t *testing.T) {
	x, err := store.NewIndex(store.Options{})
	require.NoError(t, err)
	e, err := NewEngine(x, nil, EngineConfig{})
	require.NoError(t, err)

	results, err := e.SearchHybrid(context.Background(), "anything", []float32{1, 0, 0}, 10)

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_EmbedsQuery(t *testing.T) {
	// Given: an index built with the static provider
	provider := embed.NewStaticProvider(64)
	x, err := store.NewIndex(store.Options{})
	require.NoError(t, err)
	for id, body := range map[string]string{
		"budget.md": "budget report for the quarter",
		"hike.md":   "mountain hike photos",
	} {
		vec, err := provider.Embed(context.Background(), body)
		require.NoError(t, err)
		require.NoError(t, x.Upsert(store.Record{ID: id, Title: id, ContentPreview: body, Vector: vec}))
	}
	e, err := NewEngine(x, provider, EngineConfig{})
	require.NoError(t, err)

	// When: searching with natural text
	results, err := e.Search(context.Background(), "budget report", SearchOptions{})

	// Then: the matching document comes first from both sides
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "budget.md", results[0].ID)
	assert.True(t, results[0].InBothLists())
}

func TestSearch_ProviderFailureDegradesToKeyword(t *testing.T) {
	// Given: a provider that cannot embed
	provider := &failingProvider{}
	e, err := NewEngine(newBudgetIndex(t), provider, EngineConfig{})
	require.NoError(t, err)

	// When: searching
	results, err := e.Search(context.Background(), "budget report", SearchOptions{Limit: 5})

	// Then: keyword results are still returned
	require.NoError(t, err)
	assert.Equal(t, []string{"finance/budget.md", "weekly.md"}, resultIDs(results))
	assert.Equal(t, int64(1), provider.calls.Load())
}

func TestSearch_KeywordOnlySkipsProvider(t *testing.T) {
	provider := &failingProvider{}
	e, err := NewEngine(newBudgetIndex(t), provider, EngineConfig{})
	require.NoError(t, err)

	results, err := e.Search(context.Background(), "tomatoes", SearchOptions{KeywordOnly: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"garden.md"}, resultIDs(results))
	assert.Zero(t, provider.calls.Load())
}

func TestSearch_EmptyQuery(t *testing.T) {
	e, err := NewEngine(newBudgetIndex(t), &failingProvider{}, EngineConfig{})
	require.NoError(t, err)

	results, err := e.Search(context.Background(), "   ", SearchOptions{})

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_RecordsModes(t *testing.T) {
	rec := &countingRecorder{}
	e, err := NewEngine(newBudgetIndex(t), nil, EngineConfig{}, WithRecorder(rec))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = e.SearchKeyword(ctx, "budget", 0)
	require.NoError(t, err)
	_, err = e.SearchVector(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	_, err = e.SearchHybrid(ctx, "budget", nil, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{ModeKeyword, ModeVector, ModeHybrid}, rec.modes)
}
