package mcp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vaultindex/internal/config"
	"github.com/Aman-CERP/vaultindex/internal/embed"
	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
	"github.com/Aman-CERP/vaultindex/internal/queue"
	"github.com/Aman-CERP/vaultindex/internal/search"
	"github.com/Aman-CERP/vaultindex/internal/store"
)

// MockSearchEngine implements Searcher for testing.
type MockSearchEngine struct {
	SearchFn func(ctx context.Context, query string, opts search.SearchOptions) ([]search.Result, error)
}

func (m *MockSearchEngine) Search(ctx context.Context, query string, opts search.SearchOptions) ([]search.Result, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, query, opts)
	}
	return []search.Result{}, nil
}

// fakePipeline implements Pipeline.
type fakePipeline struct {
	progress queue.Progress
	failures []queue.Failure
}

func (f *fakePipeline) Progress() queue.Progress   { return f.progress }
func (f *fakePipeline) Failures() []queue.Failure { return f.failures }

// memReader implements Reader over a map.
type memReader struct {
	mu   sync.Mutex
	docs map[string]string
}

func (m *memReader) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.docs[key]
	if !ok {
		return nil, verrors.New(verrors.ErrCodeDocumentNotFound, "document "+key+" not found", nil)
	}
	return []byte(content), nil
}

type testDoc struct {
	id, title, text string
}

// newTestIndex builds a real index, embedding each document with the
// static provider.
func newTestIndex(t *testing.T, provider embed.Provider, docs ...testDoc) *store.Index {
	t.Helper()
	idx, err := store.NewIndex(store.Options{Dimensions: provider.Dimensions()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	for _, d := range docs {
		vec, err := provider.Embed(context.Background(), d.title+"\n"+d.text)
		require.NoError(t, err)
		require.NoError(t, idx.Upsert(store.Record{
			ID:             d.id,
			Title:          d.title,
			ContentPreview: d.text,
			Vector:         vec,
			Metadata: store.Metadata{
				SourcePath:   d.id,
				LastModified: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				SizeBytes:    int64(len(d.text)),
			},
		}))
	}
	return idx
}

// newTestServer wires a server over a real index and engine.
func newTestServer(t *testing.T, docs ...testDoc) (*Server, *store.Index) {
	t.Helper()
	provider := embed.NewStaticProvider(64)
	idx := newTestIndex(t, provider, docs...)

	engine, err := search.NewEngine(idx, provider, search.DefaultConfig())
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.Embeddings.Provider = string(embed.ProviderStatic)
	srv, err := NewServer(engine, idx, provider, cfg, t.TempDir())
	require.NoError(t, err)
	return srv, idx
}

// newTestServerWithEngine wires a server over a mock engine and an empty index.
func newTestServerWithEngine(t *testing.T, engine Searcher) *Server {
	t.Helper()
	idx := newTestIndex(t, embed.NewStaticProvider(8))
	srv, err := NewServer(engine, idx, nil, config.NewConfig(), t.TempDir())
	require.NoError(t, err)
	return srv
}

var vaultDocs = []testDoc{
	{"infra/kubernetes.md", "Kubernetes notes", "Pods, deployments and the kubelet. Rolling updates keep replicas available."},
	{"cooking/bread.md", "Sourdough bread", "Feed the starter, autolyse the flour, then bake at high heat."},
	{"journal/2026-03-01.md", "Journal", "Spent the day debugging kubernetes ingress rules."},
}

func staticProvider() embed.Provider {
	return embed.NewStaticProvider(8)
}
