package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/vaultindex/internal/embed"
	"github.com/Aman-CERP/vaultindex/internal/store"
)

// Engine runs keyword, vector and hybrid queries against an index.
type Engine struct {
	index    *store.Index
	provider embed.Provider // optional; nil means keyword-only Search
	config   EngineConfig
	logger   *slog.Logger
	recorder Recorder
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets an optional query telemetry sink.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// NewEngine creates a search engine over index. provider may be nil, in
// which case Search never runs the vector side.
func NewEngine(index *store.Index, provider embed.Provider, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: index is required", ErrNilDependency)
	}
	e := &Engine{
		index:    index,
		provider: provider,
		config:   config.withDefaults(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// SearchKeyword runs a keyword-only query.
func (e *Engine) SearchKeyword(ctx context.Context, query string, limit int) ([]store.Hit, error) {
	start := time.Now()
	hits, err := e.index.SearchKeyword(ctx, query, e.clamp(limit))
	if err != nil {
		return nil, err
	}
	e.record(ModeKeyword, len(hits), start)
	return hits, nil
}

// SearchVector runs a vector-only query.
func (e *Engine) SearchVector(ctx context.Context, vec []float32, limit int) ([]store.Hit, error) {
	start := time.Now()
	hits, err := e.index.SearchVector(ctx, vec, limit)
	if err != nil {
		return nil, err
	}
	e.record(ModeVector, len(hits), start)
	return hits, nil
}

// SearchHybrid runs keyword and vector search concurrently and fuses the
// two rankings with RRF. A nil vec skips the vector side. When exactly
// one side fails the other is returned alone.
func (e *Engine) SearchHybrid(ctx context.Context, query string, vec []float32, limit int) ([]Result, error) {
	start := time.Now()
	limit = e.clamp(limit)
	inner := max(limit*2, 20)

	keywordHits, vectorHits, err := e.parallelSearch(ctx, query, vec, inner)
	if err != nil {
		return nil, err
	}

	results := e.fuse(keywordHits, vectorHits, limit)
	e.record(ModeHybrid, len(results), start)
	return results, nil
}

// Search embeds query and runs a hybrid search. Embedding failures
// degrade to keyword-only fusion.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}

	var vec []float32
	if !opts.KeywordOnly && e.provider != nil && e.index.Len() > 0 {
		embedCtx, cancel := embed.WithTimeout(ctx, e.config.EmbedTimeout)
		v, err := e.provider.Embed(embedCtx, query)
		cancel()
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			e.logger.Warn("query_embedding_failed",
				slog.String("model", e.provider.ModelName()),
				slog.String("error", err.Error()))
		default:
			vec = v
		}
	}

	return e.SearchHybrid(ctx, query, vec, opts.Limit)
}

// parallelSearch runs both searches with errgroup. Neither goroutine
// returns an error to the group so one failure never cancels the other.
func (e *Engine) parallelSearch(ctx context.Context, query string, vec []float32, limit int) (
	keywordHits []store.Hit,
	vectorHits []store.Hit,
	err error,
) {
	g, gctx := errgroup.WithContext(ctx)

	var keywordErr, vectorErr error

	g.Go(func() error {
		keywordHits, keywordErr = e.index.SearchKeyword(gctx, query, limit)
		return nil
	})

	if vec != nil {
		g.Go(func() error {
			vectorHits, vectorErr = e.index.SearchVector(gctx, vec, limit)
			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	switch {
	case keywordErr != nil && (vec == nil || vectorErr != nil):
		return nil, nil, errors.Join(keywordErr, vectorErr)
	case keywordErr != nil:
		e.logger.Warn("keyword_search_degraded",
			slog.String("error", keywordErr.Error()))
		keywordHits = nil
	case vectorErr != nil:
		e.logger.Warn("vector_search_degraded",
			slog.String("error", vectorErr.Error()))
		vectorHits = nil
	}
	return keywordHits, vectorHits, nil
}

// fuse merges the two hit lists with RRF and hydrates each fused id from
// the index so vector-only results carry their full preview. Records
// removed since the searches ran are skipped.
func (e *Engine) fuse(keywordHits, vectorHits []store.Hit, limit int) []Result {
	fused := Fuse([]RankedList{ids(keywordHits), ids(vectorHits)}, FuseOptions{
		K:       e.config.RRFConstant,
		Weights: []float64{e.config.KeywordWeight, e.config.VectorWeight},
	})

	results := make([]Result, 0, min(len(fused), limit))
	for _, f := range fused {
		if len(results) == limit {
			break
		}
		rec, ok := e.index.Get(f.ID)
		if !ok {
			continue
		}
		rec.Vector = nil
		results = append(results, Result{
			Hit:         store.Hit{Record: rec, Score: f.Score},
			KeywordRank: f.Ranks[0],
			VectorRank:  f.Ranks[1],
		})
	}
	return results
}

func ids(hits []store.Hit) RankedList {
	list := make(RankedList, len(hits))
	for i, h := range hits {
		list[i] = h.ID
	}
	return list
}

// clamp applies the default and maximum result limits.
func (e *Engine) clamp(limit int) int {
	if limit <= 0 {
		return e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		return e.config.MaxLimit
	}
	return limit
}

func (e *Engine) record(mode string, results int, start time.Time) {
	if e.recorder == nil {
		return
	}
	e.recorder.SearchCompleted(mode, results, time.Since(start))
}
