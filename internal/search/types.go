// Package search provides hybrid search over a store.Index, combining
// keyword and vector rankings with Reciprocal Rank Fusion (RRF).
package search

import (
	"time"

	"github.com/Aman-CERP/vaultindex/internal/store"
)

// Search modes reported to a Recorder.
const (
	ModeKeyword = "keyword"
	ModeVector  = "vector"
	ModeHybrid  = "hybrid"
)

// SearchOptions configures a Search call.
type SearchOptions struct {
	// Limit is the maximum number of results to return (default: 10, max: 100).
	Limit int

	// KeywordOnly skips query embedding and vector search entirely.
	KeywordOnly bool
}

// Result is one fused search result.
type Result struct {
	store.Hit

	// KeywordRank is the position in the keyword list (1-indexed, 0 if absent).
	KeywordRank int

	// VectorRank is the position in the vector list (1-indexed, 0 if absent).
	VectorRank int
}

// InBothLists reports whether the result appeared in both rankings.
func (r Result) InBothLists() bool {
	return r.KeywordRank > 0 && r.VectorRank > 0
}

// EngineConfig configures the search engine.
type EngineConfig struct {
	// DefaultLimit is the default number of results (default: 10).
	DefaultLimit int

	// MaxLimit is the maximum allowed results (default: 100).
	MaxLimit int

	// RRFConstant is the RRF fusion constant k (default: 60).
	RRFConstant int

	// KeywordWeight and VectorWeight scale each list's RRF contribution
	// (default: 1.0 each).
	KeywordWeight float64
	VectorWeight  float64

	// EmbedTimeout bounds query embedding (default: 10s).
	EmbedTimeout time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:  10,
		MaxLimit:      100,
		RRFConstant:   DefaultRRFConstant,
		KeywordWeight: 1.0,
		VectorWeight:  1.0,
		EmbedTimeout:  10 * time.Second,
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	d := DefaultConfig()
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = d.DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = d.MaxLimit
	}
	if c.RRFConstant <= 0 {
		c.RRFConstant = d.RRFConstant
	}
	if c.KeywordWeight <= 0 {
		c.KeywordWeight = d.KeywordWeight
	}
	if c.VectorWeight <= 0 {
		c.VectorWeight = d.VectorWeight
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = d.EmbedTimeout
	}
	return c
}

// Recorder receives per-query telemetry. Implementations must be safe for
// concurrent use.
type Recorder interface {
	SearchCompleted(mode string, results int, latency time.Duration)
}
