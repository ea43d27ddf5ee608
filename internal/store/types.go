// Package store holds the document index: exact-id lookup, lexical keyword
// search over bleve, and cosine vector search over a pluggable vector
// backend, all guarded by one lock per Index instance.
package store

import (
	"errors"
	"fmt"
	"time"
)

// Defaults for Index options.
const (
	// DefaultPreviewLength bounds the stored content preview, in runes.
	DefaultPreviewLength = 1000

	// VectorPreviewLength bounds previews returned by vector search, in runes.
	VectorPreviewLength = 200

	// DefaultSearchLimit is used when a search limit is not positive.
	DefaultSearchLimit = 10

	// MinVectorLimit and MaxVectorLimit clamp vector search limits.
	MinVectorLimit = 10
	MaxVectorLimit = 100
)

// Vector backend names.
const (
	BackendFlat = "flat"
	BackendHNSW = "hnsw"
)

// Metadata describes where a record came from and how it was embedded.
type Metadata struct {
	SourcePath     string    `json:"source_path"`
	LastModified   time.Time `json:"last_modified"`
	SizeBytes      int64     `json:"size_bytes"`
	VectorizedAt   time.Time `json:"vectorized_at"`
	EmbeddingModel string    `json:"embedding_model"`
}

// Record is the unit stored in the Index. Records are immutable once
// stored; an upsert swaps in a new record.
type Record struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	ContentPreview string    `json:"content_preview"`
	Vector         []float32 `json:"vector,omitempty"`
	Metadata       Metadata  `json:"metadata"`
}

// Hit is a search result. Hits never carry the record vector.
type Hit struct {
	Record
	Score float64 `json:"score"`
}

// Options configures an Index.
type Options struct {
	// Dimensions fixes the vector dimension. Zero infers it from the
	// first upsert.
	Dimensions int

	// VectorBackend selects "flat" (exact, default) or "hnsw".
	VectorBackend string

	// PreviewLength bounds stored previews (default 1000 runes).
	PreviewLength int
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.VectorBackend == "" {
		o.VectorBackend = BackendFlat
	}
	if o.PreviewLength <= 0 {
		o.PreviewLength = DefaultPreviewLength
	}
	return o
}

// ErrDimensionMismatch is returned when a vector's length differs from
// the index dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ErrIncompatibleSnapshot is returned when a snapshot cannot be restored.
var ErrIncompatibleSnapshot = errors.New("incompatible index snapshot")

// ErrClosed is returned by operations on a closed Index.
var ErrClosed = errors.New("index is closed")

// truncateRunes shortens s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
