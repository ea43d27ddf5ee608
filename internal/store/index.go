package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
)

// Index is the document store. One RWMutex guards the record map, the
// keyword index and the vector index together, so readers never see a
// record whose lexical and vector halves disagree.
type Index struct {
	mu      sync.RWMutex
	opts    Options
	dims    int
	records map[string]*Record
	keyword *keywordIndex
	vectors VectorIndex
	version uint64
	closed  bool
}

// NewIndex creates an empty Index.
func NewIndex(opts Options) (*Index, error) {
	opts = opts.WithDefaults()
	if opts.Dimensions < 0 {
		return nil, verrors.ValidationError(fmt.Sprintf("negative dimensions %d", opts.Dimensions), nil)
	}

	vectors, err := newVectorIndex(opts.VectorBackend)
	if err != nil {
		return nil, verrors.ConfigError("invalid index options", err)
	}
	keyword, err := newKeywordIndex()
	if err != nil {
		return nil, err
	}

	return &Index{
		opts:    opts,
		dims:    opts.Dimensions,
		records: make(map[string]*Record),
		keyword: keyword,
		vectors: vectors,
	}, nil
}

// Upsert inserts rec or fully replaces the record with the same ID. The
// vector length must equal the index dimension; the first upsert fixes it
// when the index was created without one.
func (x *Index) Upsert(rec Record) error {
	if rec.ID == "" {
		return verrors.ValidationError("record id must not be empty", nil)
	}

	stored := rec
	stored.ContentPreview = truncateRunes(rec.ContentPreview, x.opts.PreviewLength)
	stored.Vector = normalized(rec.Vector)

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return ErrClosed
	}

	dims := x.dims
	if dims == 0 {
		dims = len(rec.Vector)
	}
	if len(rec.Vector) == 0 || len(rec.Vector) != dims {
		return dimensionError(dims, len(rec.Vector))
	}

	if err := x.keyword.put(&stored); err != nil {
		return verrors.Wrap(verrors.ErrCodeIndexFailed, err)
	}
	x.dims = dims
	x.vectors.Add(stored.ID, stored.Vector)
	x.records[stored.ID] = &stored
	x.version++
	return nil
}

// Remove deletes the record with id. Absent ids are a no-op.
func (x *Index) Remove(id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return ErrClosed
	}
	if _, ok := x.records[id]; !ok {
		return nil
	}
	if err := x.keyword.delete(id); err != nil {
		return verrors.Wrap(verrors.ErrCodeIndexFailed, err)
	}
	x.vectors.Remove(id)
	delete(x.records, id)
	x.version++
	return nil
}

// RemovePrefix deletes every record whose id starts with prefix and
// returns the removed ids.
func (x *Index) RemovePrefix(prefix string) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil, ErrClosed
	}

	var removed []string
	for id := range x.records {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if err := x.keyword.delete(id); err != nil {
			return removed, verrors.Wrap(verrors.ErrCodeIndexFailed, err)
		}
		x.vectors.Remove(id)
		delete(x.records, id)
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		x.version++
	}
	sort.Strings(removed)
	return removed, nil
}

// Exists reports whether a record with exactly this id is stored.
func (x *Index) Exists(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.records[id]
	return ok
}

// Get returns a copy of the record with id.
func (x *Index) Get(id string) (Record, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	rec, ok := x.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len returns the number of records.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// IDs returns every record id in sorted order.
func (x *Index) IDs() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ids := make([]string, 0, len(x.records))
	for id := range x.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dimensions returns the vector dimension, 0 while still undetermined.
func (x *Index) Dimensions() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dims
}

// Version returns a counter bumped by every mutation.
func (x *Index) Version() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.version
}

// Clear removes every record. A dimension given at creation is kept;
// an inferred one is forgotten.
func (x *Index) Clear() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return ErrClosed
	}
	if err := x.keyword.reset(); err != nil {
		return err
	}
	vectors, err := newVectorIndex(x.opts.VectorBackend)
	if err != nil {
		return err
	}
	x.vectors = vectors
	x.records = make(map[string]*Record)
	x.dims = x.opts.Dimensions
	x.version++
	return nil
}

// Close releases the keyword index. Later calls fail with ErrClosed.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	return x.keyword.close()
}

// SearchKeyword ranks records by whitespace-separated query terms.
// Records matching every term come first, ordered by their average
// per-term score; records matching only some terms follow, most
// recently modified first. Query text is matched literally.
func (x *Index) SearchKeyword(ctx context.Context, q string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, ErrClosed
	}

	terms := x.queryTerms(q)
	if len(terms) == 0 || len(x.records) == 0 {
		return []Hit{}, nil
	}

	matched := make(map[string]int)
	totals := make(map[string]float64)
	for _, term := range terms {
		scores, err := x.keyword.matchTerm(ctx, term)
		if err != nil {
			return nil, verrors.Wrap(verrors.ErrCodeSearchFailed, err)
		}
		for id, score := range scores {
			matched[id]++
			totals[id] += score
		}
	}

	var andSet, orSet []Hit
	for id, n := range matched {
		rec, ok := x.records[id]
		if !ok {
			continue
		}
		hit := Hit{Record: *rec, Score: totals[id] / float64(len(terms))}
		hit.Vector = nil
		if n == len(terms) {
			andSet = append(andSet, hit)
		} else {
			orSet = append(orSet, hit)
		}
	}

	sort.Slice(andSet, func(i, j int) bool {
		if andSet[i].Score != andSet[j].Score {
			return andSet[i].Score > andSet[j].Score
		}
		return newerFirst(andSet[i].Record, andSet[j].Record)
	})
	sort.Slice(orSet, func(i, j int) bool {
		return newerFirst(orSet[i].Record, orSet[j].Record)
	})

	hits := append(andSet, orSet...)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	if hits == nil {
		hits = []Hit{}
	}
	return hits, nil
}

// queryTerms splits q on whitespace, dropping duplicates and terms that
// carry no indexable token.
func (x *Index) queryTerms(q string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, term := range strings.Fields(q) {
		if seen[term] || !x.keyword.analyzable(term) {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}
	return terms
}

func newerFirst(a, b Record) bool {
	if !a.Metadata.LastModified.Equal(b.Metadata.LastModified) {
		return a.Metadata.LastModified.After(b.Metadata.LastModified)
	}
	return a.ID < b.ID
}

// SearchVector returns the records most similar to vec by cosine
// similarity. limit is clamped to [MinVectorLimit, MaxVectorLimit] and
// previews are shortened to VectorPreviewLength runes.
func (x *Index) SearchVector(ctx context.Context, vec []float32, limit int) ([]Hit, error) {
	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit < MinVectorLimit:
		limit = MinVectorLimit
	case limit > MaxVectorLimit:
		limit = MaxVectorLimit
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, ErrClosed
	}
	if len(x.records) == 0 || len(vec) == 0 {
		return []Hit{}, nil
	}
	if len(vec) != x.dims {
		return nil, dimensionError(x.dims, len(vec))
	}

	matches := x.vectors.Search(normalized(vec), limit)
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		rec, ok := x.records[m.ID]
		if !ok {
			continue
		}
		hit := Hit{Record: *rec, Score: m.Score}
		hit.Vector = nil
		hit.ContentPreview = truncateRunes(rec.ContentPreview, VectorPreviewLength)
		hits = append(hits, hit)
	}
	return hits, nil
}

// dimensionError wraps ErrDimensionMismatch in a fatal IndexError so it is
// both matchable with errors.As and never retried.
func dimensionError(expected, got int) error {
	mismatch := ErrDimensionMismatch{Expected: expected, Got: got}
	return verrors.New(verrors.ErrCodeDimensionMismatch, mismatch.Error(), mismatch)
}
