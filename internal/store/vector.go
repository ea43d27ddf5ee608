package store

import (
	"fmt"
	"math"
	"sort"
)

// VectorHit is a vector search match with cosine similarity.
type VectorHit struct {
	ID    string
	Score float64
}

// VectorIndex is a similarity index over unit-length vectors. It is not
// safe for concurrent use on its own; the Index lock guards it.
type VectorIndex interface {
	// Add inserts or replaces the vector for id.
	Add(id string, vec []float32)
	// Remove deletes id. Missing ids are ignored.
	Remove(id string)
	// Search returns up to k nearest ids by descending similarity.
	Search(query []float32, k int) []VectorHit
	// Len returns the number of live vectors.
	Len() int
}

// newVectorIndex creates the backend named by backend.
func newVectorIndex(backend string) (VectorIndex, error) {
	switch backend {
	case "", BackendFlat:
		return NewFlatVectors(), nil
	case BackendHNSW:
		return NewHNSWVectors(HNSWConfig{}), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", backend)
	}
}

// FlatVectors is an exact brute-force cosine index.
type FlatVectors struct {
	vectors map[string][]float32
}

// NewFlatVectors creates an empty FlatVectors.
func NewFlatVectors() *FlatVectors {
	return &FlatVectors{vectors: make(map[string][]float32)}
}

// Add implements VectorIndex.
func (f *FlatVectors) Add(id string, vec []float32) {
	f.vectors[id] = vec
}

// Remove implements VectorIndex.
func (f *FlatVectors) Remove(id string) {
	delete(f.vectors, id)
}

// Len implements VectorIndex.
func (f *FlatVectors) Len() int {
	return len(f.vectors)
}

// Search implements VectorIndex.
func (f *FlatVectors) Search(query []float32, k int) []VectorHit {
	hits := make([]VectorHit, 0, len(f.vectors))
	for id, vec := range f.vectors {
		hits = append(hits, VectorHit{ID: id, Score: dot(query, vec)})
	}
	sortVectorHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// sortVectorHits orders by descending score, then id for determinism.
func sortVectorHits(hits []VectorHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalized returns a unit-length copy of v. A zero vector stays zero.
func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	normalizeVectorInPlace(out)
	return out
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}
