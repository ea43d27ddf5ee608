package search

import (
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search, OpenSearch, etc.).
const DefaultRRFConstant = 60

// RankedList is a list of document ids, best first.
type RankedList []string

// Fused is one document after Reciprocal Rank Fusion.
type Fused struct {
	ID    string
	Score float64
	// Ranks[i] is the 1-based position in list i, 0 when absent.
	Ranks []int
}

// Lists returns how many input lists contained the document.
func (f Fused) Lists() int {
	n := 0
	for _, r := range f.Ranks {
		if r > 0 {
			n++
		}
	}
	return n
}

// bestRank returns the smallest non-zero rank.
func (f Fused) bestRank() int {
	best := 0
	for _, r := range f.Ranks {
		if r > 0 && (best == 0 || r < best) {
			best = r
		}
	}
	return best
}

// FuseOptions configures Fuse.
type FuseOptions struct {
	// K is the smoothing constant (default: 60).
	K int

	// Weights per input list. Nil or missing entries weigh 1.0.
	Weights []float64
}

func (o FuseOptions) weight(i int) float64 {
	if i < len(o.Weights) {
		return o.Weights[i]
	}
	return 1.0
}

// Fuse combines ranked lists using Reciprocal Rank Fusion.
//
// Algorithm: score(d) = Σ weight_i / (k + rank_i)
//
// Where rank_i is the 0-based position of d in list i. Only ranks are
// used; raw keyword and similarity scores are not comparable.
//
// Results are sorted by: Score (desc) → lists hit (desc) → best rank (asc) → ID (asc)
func Fuse(lists []RankedList, opts FuseOptions) []Fused {
	if opts.K <= 0 {
		opts.K = DefaultRRFConstant
	}

	byID := make(map[string]*Fused)
	order := make([]*Fused, 0)
	for li, list := range lists {
		w := opts.weight(li)
		for rank, id := range list {
			f, ok := byID[id]
			if !ok {
				f = &Fused{ID: id, Ranks: make([]int, len(lists))}
				byID[id] = f
				order = append(order, f)
			}
			// Duplicates within one list count once, at their best rank.
			if f.Ranks[li] != 0 {
				continue
			}
			f.Ranks[li] = rank + 1
			f.Score += w / float64(opts.K+rank)
		}
	}

	results := make([]Fused, len(order))
	for i, f := range order {
		results[i] = *f
	}

	sort.SliceStable(results, func(i, j int) bool {
		return compareFused(results[i], results[j])
	})
	return results
}

// compareFused reports whether a ranks before b.
func compareFused(a, b Fused) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if la, lb := a.Lists(), b.Lists(); la != lb {
		return la > lb
	}
	if ra, rb := a.bestRank(), b.bestRank(); ra != rb {
		return ra < rb
	}
	return a.ID < b.ID
}
