package store

import (
	"github.com/coder/hnsw"
)

// compactMinOrphans is the orphan count below which the graph is never
// rebuilt.
const compactMinOrphans = 64

// HNSWConfig tunes the HNSW graph.
type HNSWConfig struct {
	M        int
	EfSearch int
}

// HNSWVectors implements VectorIndex with the coder/hnsw graph. Results
// are approximate; FlatVectors is the exact default.
type HNSWVectors struct {
	cfg   HNSWConfig
	graph *hnsw.Graph[uint64]

	// ID mapping (string <-> uint64)
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// NewHNSWVectors creates an empty graph using cosine distance.
func NewHNSWVectors(cfg HNSWConfig) *HNSWVectors {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	return &HNSWVectors{
		cfg:    cfg,
		graph:  newGraph(cfg),
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

func newGraph(cfg HNSWConfig) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25
	return graph
}

// Add implements VectorIndex. Replaced vectors are orphaned in the graph
// rather than deleted; deleting the last node breaks coder/hnsw.
func (h *HNSWVectors) Add(id string, vec []float32) {
	if existing, ok := h.idMap[id]; ok {
		delete(h.keyMap, existing)
	}

	key := h.nextKey
	h.nextKey++
	h.graph.Add(hnsw.MakeNode(key, vec))
	h.idMap[id] = key
	h.keyMap[key] = id
	h.maybeCompact()
}

// Remove implements VectorIndex using lazy deletion.
func (h *HNSWVectors) Remove(id string) {
	if key, ok := h.idMap[id]; ok {
		delete(h.keyMap, key)
		delete(h.idMap, id)
		h.maybeCompact()
	}
}

// maybeCompact rebuilds the graph from live nodes once orphans outnumber
// them.
func (h *HNSWVectors) maybeCompact() {
	orphans := h.Orphans()
	if orphans < compactMinOrphans || orphans <= len(h.idMap) {
		return
	}

	graph := newGraph(h.cfg)
	for key := range h.keyMap {
		vec, ok := h.graph.Lookup(key)
		if !ok {
			continue
		}
		graph.Add(hnsw.MakeNode(key, vec))
	}
	h.graph = graph
}

// Len implements VectorIndex.
func (h *HNSWVectors) Len() int {
	return len(h.idMap)
}

// Orphans returns the number of lazily deleted graph nodes.
func (h *HNSWVectors) Orphans() int {
	return h.graph.Len() - len(h.idMap)
}

// Search implements VectorIndex.
func (h *HNSWVectors) Search(query []float32, k int) []VectorHit {
	if len(h.idMap) == 0 || k <= 0 {
		return []VectorHit{}
	}

	// Orphans occupy result slots, so over-fetch by their count.
	fetch := k + h.Orphans()
	nodes := h.graph.Search(query, fetch)

	hits := make([]VectorHit, 0, len(nodes))
	for _, node := range nodes {
		id, ok := h.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := h.graph.Distance(query, node.Value)
		hits = append(hits, VectorHit{ID: id, Score: 1 - float64(distance)})
	}

	sortVectorHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
