package memory

import (
	"math"
	"sort"

	"docqa/internal/domain"
)

// Index is one immutable generation of indexed chunks searched by
// brute-force cosine similarity. It is safe for concurrent readers.
type Index struct {
	model     string
	dimension int
	entries   []domain.IndexEntry
	norms     []float64
}

// New builds a fresh index from entries. All vectors must share one
// dimension; entries are copied so the caller keeps no handle on them.
func New(model string, entries []domain.IndexEntry) (*Index, error) {
	idx := &Index{
		model:   model,
		entries: make([]domain.IndexEntry, len(entries)),
		norms:   make([]float64, len(entries)),
	}
	for i, e := range entries {
		if i == 0 {
			idx.dimension = len(e.Vector)
		} else if len(e.Vector) != idx.dimension {
			return nil, &domain.DimensionMismatchError{Index: idx.dimension, Query: len(e.Vector)}
		}
		idx.entries[i] = domain.IndexEntry{
			Vector:   append([]float32(nil), e.Vector...),
			Chunk:    e.Chunk,
			Metadata: copyMeta(e.Metadata),
		}
		idx.norms[i] = math.Sqrt(dot(e.Vector, e.Vector))
	}
	return idx, nil
}

// Model names the embedder that produced the vectors.
func (x *Index) Model() string { return x.model }

// Dimension is the shared vector length, zero for an empty index.
func (x *Index) Dimension() int { return x.dimension }

// Len returns the number of entries.
func (x *Index) Len() int { return len(x.entries) }

// Entries returns a copy of the indexed entries in insertion order.
func (x *Index) Entries() []domain.IndexEntry {
	out := make([]domain.IndexEntry, len(x.entries))
	for i, e := range x.entries {
		out[i] = domain.IndexEntry{
			Vector:   append([]float32(nil), e.Vector...),
			Chunk:    e.Chunk,
			Metadata: copyMeta(e.Metadata),
		}
	}
	return out
}

// Search returns up to k entries ranked by cosine similarity to query,
// best first, ties broken by ascending chunk index.
func (x *Index) Search(query []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, domain.ErrInvalidK
	}
	if len(x.entries) == 0 {
		return nil, nil
	}
	if len(query) != x.dimension {
		return nil, &domain.DimensionMismatchError{Index: x.dimension, Query: len(query)}
	}
	qn := math.Sqrt(dot(query, query))
	scores := make([]float64, len(x.entries))
	for i := range x.entries {
		if qn == 0 || x.norms[i] == 0 {
			continue
		}
		scores[i] = dot(query, x.entries[i].Vector) / (qn * x.norms[i])
	}
	order := x.Rank(scores)
	if k > len(order) {
		k = len(order)
	}
	results := make([]domain.SearchResult, 0, k)
	for _, j := range order[:k] {
		results = append(results, domain.SearchResult{
			Chunk:    x.entries[j].Chunk,
			Score:    scores[j],
			Metadata: copyMeta(x.entries[j].Metadata),
		})
	}
	return results, nil
}

// Rank orders entry positions by descending score, ties by chunk index.
// scores must hold one value per entry.
func (x *Index) Rank(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		if sa != sb {
			return sa > sb
		}
		return x.entries[order[a]].Chunk.Index < x.entries[order[b]].Chunk.Index
	})
	return order
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
