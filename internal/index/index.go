// Package index ranks enrolled identities by distance to a query embedding.
// It backs the diagnostic nearest command and is not used for authentication.
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/faceauth/internal/fingerprint"
	"github.com/kozaktomas/faceauth/internal/identity"
)

// HNSW parameters sized for small identity stores of face descriptors.
const (
	// MaxNeighbors (M) is the maximum number of neighbors per node.
	MaxNeighbors = 16

	// EfSearch is the search candidate pool size.
	EfSearch = 64
)

// ErrEmptyIndex is returned when searching an index without records.
var ErrEmptyIndex = errors.New("index is empty")

// Neighbor is one ranked identity.
type Neighbor struct {
	Ref      identity.Ref
	Distance float64
}

// Index wraps an HNSW graph keyed by identity id.
type Index struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[string]
	distance fingerprint.DistanceFunc
	refs     map[string]identity.Ref
	dim      int
}

// Build creates an index over records using the named metric.
func Build(records []identity.Record, metric string) (*Index, error) {
	g := hnsw.NewGraph[string]()
	g.M = MaxNeighbors
	g.Ml = 1.0 / float64(MaxNeighbors) // Standard HNSW formula
	g.EfSearch = EfSearch

	idx := &Index{
		graph: g,
		refs:  make(map[string]identity.Ref, len(records)),
	}
	switch metric {
	case fingerprint.MetricEuclidean:
		g.Distance = hnsw.EuclideanDistance
		idx.distance = fingerprint.EuclideanDistance
	case fingerprint.MetricCosine:
		g.Distance = hnsw.CosineDistance
		idx.distance = fingerprint.CosineDistance
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			continue
		}
		if idx.dim == 0 {
			idx.dim = len(rec.Embedding)
		}
		if len(rec.Embedding) != idx.dim {
			return nil, fmt.Errorf("record %s has dimension %d, index uses %d", rec.ID, len(rec.Embedding), idx.dim)
		}
		key := rec.ID.String()
		g.Add(hnsw.MakeNode(key, rec.Embedding))
		idx.refs[key] = rec.Ref
	}
	return idx, nil
}

// Len returns the number of indexed identities.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.refs)
}

// Nearest returns up to k identities closest to query, nearest first.
func (x *Index) Nearest(query []float32, k int) ([]Neighbor, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.refs) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("query has dimension %d, index uses %d", len(query), x.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	nodes := x.graph.Search(query, k)
	out := make([]Neighbor, 0, len(nodes))
	for _, n := range nodes {
		ref, ok := x.refs[n.Key]
		if !ok {
			continue
		}
		// Report exact distances rather than the graph's float32 approximation.
		out = append(out, Neighbor{Ref: ref, Distance: x.distance(query, n.Value)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	return out, nil
}
