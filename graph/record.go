// Package graph defines the graph record carried through the search: a simple
// connected graph with its adjacency, all-pairs distances, degree sequence and
// the fitness statistics used to rank it.
package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/graphbeam/canon"
)

var (
	// ErrVertexRange is returned when an edge references a vertex outside [0, n).
	ErrVertexRange = errors.New("vertex out of range")
	// ErrSelfLoop is returned for an edge from a vertex to itself.
	ErrSelfLoop = errors.New("self loop")
	// ErrDisconnected is returned when a graph is not connected.
	ErrDisconnected = errors.New("graph is not connected")
	// ErrDegreeBound is returned when a vertex exceeds the degree bound.
	ErrDegreeBound = errors.New("degree bound exceeded")
	// ErrInconsistent is returned when derived statistics disagree with the adjacency.
	ErrInconsistent = errors.New("inconsistent graph record")
)

// Record is a graph together with its derived statistics.
//
// A Record is owned by exactly one holder at a time: a bounded queue, an
// in-flight message or the caller that built it.
type Record struct {
	N              int
	Adj            []*bitset.BitSet
	Dist           *DistanceMatrix
	K              []int
	M              int
	MaxK           int
	Diameter       int
	SumOfDistances int

	canonical []byte
}

// FromEdges builds a record over n vertices from an edge list.
// Duplicate edges are ignored.
func FromEdges(n int, edges [][2]int) (*Record, error) {
	adj := NewAdjacency(n)
	for _, e := range edges {
		u, v := e[0], e[1]
		if u < 0 || v < 0 || u >= n || v >= n {
			return nil, fmt.Errorf("edge %d-%d: %w", u, v, ErrVertexRange)
		}
		if u == v {
			return nil, fmt.Errorf("edge %d-%d: %w", u, v, ErrSelfLoop)
		}
		adj[u].Set(uint(v))
		adj[v].Set(uint(u))
	}
	return FromAdjacency(adj)
}

// FromAdjacency builds a record from symmetric adjacency rows and computes
// every derived field. The record takes ownership of adj.
func FromAdjacency(adj []*bitset.BitSet) (*Record, error) {
	n := len(adj)
	r := &Record{N: n, Adj: adj, K: make([]int, n)}
	r.Dist = NewDistanceMatrix(n)
	for i := 0; i < n; i++ {
		row := adj[i]
		if row.Test(uint(i)) {
			return nil, fmt.Errorf("vertex %d: %w", i, ErrSelfLoop)
		}
		for j, ok := row.NextSet(0); ok; j, ok = row.NextSet(j + 1) {
			if int(j) >= n {
				return nil, fmt.Errorf("vertex %d: %w", j, ErrVertexRange)
			}
			if !adj[j].Test(uint(i)) {
				return nil, fmt.Errorf("edge %d-%d not symmetric: %w", i, j, ErrInconsistent)
			}
			r.Dist.d[i*n+int(j)] = 1
			r.K[i]++
		}
	}
	r.Dist.FullShortestPaths()
	r.deriveDegrees()
	r.deriveDistances()
	if n > 1 && r.Diameter >= int(Infinity) {
		return nil, ErrDisconnected
	}
	return r, nil
}

// NewAdjacency returns n empty adjacency rows sized for n vertices.
func NewAdjacency(n int) []*bitset.BitSet {
	adj := make([]*bitset.BitSet, n)
	for i := range adj {
		adj[i] = bitset.New(uint(n))
	}
	return adj
}

// Stats recomputes M and MaxK from K, and Diameter and SumOfDistances from Dist.
func (r *Record) Stats() {
	r.deriveDegrees()
	r.deriveDistances()
}

func (r *Record) deriveDegrees() {
	sum, maxK := 0, 0
	for _, k := range r.K {
		sum += k
		if k > maxK {
			maxK = k
		}
	}
	r.M = sum / 2
	r.MaxK = maxK
}

func (r *Record) deriveDistances() {
	r.Diameter = r.Dist.Diameter()
	r.SumOfDistances = r.Dist.Sum()
}

// HasEdge reports whether i and j are adjacent.
func (r *Record) HasEdge(i, j int) bool {
	return r.Adj[i].Test(uint(j))
}

// Worse reports whether r ranks strictly below o: a larger sum of distances,
// or an equal sum and a larger diameter.
func (r *Record) Worse(o *Record) bool {
	if r.SumOfDistances != o.SumOfDistances {
		return r.SumOfDistances > o.SumOfDistances
	}
	return r.Diameter > o.Diameter
}

// CanonicalForm returns the canonical form, computing and caching it on first use.
func (r *Record) CanonicalForm(c canon.Canonicalizer) []byte {
	if r.canonical == nil {
		r.canonical = c.Canonicalize(r.Adj, r.N)
	}
	return r.canonical
}

// Canonical returns the cached canonical form, or nil if none was computed.
func (r *Record) Canonical() []byte { return r.canonical }

// SetCanonical installs a canonical form received from elsewhere.
func (r *Record) SetCanonical(form []byte) { r.canonical = form }

// Clone returns a deep copy, including any cached canonical form.
func (r *Record) Clone() *Record {
	c := &Record{
		N:              r.N,
		Adj:            make([]*bitset.BitSet, len(r.Adj)),
		Dist:           r.Dist.Clone(),
		K:              append([]int(nil), r.K...),
		M:              r.M,
		MaxK:           r.MaxK,
		Diameter:       r.Diameter,
		SumOfDistances: r.SumOfDistances,
	}
	for i, row := range r.Adj {
		c.Adj[i] = row.Clone()
	}
	if r.canonical != nil {
		c.canonical = append([]byte(nil), r.canonical...)
	}
	return c
}

// Edges returns the edge list with u < v, ordered by u then v.
func (r *Record) Edges() [][2]int {
	edges := make([][2]int, 0, r.M)
	for u := 0; u < r.N; u++ {
		row := r.Adj[u]
		for v, ok := row.NextSet(uint(u + 1)); ok; v, ok = row.NextSet(v + 1) {
			edges = append(edges, [2]int{u, int(v)})
		}
	}
	return edges
}

// Validate checks the record invariants against a degree bound.
func (r *Record) Validate(maxDegree int) error {
	if len(r.Adj) != r.N || len(r.K) != r.N || r.Dist.N() != r.N {
		return fmt.Errorf("vertex count %d: %w", r.N, ErrInconsistent)
	}
	sum := 0
	for i, k := range r.K {
		if int(r.Adj[i].Count()) != k {
			return fmt.Errorf("degree of vertex %d: %w", i, ErrInconsistent)
		}
		if k > maxDegree {
			return fmt.Errorf("vertex %d has degree %d > %d: %w", i, k, maxDegree, ErrDegreeBound)
		}
		sum += k
	}
	if sum != 2*r.M {
		return fmt.Errorf("edge count %d: %w", r.M, ErrInconsistent)
	}
	if r.N > 1 && r.Diameter >= int(Infinity) {
		return ErrDisconnected
	}
	return nil
}

// String renders the record as "n=4 m=3 sum=10 diam=3 [0-1 1-2 2-3]".
func (r *Record) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "n=%d m=%d sum=%d diam=%d [", r.N, r.M, r.SumOfDistances, r.Diameter)
	for i, e := range r.Edges() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d-%d", e[0], e[1])
	}
	sb.WriteByte(']')
	return sb.String()
}
