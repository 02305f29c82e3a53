package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/graphbeam/graph"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Perm returns a pseudo-random permutation of [0,n).
func (r *RNG) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}

// ConnectedEdges returns the edges of a random connected graph on n vertices
// whose degrees stay at or below maxDegree (maxDegree >= 2).
//
// A random spanning tree is grown first, then extra edges are sprinkled in
// where both endpoints have spare degree.
func (r *RNG) ConnectedEdges(n, maxDegree int) [][2]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	deg := make([]int, n)
	has := make(map[[2]int]bool)
	var edges [][2]int
	add := func(u, v int) {
		if u > v {
			u, v = v, u
		}
		has[[2]int{u, v}] = true
		edges = append(edges, [2]int{u, v})
		deg[u]++
		deg[v]++
	}

	for v := 1; v < n; v++ {
		var open []int
		for u := 0; u < v; u++ {
			if deg[u] < maxDegree {
				open = append(open, u)
			}
		}
		// A tree over the first v vertices always has a vertex of degree < 2.
		add(open[r.rand.Intn(len(open))], v)
	}

	extra := r.rand.Intn(n + 1)
	for range extra {
		u, v := r.rand.Intn(n), r.rand.Intn(n)
		if u == v || deg[u] >= maxDegree || deg[v] >= maxDegree {
			continue
		}
		if u > v {
			u, v = v, u
		}
		if has[[2]int{u, v}] {
			continue
		}
		add(u, v)
	}
	return edges
}

// ConnectedGraph returns a random connected graph record, see ConnectedEdges.
func (r *RNG) ConnectedGraph(n, maxDegree int) *graph.Record {
	return MustGraph(n, r.ConnectedEdges(n, maxDegree))
}

// MustGraph builds a record and panics on invalid input.
func MustGraph(n int, edges [][2]int) *graph.Record {
	g, err := graph.FromEdges(n, edges)
	if err != nil {
		panic(err)
	}
	return g
}

// Path returns the path 0-1-...-(n-1).
func Path(n int) *graph.Record {
	edges := make([][2]int, 0, n-1)
	for i := 0; i+1 < n; i++ {
		edges = append(edges, [2]int{i, i + 1})
	}
	return MustGraph(n, edges)
}

// Cycle returns the cycle 0-1-...-(n-1)-0 (n >= 3).
func Cycle(n int) *graph.Record {
	edges := make([][2]int, 0, n)
	for i := 0; i < n; i++ {
		edges = append(edges, [2]int{i, (i + 1) % n})
	}
	return MustGraph(n, edges)
}

// Star returns the star with center 0 and n-1 leaves.
func Star(n int) *graph.Record {
	edges := make([][2]int, 0, n-1)
	for i := 1; i < n; i++ {
		edges = append(edges, [2]int{0, i})
	}
	return MustGraph(n, edges)
}

// Relabel returns a copy of g with vertex v renamed to perm[v].
func Relabel(g *graph.Record, perm []int) *graph.Record {
	edges := g.Edges()
	out := make([][2]int, len(edges))
	for i, e := range edges {
		out[i] = [2]int{perm[e[0]], perm[e[1]]}
	}
	return MustGraph(g.N, out)
}
