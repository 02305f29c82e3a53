package level

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/graphbeam/graph"
)

// ExtendStats summarizes one or more extension passes.
type ExtendStats struct {
	// Children is the number of degree-feasible children produced.
	Children int
	// Admitted is the number of children retained by the target level.
	Admitted int
	// Pruned is the number of neighbor choices cut by the degree bound.
	Pruned int
}

// Add accumulates o into s.
func (s *ExtendStats) Add(o ExtendStats) {
	s.Children += o.Children
	s.Admitted += o.Admitted
	s.Pruned += o.Pruned
}

// extender is the mutable buffer shared by the whole recursion: g plus one
// new vertex whose edges are toggled in place and undone on backtrack.
type extender struct {
	base      *graph.Record
	maxDegree int
	v         int
	adj       []*bitset.BitSet
	dist      *graph.DistanceMatrix
	k         []int
	emit      func(*graph.Record)
	children  int
	pruned    int
}

// Enumerate calls emit once for every nonempty set of existing vertices that
// can be joined to a new vertex without exceeding maxDegree. Each child is an
// independent record on g.N+1 vertices with exact distances.
func Enumerate(g *graph.Record, maxDegree int, emit func(*graph.Record)) ExtendStats {
	n := g.N
	e := &extender{
		base:      g,
		maxDegree: maxDegree,
		v:         n,
		adj:       make([]*bitset.BitSet, n+1),
		dist:      g.Dist.Grow(),
		k:         make([]int, n+1),
		emit:      emit,
	}
	for i, row := range g.Adj {
		e.adj[i] = row.Clone()
	}
	e.adj[n] = bitset.New(uint(n + 1))
	copy(e.k, g.K)

	e.walk(0)
	return ExtendStats{Children: e.children, Pruned: e.pruned}
}

// walk tries every neighbor from start upward. Once the loop is exhausted the
// current neighbor set is complete and, if nonempty, emitted.
func (e *extender) walk(start int) {
	for i := start; i < e.v; i++ {
		e.k[e.v]++
		e.k[i]++
		if e.k[e.v] > e.maxDegree || e.k[i] > e.maxDegree {
			e.k[e.v]--
			e.k[i]--
			e.pruned++
			continue
		}
		e.adj[i].Set(uint(e.v))
		e.adj[e.v].Set(uint(i))
		e.dist.Set(i, e.v, 1)

		e.walk(i + 1)

		e.dist.Set(i, e.v, graph.Infinity)
		e.adj[e.v].Clear(uint(i))
		e.adj[i].Clear(uint(e.v))
		e.k[i]--
		e.k[e.v]--
	}
	if e.k[e.v] > 0 {
		e.children++
		e.emit(e.snapshot())
	}
}

func (e *extender) snapshot() *graph.Record {
	n := e.v + 1
	child := &graph.Record{
		N:    n,
		Adj:  make([]*bitset.BitSet, n),
		Dist: e.dist.Clone(),
		K:    make([]int, n),
	}
	for i, row := range e.adj {
		child.Adj[i] = row.Clone()
	}
	copy(child.K, e.k)
	child.Dist.ExtendShortestPaths()
	child.Stats()
	return child
}

// Extend offers every child of g to next and reports the outcome.
func Extend(g *graph.Record, next *Level) (ExtendStats, error) {
	if g.N+1 != next.N() {
		return ExtendStats{}, fmt.Errorf("extending %d vertices into level %d: %w", g.N, next.N(), ErrVertexCount)
	}
	admitted := 0
	st := Enumerate(g, next.MaxDegree(), func(child *graph.Record) {
		if next.Add(child) {
			admitted++
		}
	})
	st.Admitted = admitted
	return st, nil
}

// ExtendLevel drains old and extends each of its graphs into next.
func ExtendLevel(old, next *Level) (ExtendStats, error) {
	var total ExtendStats
	for {
		g, ok := old.Next()
		if !ok {
			return total, nil
		}
		st, err := Extend(g, next)
		if err != nil {
			return total, err
		}
		total.Add(st)
	}
}
