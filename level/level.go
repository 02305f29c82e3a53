// Package level holds the per-vertex-count beam of retained graphs and the
// vertex extension that grows one level into the next.
//
// A Level partitions graphs on n vertices by edge count. Each bucket keeps at
// most its capacity of best-ranked graphs and rejects graphs isomorphic to one
// it already retains.
package level

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/graphbeam/canon"
	"github.com/hupe1980/graphbeam/graph"
	"github.com/hupe1980/graphbeam/internal/dedup"
	"github.com/hupe1980/graphbeam/internal/queue"
)

var (
	// ErrInvalidLevel is returned for a vertex count below 1 or a degree bound below 2.
	ErrInvalidLevel = errors.New("invalid level parameters")
	// ErrCapacityCount is returned when a capacity override does not cover every bucket.
	ErrCapacityCount = errors.New("capacity count does not match bucket count")
	// ErrVertexCount is returned when a graph is offered to a level of another size.
	ErrVertexCount = errors.New("vertex count does not match level")
)

// Stats counts admission outcomes since the level was created or reset.
type Stats struct {
	Offered       int64
	Canonicalized int64
	Duplicates    int64
	Rejected      int64
	Admitted      int64
	Evicted       int64
}

type bucket struct {
	capacity int
	retained *queue.Bounded[*graph.Record]
	seen     *dedup.Store
}

// Level is the set of retained graphs on N vertices.
// A Level is owned by one goroutine and is not safe for concurrent use.
type Level struct {
	n         int
	maxDegree int
	minM      int
	buckets   []bucket
	canon     canon.Canonicalizer
	cursor    int
	size      int
	stats     Stats
}

func worse(a, b *graph.Record) bool { return a.Worse(b) }

// NumBuckets returns the number of feasible edge counts for connected graphs
// on n vertices with degree at most maxDegree.
func NumBuckets(n, maxDegree int) int {
	e := min(maxDegree, n-1)
	return n*e/2 - (n - 1) + 1
}

// New creates an empty level for n vertices where every bucket retains up to
// capacity graphs. A nil canonicalizer selects canon.Refiner.
func New(n, maxDegree, capacity int, c canon.Canonicalizer) (*Level, error) {
	if n < 1 || maxDegree < 2 {
		return nil, fmt.Errorf("n=%d maxDegree=%d: %w", n, maxDegree, ErrInvalidLevel)
	}
	if c == nil {
		c = canon.Refiner{}
	}
	numM := NumBuckets(n, maxDegree)
	l := &Level{
		n:         n,
		maxDegree: maxDegree,
		minM:      n - 1,
		buckets:   make([]bucket, numM),
		canon:     c,
	}
	for i := range l.buckets {
		l.buckets[i] = bucket{
			capacity: capacity,
			retained: queue.NewBounded(worse, min(max(capacity, 0), 64)),
			seen:     dedup.New(min(max(capacity, 0), 1024)),
		}
	}
	return l, nil
}

// N returns the vertex count of the level.
func (l *Level) N() int { return l.n }

// MaxDegree returns the degree bound of the level.
func (l *Level) MaxDegree() int { return l.maxDegree }

// MinEdges returns the edge count of bucket 0.
func (l *Level) MinEdges() int { return l.minM }

// NumBuckets returns the number of edge-count buckets.
func (l *Level) NumBuckets() int { return len(l.buckets) }

// Canonicalizer returns the oracle used for deduplication.
func (l *Level) Canonicalizer() canon.Canonicalizer { return l.canon }

// Len returns the number of retained graphs across all buckets.
func (l *Level) Len() int { return l.size }

// BucketLen returns the number of graphs retained in bucket i.
func (l *Level) BucketLen(i int) int { return l.buckets[i].retained.Len() }

// Stats returns the admission counters.
func (l *Level) Stats() Stats { return l.stats }

// Capacities returns the current per-bucket capacities.
func (l *Level) Capacities() []int {
	caps := make([]int, len(l.buckets))
	for i, b := range l.buckets {
		caps[i] = b.capacity
	}
	return caps
}

func (l *Level) bucketOf(g *graph.Record) *bucket {
	if g.N != l.n {
		panic(fmt.Sprintf("level: graph on %d vertices offered to level %d", g.N, l.n))
	}
	idx := g.M - l.minM
	if idx < 0 || idx >= len(l.buckets) {
		panic(fmt.Sprintf("level: edge count %d outside [%d, %d)", g.M, l.minM, l.minM+len(l.buckets)))
	}
	return &l.buckets[idx]
}

// Add offers g to its bucket and reports whether it was retained.
//
// A graph that could not beat the current worst of a full bucket is rejected
// before its canonical form is computed. A graph isomorphic to a retained one
// is rejected as a duplicate. When g displaces the worst graph, that graph
// also leaves the dedup store.
func (l *Level) Add(g *graph.Record) bool {
	b := l.bucketOf(g)
	l.stats.Offered++
	if !b.retained.WouldAdmit(g, b.capacity) {
		l.stats.Rejected++
		return false
	}
	if g.Canonical() == nil {
		l.stats.Canonicalized++
	}
	if !b.seen.Insert(g.CanonicalForm(l.canon)) {
		l.stats.Duplicates++
		return false
	}
	return l.admit(b, g)
}

// AddUnchecked retains g without the capacity pre-check or deduplication.
// Callers must guarantee that no isomorphic graph is offered twice.
func (l *Level) AddUnchecked(g *graph.Record) bool {
	b := l.bucketOf(g)
	l.stats.Offered++
	return l.admit(b, g)
}

func (l *Level) admit(b *bucket, g *graph.Record) bool {
	ok, evicted, didEvict := b.retained.Admit(g, b.capacity)
	if !ok {
		l.stats.Rejected++
		return false
	}
	l.stats.Admitted++
	l.size++
	if didEvict {
		l.stats.Evicted++
		l.size--
		if form := evicted.Canonical(); form != nil {
			b.seen.Remove(form)
		}
	}
	return true
}

// SetCapacities installs per-bucket capacities and evicts the worst graphs of
// any bucket above its new capacity. It returns the evicted graphs.
func (l *Level) SetCapacities(caps []int) ([]*graph.Record, error) {
	if len(caps) != len(l.buckets) {
		return nil, fmt.Errorf("got %d capacities for %d buckets: %w", len(caps), len(l.buckets), ErrCapacityCount)
	}
	var evicted []*graph.Record
	for i := range l.buckets {
		b := &l.buckets[i]
		b.capacity = caps[i]
		for _, g := range b.retained.Trim(caps[i]) {
			if form := g.Canonical(); form != nil {
				b.seen.Remove(form)
			}
			evicted = append(evicted, g)
		}
	}
	l.size -= len(evicted)
	l.stats.Evicted += int64(len(evicted))
	return evicted, nil
}

// Next removes one graph, visiting nonempty buckets round-robin.
// It returns false once the level is empty.
func (l *Level) Next() (*graph.Record, bool) {
	if l.size == 0 {
		return nil, false
	}
	for range l.buckets {
		b := &l.buckets[l.cursor]
		l.cursor = (l.cursor + 1) % len(l.buckets)
		if g, ok := b.retained.PopWorst(); ok {
			if form := g.Canonical(); form != nil {
				b.seen.Remove(form)
			}
			l.size--
			return g, true
		}
	}
	return nil, false
}

// TakeBucket removes and returns every graph of bucket i, best first.
func (l *Level) TakeBucket(i int) []*graph.Record {
	b := &l.buckets[i]
	out := make([]*graph.Record, b.retained.Len())
	for j := len(out) - 1; j >= 0; j-- {
		out[j], _ = b.retained.PopWorst()
	}
	b.seen.Reset()
	l.size -= len(out)
	return out
}

// Sorted returns the graphs of bucket i best first without removing them.
func (l *Level) Sorted(i int) []*graph.Record {
	out := slices.Clone(l.buckets[i].retained.Items())
	slices.SortStableFunc(out, func(a, b *graph.Record) int {
		switch {
		case b.Worse(a):
			return -1
		case a.Worse(b):
			return 1
		}
		return 0
	})
	return out
}

// Best returns the best graph of bucket i.
func (l *Level) Best(i int) (*graph.Record, bool) {
	var best *graph.Record
	for _, g := range l.buckets[i].retained.Items() {
		if best == nil || best.Worse(g) {
			best = g
		}
	}
	return best, best != nil
}

// Reset drops every graph and reinitializes the level for n vertices,
// keeping the degree bound, the canonicalizer and a uniform capacity.
func (l *Level) Reset(n, capacity int) error {
	fresh, err := New(n, l.maxDegree, capacity, l.canon)
	if err != nil {
		return err
	}
	*l = *fresh
	return nil
}
