// Package canon computes isomorphism-invariant encodings of small graphs.
//
// A canonical form is the adjacency bit matrix of a graph relabeled by a
// canonical labeling. Two graphs produce byte-identical forms if and only if
// they are isomorphic, regardless of how their vertices were numbered.
//
// The layout of a form matches the wire layout of an adjacency matrix:
// n rows of Words(n) little-endian uint64 words, bit j of row i set when
// vertices i and j are adjacent.
package canon

import (
	"bytes"
	"encoding/binary"
	"slices"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
)

// WordBits is the number of adjacency bits packed per word.
const WordBits = 64

// Canonicalizer produces canonical forms.
// Implementations must be pure, deterministic and safe for concurrent use.
type Canonicalizer interface {
	Canonicalize(adj []*bitset.BitSet, n int) []byte
}

// Words returns the number of words per adjacency row for n vertices.
func Words(n int) int {
	return (n + WordBits - 1) / WordBits
}

// FormSize returns the size in bytes of a canonical form for n vertices.
func FormSize(n int) int {
	return n * Words(n) * 8
}

// Refiner is the default Canonicalizer. It combines color refinement with
// exhaustive individualization of the first non-singleton cell and keeps the
// lexicographically smallest relabeled matrix.
//
// The search has no automorphism pruning, so it is exponential for highly
// symmetric graphs. Degree-bounded graphs of a few dozen vertices stay cheap.
type Refiner struct{}

// Canonicalize implements Canonicalizer.
func (Refiner) Canonicalize(adj []*bitset.BitSet, n int) []byte {
	nbrs := neighbors(adj, n)
	s := &search{
		n:    n,
		nbrs: nbrs,
		buf:  make([]byte, FormSize(n)),
	}
	colors := s.refine(make([]int, n))
	s.explore(colors)
	return s.best
}

func neighbors(adj []*bitset.BitSet, n int) [][]int {
	nbrs := make([][]int, n)
	for i := 0; i < n; i++ {
		row := adj[i]
		for j, ok := row.NextSet(0); ok && int(j) < n; j, ok = row.NextSet(j + 1) {
			nbrs[i] = append(nbrs[i], int(j))
		}
	}
	return nbrs
}

type search struct {
	n    int
	nbrs [][]int
	buf  []byte
	best []byte
}

// explore walks the individualization tree below colors.
func (s *search) explore(colors []int) {
	cell, size := s.targetCell(colors)
	if size <= 1 {
		s.leaf(colors)
		return
	}
	for v := 0; v < s.n; v++ {
		if colors[v] != cell {
			continue
		}
		s.explore(s.refine(individualize(colors, v)))
	}
}

// targetCell returns the smallest color whose cell holds more than one vertex.
func (s *search) targetCell(colors []int) (int, int) {
	counts := make([]int, s.n)
	for _, c := range colors {
		counts[c]++
	}
	for c, cnt := range counts {
		if cnt > 1 {
			return c, cnt
		}
	}
	return -1, 1
}

// leaf encodes the graph under the discrete coloring and keeps the minimum.
func (s *search) leaf(labels []int) {
	clear(s.buf)
	words := Words(s.n)
	for u := 0; u < s.n; u++ {
		for _, w := range s.nbrs[u] {
			row, col := labels[u], labels[w]
			off := (row*words + col/WordBits) * 8
			word := binary.LittleEndian.Uint64(s.buf[off:])
			word |= 1 << uint(col%WordBits)
			binary.LittleEndian.PutUint64(s.buf[off:], word)
		}
	}
	if s.best == nil || bytes.Compare(s.buf, s.best) < 0 {
		s.best = append(s.best[:0], s.buf...)
	}
}

// individualize moves v in front of the rest of its cell.
func individualize(colors []int, v int) []int {
	keys := make([]int, len(colors))
	for w, c := range colors {
		keys[w] = 2*c + 1
	}
	keys[v]--
	return rank(keys)
}

// refine splits cells by the multiset of neighbor colors until stable.
// Cell order is preserved: a split cell stays between its old neighbors.
func (s *search) refine(colors []int) []int {
	colors = rank(colors)
	numCells := countDistinct(colors)
	sigs := make([][]int, s.n)
	order := make([]int, s.n)
	for {
		for v := 0; v < s.n; v++ {
			sig := append(sigs[v][:0], colors[v])
			for _, w := range s.nbrs[v] {
				sig = append(sig, colors[w])
			}
			slices.Sort(sig[1:])
			sigs[v] = sig
			order[v] = v
		}
		slices.SortFunc(order, func(a, b int) int {
			return slices.Compare(sigs[a], sigs[b])
		})
		next := make([]int, s.n)
		c := 0
		for i, v := range order {
			if i > 0 && slices.Compare(sigs[order[i-1]], sigs[v]) != 0 {
				c++
			}
			next[v] = c
		}
		colors = next
		if c+1 == numCells {
			return colors
		}
		numCells = c + 1
	}
}

// rank maps keys onto dense colors 0..k-1 keeping their order.
func rank(keys []int) []int {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i], _ = slices.BinarySearch(sorted, k)
	}
	return out
}

func countDistinct(colors []int) int {
	seen := make(map[int]struct{}, len(colors))
	for _, c := range colors {
		seen[c] = struct{}{}
	}
	return len(seen)
}

// Counting wraps a Canonicalizer and counts how often it is invoked.
type Counting struct {
	Inner Canonicalizer
	calls atomic.Int64
}

// Canonicalize implements Canonicalizer.
func (c *Counting) Canonicalize(adj []*bitset.BitSet, n int) []byte {
	c.calls.Add(1)
	inner := c.Inner
	if inner == nil {
		inner = Refiner{}
	}
	return inner.Canonicalize(adj, n)
}

// Calls returns the number of Canonicalize invocations so far.
func (c *Counting) Calls() int64 {
	return c.calls.Load()
}
