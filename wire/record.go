// Package wire encodes graph records and protocol messages into frames.
//
// A record on n vertices has a fixed layout:
//
//	distances   n*n int32, row-major
//	adjacency   n rows of canon.Words(n) uint64 words
//	canonical   optional, same packing as adjacency
//	trailer     int32 [n, sumOfDistances, m, diameter, maxK]
//
// All integers are little-endian. Degrees are not sent; the decoder derives
// them from the adjacency and checks the trailer against them.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/graphbeam/canon"
	"github.com/hupe1980/graphbeam/graph"
)

const trailerInts = 5

var (
	// ErrShortBuffer is returned when a payload ends inside a record or message.
	ErrShortBuffer = errors.New("wire: short buffer")
	// ErrRecordMismatch is returned when a record's trailer disagrees with its body.
	ErrRecordMismatch = errors.New("wire: record trailer mismatch")
)

// RecordSize returns the encoded size of a record on n vertices.
func RecordSize(n int, withCanonical bool) int {
	size := 4*n*n + canon.FormSize(n) + 4*trailerInts
	if withCanonical {
		size += canon.FormSize(n)
	}
	return size
}

// AppendRecord appends the encoding of g to dst. A nil form omits the
// canonical section; otherwise form must be canon.FormSize(g.N) bytes.
func AppendRecord(dst []byte, g *graph.Record, form []byte) []byte {
	n := g.N
	for _, d := range g.Dist.Raw() {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(d))
	}
	dst = appendRows(dst, g.Adj, n)
	if form != nil {
		if len(form) != canon.FormSize(n) {
			panic(fmt.Sprintf("wire: canonical form of %d bytes for %d vertices", len(form), n))
		}
		dst = append(dst, form...)
	}
	for _, v := range [trailerInts]int{n, g.SumOfDistances, g.M, g.Diameter, g.MaxK} {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(int32(v)))
	}
	return dst
}

func appendRows(dst []byte, adj []*bitset.BitSet, n int) []byte {
	words := canon.Words(n)
	row := make([]uint64, words)
	for i := 0; i < n; i++ {
		clear(row)
		for j, ok := adj[i].NextSet(0); ok && int(j) < n; j, ok = adj[i].NextSet(j + 1) {
			row[j/canon.WordBits] |= 1 << (j % canon.WordBits)
		}
		for _, w := range row {
			dst = binary.LittleEndian.AppendUint64(dst, w)
		}
	}
	return dst
}

// DecodeRecord decodes one record on n vertices from the front of src and
// returns the remaining bytes.
func DecodeRecord(src []byte, n int, withCanonical bool) (*graph.Record, []byte, error) {
	if n < 1 {
		return nil, nil, fmt.Errorf("wire: record with %d vertices: %w", n, ErrRecordMismatch)
	}
	if len(src) < RecordSize(n, withCanonical) {
		return nil, nil, ErrShortBuffer
	}

	d := make([]int32, n*n)
	for i := range d {
		d[i] = int32(binary.LittleEndian.Uint32(src))
		src = src[4:]
	}

	words := canon.Words(n)
	adj := graph.NewAdjacency(n)
	k := make([]int, n)
	for i := 0; i < n; i++ {
		for w := 0; w < words; w++ {
			word := binary.LittleEndian.Uint64(src)
			src = src[8:]
			for word != 0 {
				j := w*canon.WordBits + bits.TrailingZeros64(word)
				word &= word - 1
				if j >= n || j == i {
					return nil, nil, fmt.Errorf("wire: adjacency bit %d of row %d: %w", j, i, ErrRecordMismatch)
				}
				adj[i].Set(uint(j))
				k[i]++
			}
		}
	}

	var form []byte
	if withCanonical {
		size := canon.FormSize(n)
		form = append([]byte(nil), src[:size]...)
		src = src[size:]
	}

	var trailer [trailerInts]int
	for i := range trailer {
		trailer[i] = int(int32(binary.LittleEndian.Uint32(src)))
		src = src[4:]
	}

	g := &graph.Record{
		N:    n,
		Adj:  adj,
		Dist: graph.DistanceMatrixFrom(n, d),
		K:    k,
	}
	g.Stats()
	if form != nil {
		g.SetCanonical(form)
	}
	if err := check(g, trailer); err != nil {
		return nil, nil, err
	}
	return g, src, nil
}

func check(g *graph.Record, trailer [trailerInts]int) error {
	want := [trailerInts]int{g.N, g.SumOfDistances, g.M, g.Diameter, g.MaxK}
	if trailer != want {
		return fmt.Errorf("trailer %v, recomputed %v: %w", trailer, want, ErrRecordMismatch)
	}
	exact := graph.NewDistanceMatrix(g.N)
	for i := 0; i < g.N; i++ {
		for j := i + 1; j < g.N; j++ {
			if g.HasEdge(i, j) != g.HasEdge(j, i) {
				return fmt.Errorf("edge %d-%d is one-sided: %w", i, j, ErrRecordMismatch)
			}
			if g.HasEdge(i, j) {
				exact.Set(i, j, 1)
			}
		}
	}
	// Distances are never trusted; they must match the adjacency exactly.
	exact.FullShortestPaths()
	if !exact.Equal(g.Dist) {
		return fmt.Errorf("distances disagree with adjacency: %w", ErrRecordMismatch)
	}
	return nil
}
