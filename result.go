package graphbeam

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hupe1980/graphbeam/blobstore"
	"github.com/hupe1980/graphbeam/codec"
	"github.com/hupe1980/graphbeam/graph"
	"github.com/hupe1980/graphbeam/level"
)

// Graph is one retained graph of the final level.
type Graph struct {
	Edges          [][2]int `json:"edges"`
	SumOfDistances int      `json:"sum_of_distances"`
	Diameter       int      `json:"diameter"`
	MaxDegree      int      `json:"max_degree"`
}

func graphOf(r *graph.Record) Graph {
	return Graph{
		Edges:          r.Edges(),
		SumOfDistances: r.SumOfDistances,
		Diameter:       r.Diameter,
		MaxDegree:      r.MaxK,
	}
}

// Worse reports whether g ranks below o.
func (g Graph) Worse(o Graph) bool {
	if g.SumOfDistances != o.SumOfDistances {
		return g.SumOfDistances > o.SumOfDistances
	}
	return g.Diameter > o.Diameter
}

func (g Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "sum=%d diam=%d [", g.SumOfDistances, g.Diameter)
	for i, e := range g.Edges {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d-%d", e[0], e[1])
	}
	sb.WriteByte(']')
	return sb.String()
}

// Bucket holds the graphs with the same edge count, best first.
type Bucket struct {
	Edges  int     `json:"m"`
	Graphs []Graph `json:"graphs"`
}

// Result is the final level of a search.
type Result struct {
	N         int           `json:"n"`
	MaxDegree int           `json:"max_degree"`
	Capacity  int           `json:"capacity"`
	StartN    int           `json:"start_n"`
	Duration  time.Duration `json:"duration_ns"`
	Buckets   []Bucket      `json:"buckets"`
}

// NewResult snapshots a level. The level is left unchanged.
func NewResult(l *level.Level, capacity, startN int, d time.Duration) *Result {
	r := &Result{
		N:         l.N(),
		MaxDegree: l.MaxDegree(),
		Capacity:  capacity,
		StartN:    startN,
		Duration:  d,
		Buckets:   make([]Bucket, l.NumBuckets()),
	}
	for i := range r.Buckets {
		sorted := l.Sorted(i)
		b := Bucket{Edges: l.MinEdges() + i, Graphs: make([]Graph, len(sorted))}
		for j, g := range sorted {
			b.Graphs[j] = graphOf(g)
		}
		r.Buckets[i] = b
	}
	return r
}

// Len returns the number of graphs in the result.
func (r *Result) Len() int {
	n := 0
	for _, b := range r.Buckets {
		n += len(b.Graphs)
	}
	return n
}

// Best returns the best graph over all buckets.
func (r *Result) Best() (Graph, bool) {
	var best Graph
	found := false
	for _, b := range r.Buckets {
		if len(b.Graphs) == 0 {
			continue
		}
		if g := b.Graphs[0]; !found || best.Worse(g) {
			best, found = g, true
		}
	}
	return best, found
}

// WriteText writes the result one bucket at a time, best graph first.
func (r *Result) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "For n = %d\n", r.N); err != nil {
		return err
	}
	for _, b := range r.Buckets {
		if _, err := fmt.Fprintf(w, "m = %d:\n", b.Edges); err != nil {
			return err
		}
		for _, g := range b.Graphs {
			if _, err := fmt.Fprintf(w, "  %s\n", g); err != nil {
				return err
			}
		}
	}
	return nil
}

// Encode serializes the result with c (codec.Default if nil).
func (r *Result) Encode(c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	return c.Marshal(r)
}

// DecodeResult is the inverse of Encode.
func DecodeResult(data []byte, c codec.Codec) (*Result, error) {
	if c == nil {
		c = codec.Default
	}
	var r Result
	if err := c.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Publish writes the result to store as name.json (streamed, encoded with c)
// and name.txt.
func (r *Result) Publish(ctx context.Context, store blobstore.Store, name string, c codec.Codec) error {
	data, err := r.Encode(c)
	if err != nil {
		return err
	}
	w, err := store.Create(ctx, name+".json")
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Abort()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	var text bytes.Buffer
	if err := r.WriteText(&text); err != nil {
		return err
	}
	return store.Put(ctx, name+".txt", text.Bytes())
}
