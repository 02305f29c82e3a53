// Package seed produces the graphs of the first search level.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/graphbeam/canon"
	"github.com/hupe1980/graphbeam/graph"
	"github.com/hupe1980/graphbeam/level"
)

// ErrInvalidSeed is returned when a seed graph does not fit the requested level.
var ErrInvalidSeed = errors.New("invalid seed graph")

// Generator delivers every seed graph on n vertices with degree at most
// maxDegree. Emitted graphs must be pairwise non-isomorphic.
type Generator interface {
	Generate(ctx context.Context, n, maxDegree int, emit func(*graph.Record)) error
}

// Exhaustive enumerates all connected graphs on n vertices up to isomorphism
// by growing every graph one vertex at a time without any retention bound.
// It is meant for small n: the number of graphs grows super-exponentially.
type Exhaustive struct {
	Canonicalizer canon.Canonicalizer
}

// Generate implements Generator.
func (e Exhaustive) Generate(ctx context.Context, n, maxDegree int, emit func(*graph.Record)) error {
	if n < 1 {
		return fmt.Errorf("n=%d: %w", n, ErrInvalidSeed)
	}
	cur, err := level.New(1, maxDegree, math.MaxInt, e.Canonicalizer)
	if err != nil {
		return err
	}
	single, err := graph.FromEdges(1, nil)
	if err != nil {
		return err
	}
	cur.AddUnchecked(single)

	for size := 2; size <= n; size++ {
		next, err := level.New(size, maxDegree, math.MaxInt, e.Canonicalizer)
		if err != nil {
			return err
		}
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			g, ok := cur.Next()
			if !ok {
				break
			}
			if _, err := level.Extend(g, next); err != nil {
				return err
			}
		}
		cur = next
	}

	for i := 0; i < cur.NumBuckets(); i++ {
		for _, g := range cur.TakeBucket(i) {
			if err := ctx.Err(); err != nil {
				return err
			}
			emit(g)
		}
	}
	return nil
}

// Fixed emits an explicit list of edge lists.
type Fixed struct {
	Graphs [][][2]int
}

// Generate implements Generator. Every graph must be connected, have n
// vertices and respect maxDegree.
func (f Fixed) Generate(ctx context.Context, n, maxDegree int, emit func(*graph.Record)) error {
	for i, edges := range f.Graphs {
		if err := ctx.Err(); err != nil {
			return err
		}
		g, err := graph.FromEdges(n, edges)
		if err != nil {
			return fmt.Errorf("seed %d: %w: %w", i, ErrInvalidSeed, err)
		}
		if err := g.Validate(maxDegree); err != nil {
			return fmt.Errorf("seed %d: %w: %w", i, ErrInvalidSeed, err)
		}
		emit(g)
	}
	return nil
}
