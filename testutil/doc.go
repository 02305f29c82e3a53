// Package testutil provides testing utilities for graphbeam.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded random source, random connected graphs under a degree
// bound, and the standard small graph shapes.
//
// # Random Graphs
//
//	rng := testutil.NewRNG(seed)
//	g := rng.ConnectedGraph(8, 3)   // 8 vertices, max degree 3
//
// # Fixed Shapes
//
//	p := testutil.Path(4)   // 0-1-2-3
//	c := testutil.Cycle(4)  // 0-1-2-3-0
package testutil
