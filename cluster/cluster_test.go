package cluster

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphbeam/canon"
	"github.com/hupe1980/graphbeam/graph"
	"github.com/hupe1980/graphbeam/level"
	"github.com/hupe1980/graphbeam/resource"
	"github.com/hupe1980/graphbeam/seed"
	"github.com/hupe1980/graphbeam/transport"
	"github.com/hupe1980/graphbeam/wire"
)

type event struct {
	node int
	kind string // "input" (root sent an input) or "extend" (worker extended)
	n    int
}

type recorder struct {
	mu     sync.Mutex
	events []event
	levels []int
}

func (r *recorder) RecordLevel(n, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, n)
}

func (r *recorder) RecordExtension(node, n int, _ level.ExtendStats, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{node: node, kind: "extend", n: n})
}

func (r *recorder) RecordMessage(node int, tag wire.Tag, n, _ int, sent bool) {
	if node != 0 || tag != wire.TagInput || !sent {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{node: node, kind: "input", n: n})
}

func sequential(t *testing.T, cfg Config) *level.Level {
	t.Helper()
	cur, err := level.New(cfg.StartN, cfg.MaxDegree, cfg.Capacity, cfg.Canonicalizer)
	require.NoError(t, err)
	require.NoError(t, cfg.Seeds.Generate(context.Background(), cfg.StartN, cfg.MaxDegree, func(g *graph.Record) {
		cur.AddUnchecked(g)
	}))
	for size := cfg.StartN; size < cfg.FinalN; size++ {
		next, err := level.New(size+1, cfg.MaxDegree, cfg.Capacity, cfg.Canonicalizer)
		require.NoError(t, err)
		_, err = level.ExtendLevel(cur, next)
		require.NoError(t, err)
		cur = next
	}
	return cur
}

func forms(l *level.Level, bucket int) []string {
	var out []string
	for _, g := range l.Sorted(bucket) {
		out = append(out, string(g.CanonicalForm(canon.Refiner{})))
	}
	slices.Sort(out)
	return out
}

type key struct{ sum, diam int }

func keys(l *level.Level, bucket int) []key {
	var out []key
	for _, g := range l.Sorted(bucket) {
		out = append(out, key{g.SumOfDistances, g.Diameter})
	}
	return out
}

func TestTopology(t *testing.T) {
	topo, err := TwoTier(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 9, topo.Len())
	assert.Equal(t, RoleRoot, topo.Role(0))
	assert.Equal(t, RoleRelay, topo.Role(1))
	assert.Equal(t, RoleWorker, topo.Role(8))
	assert.Equal(t, []int{1, 2}, topo.Children(0))
	assert.Equal(t, []int{6, 7, 8}, topo.Children(2))
	p, ok := topo.Parent(5)
	assert.True(t, ok)
	assert.Equal(t, 1, p)
	_, ok = topo.Parent(0)
	assert.False(t, ok)

	_, err = NewTopology([]int{-1})
	require.ErrorIs(t, err, ErrTopology)
	_, err = NewTopology([]int{-1, 2, 1})
	require.ErrorIs(t, err, ErrTopology)
	_, err = NewTopology([]int{-1, 5})
	require.ErrorIs(t, err, ErrTopology)
}

func TestLevelBarrier(t *testing.T) {
	rec := &recorder{}
	cfg := Config{
		MaxDegree: 3,
		Capacity:  50,
		StartN:    4,
		FinalN:    7,
		Seeds: seed.Fixed{Graphs: [][][2]int{
			{{0, 1}, {1, 2}, {2, 3}},
			{{0, 1}, {0, 2}, {0, 3}},
			{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
			{{0, 1}, {1, 2}, {2, 0}, {2, 3}},
		}},
		Metrics: rec,
	}
	topo, err := Star(2)
	require.NoError(t, err)

	final, err := RunLocal(context.Background(), topo, cfg)
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Equal(t, 7, final.N())
	assert.Equal(t, []int{5, 6, 7}, rec.levels)

	// Once a worker extends a graph on n+1 vertices, the root must never
	// hand out another graph on n vertices.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	maxExtended := 0
	inputs := map[int]int{}
	for _, e := range rec.events {
		switch e.kind {
		case "extend":
			maxExtended = max(maxExtended, e.n)
		case "input":
			assert.GreaterOrEqual(t, e.n, maxExtended, "root sent level %d after a worker started level %d", e.n, maxExtended)
			inputs[e.n]++
		}
	}
	assert.Equal(t, 4, inputs[4])
}

func TestLocalMatchesSequential(t *testing.T) {
	tests := []struct {
		name     string
		topo     func() (Topology, error)
		capacity int
		finalN   int
	}{
		{"star", func() (Topology, error) { return Star(3) }, 10_000, 7},
		{"two tier", func() (Topology, error) { return TwoTier(2, 2) }, 10_000, 7},
		{"deep", func() (Topology, error) { return NewTopology([]int{-1, 0, 1, 2, 2, 0}) }, 10_000, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				MaxDegree:     3,
				Capacity:      tt.capacity,
				StartN:        4,
				FinalN:        tt.finalN,
				Seeds:         seed.Exhaustive{},
				Canonicalizer: canon.Refiner{},
				Codec:         wire.Codec{Compression: wire.CompressionLZ4, Threshold: 256},
			}
			topo, err := tt.topo()
			require.NoError(t, err)

			got, err := RunLocal(context.Background(), topo, cfg)
			require.NoError(t, err)
			want := sequential(t, cfg)

			require.Equal(t, want.NumBuckets(), got.NumBuckets())
			require.Equal(t, want.Len(), got.Len())
			for i := 0; i < want.NumBuckets(); i++ {
				assert.Equal(t, forms(want, i), forms(got, i), "bucket %d", i)
			}
		})
	}
}

func TestLocalBeamKeepsBestKeys(t *testing.T) {
	cfg := Config{
		MaxDegree: 3,
		Capacity:  3,
		StartN:    6,
		FinalN:    7,
		Seeds:     seed.Exhaustive{},
		Codec:     wire.Codec{Compression: wire.CompressionZSTD, Threshold: 64},
	}
	topo, err := TwoTier(2, 2)
	require.NoError(t, err)

	got, err := RunLocal(context.Background(), topo, cfg)
	require.NoError(t, err)
	want := sequential(t, cfg)
	for i := 0; i < want.NumBuckets(); i++ {
		assert.Equal(t, keys(want, i), keys(got, i), "bucket %d", i)
		assert.LessOrEqual(t, got.BucketLen(i), 3)
	}
}

func TestSeedLevelKeepsCapacity(t *testing.T) {
	cfg := Config{
		MaxDegree: 3,
		Capacity:  1,
		StartN:    6,
		FinalN:    6,
		Seeds:     seed.Exhaustive{},
	}
	topo, err := Star(2)
	require.NoError(t, err)

	got, err := RunLocal(context.Background(), topo, cfg)
	require.NoError(t, err)
	want := sequential(t, cfg)
	require.Equal(t, want.Len(), got.Len())
	for i := 0; i < want.NumBuckets(); i++ {
		assert.LessOrEqual(t, got.BucketLen(i), 1, "bucket %d", i)
		assert.Equal(t, keys(want, i), keys(got, i), "bucket %d", i)
	}
}

func TestCapacityOverride(t *testing.T) {
	cfg := Config{
		MaxDegree: 3,
		Capacity:  100,
		StartN:    4,
		FinalN:    6,
		Seeds:     seed.Exhaustive{},
		// Room for about two graphs per bucket.
		Limits: resource.NewController(resource.Config{MemoryLimitBytes: 2 * 5 * int64(wire.RecordSize(6, true))}),
	}
	topo, err := Star(2)
	require.NoError(t, err)

	got, err := RunLocal(context.Background(), topo, cfg)
	require.NoError(t, err)
	require.Equal(t, 5, got.NumBuckets())
	total := 0
	for i := 0; i < got.NumBuckets(); i++ {
		assert.LessOrEqual(t, got.BucketLen(i), 2, "bucket %d", i)
		total += got.BucketLen(i)
	}
	assert.Positive(t, total)
}

func TestFinalEqualsStart(t *testing.T) {
	cfg := Config{MaxDegree: 2, Capacity: 10, StartN: 4, FinalN: 4, Seeds: seed.Exhaustive{}}
	topo, err := Star(1)
	require.NoError(t, err)

	got, err := RunLocal(context.Background(), topo, cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, got.N())
	assert.Equal(t, 2, got.Len())
}

func TestConfigValidate(t *testing.T) {
	topo, err := Star(1)
	require.NoError(t, err)
	for _, cfg := range []Config{
		{MaxDegree: 1, Capacity: 1, StartN: 3, FinalN: 4},
		{MaxDegree: 3, Capacity: 0, StartN: 3, FinalN: 4},
		{MaxDegree: 3, Capacity: 1, StartN: 5, FinalN: 4},
	} {
		_, err := RunLocal(context.Background(), topo, cfg)
		require.ErrorIs(t, err, ErrConfig)
	}
}

// A graph of the wrong size kills the worker with a protocol error.
func TestWorkerRejectsWrongLevel(t *testing.T) {
	topo, err := Star(1)
	require.NoError(t, err)
	mesh := transport.NewMesh(0, 1)
	defer mesh.Close()
	rootEP, _ := mesh.Endpoint(0)
	workerEP, _ := mesh.Endpoint(1)

	cfg := Config{MaxDegree: 3, Capacity: 10, StartN: 4, FinalN: 6}
	done := make(chan error, 1)
	go func() {
		_, err := RunNode(context.Background(), 1, topo, workerEP, cfg)
		done <- err
	}()

	ctx := context.Background()
	_, frame, err := rootEP.Recv(ctx)
	require.NoError(t, err)
	tag, _ := wire.PeekTag(frame)
	require.Equal(t, wire.TagRequest, tag)

	bad, err := wire.Codec{}.Encode(wire.Input{Graph: mustPath(t, 5)})
	require.NoError(t, err)
	require.NoError(t, rootEP.Send(ctx, 1, bad))

	err = <-done
	require.ErrorIs(t, err, ErrProtocol)
	var ne *NodeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, 1, ne.Node)
	assert.Equal(t, wire.TagInput, ne.Tag)
}

// kitePlusTail is K4 with a pendant vertex: vertex 3 has degree 4.
func kitePlusTail(t *testing.T) *graph.Record {
	t.Helper()
	g, err := graph.FromEdges(5, [][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}, {3, 4}})
	require.NoError(t, err)
	return g
}

func TestInputOverDegreeBoundIsFatal(t *testing.T) {
	for name, parents := range map[string][]int{
		"worker": {-1, 0},
		"relay":  {-1, 0, 1},
	} {
		t.Run(name, func(t *testing.T) {
			topo, err := NewTopology(parents)
			require.NoError(t, err)
			mesh := transport.NewMesh(topo.IDs()...)
			defer mesh.Close()
			rootEP, _ := mesh.Endpoint(0)
			nodeEP, _ := mesh.Endpoint(1)

			cfg := Config{MaxDegree: 2, Capacity: 10, StartN: 5, FinalN: 7}
			done := make(chan error, 1)
			go func() {
				_, err := RunNode(context.Background(), 1, topo, nodeEP, cfg)
				done <- err
			}()

			frame, err := wire.Codec{}.Encode(wire.Input{Graph: kitePlusTail(t)})
			require.NoError(t, err)
			require.NoError(t, rootEP.Send(context.Background(), 1, frame))

			err = <-done
			require.ErrorIs(t, err, ErrProtocol)
			require.ErrorIs(t, err, graph.ErrDegreeBound)
			var ne *NodeError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, 1, ne.Node)
			assert.Equal(t, wire.TagInput, ne.Tag)
		})
	}
}

func TestCorruptFrameIsFatal(t *testing.T) {
	topo, err := Star(1)
	require.NoError(t, err)
	mesh := transport.NewMesh(0, 1)
	defer mesh.Close()
	rootEP, _ := mesh.Endpoint(0)
	workerEP, _ := mesh.Endpoint(1)

	done := make(chan error, 1)
	go func() {
		_, err := RunNode(context.Background(), 1, topo, workerEP, Config{MaxDegree: 3, Capacity: 10, StartN: 4, FinalN: 6})
		done <- err
	}()

	ctx := context.Background()
	_, _, err = rootEP.Recv(ctx)
	require.NoError(t, err)
	frame, err := wire.Codec{}.Encode(wire.Input{Graph: mustPath(t, 4)})
	require.NoError(t, err)
	frame[len(frame)-1] ^= 1
	require.NoError(t, rootEP.Send(ctx, 1, frame))

	err = <-done
	require.ErrorIs(t, err, wire.ErrCorruptFrame)
}

func TestCancelStopsNodes(t *testing.T) {
	topo, err := Star(1)
	require.NoError(t, err)
	mesh := transport.NewMesh(0, 1)
	defer mesh.Close()
	workerEP, _ := mesh.Endpoint(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := RunNode(ctx, 1, topo, workerEP, Config{MaxDegree: 3, Capacity: 10, StartN: 4, FinalN: 6})
		done <- err
	}()
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func mustPath(t *testing.T, n int) *graph.Record {
	t.Helper()
	edges := make([][2]int, 0, n-1)
	for i := 0; i+1 < n; i++ {
		edges = append(edges, [2]int{i, i + 1})
	}
	g, err := graph.FromEdges(n, edges)
	require.NoError(t, err)
	return g
}
