// Package cluster distributes vertex extension over a tree of nodes.
//
// The root owns the level being extended and hands its graphs out one at a
// time to whichever child asks. Relays repeat this for their own children
// with graphs pulled from their parent. Workers extend every graph they get
// into a local accumulator. Once a node's supply of level n is exhausted it
// tells its children to advance, merges their accumulators bucket by bucket
// and passes the merged result up. The root finally broadcasts a kill.
//
// Nodes share nothing but frames, so the same code runs with every node in
// one process (RunLocal) or one node per process (RunNode over websockets).
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/hupe1980/graphbeam/canon"
	"github.com/hupe1980/graphbeam/graph"
	"github.com/hupe1980/graphbeam/level"
	"github.com/hupe1980/graphbeam/resource"
	"github.com/hupe1980/graphbeam/seed"
	"github.com/hupe1980/graphbeam/transport"
	"github.com/hupe1980/graphbeam/wire"
)

// ErrConfig is returned for inconsistent search parameters.
var ErrConfig = errors.New("invalid cluster config")

// Config holds the search parameters every node must agree on, plus
// per-process collaborators.
type Config struct {
	// MaxDegree bounds every vertex degree.
	MaxDegree int
	// Capacity is the number of graphs kept per edge-count bucket.
	Capacity int
	// StartN is the vertex count of the seed level.
	StartN int
	// FinalN is the vertex count of the returned level.
	FinalN int

	// Seeds fills the first level. Only the root uses it.
	Seeds seed.Generator
	// Canonicalizer deduplicates graphs. Defaults to canon.Refiner.
	Canonicalizer canon.Canonicalizer
	// Codec encodes frames. Its Canonicalizer is set from Canonicalizer.
	Codec wire.Codec
	// Limits bounds memory, concurrent extension and link bandwidth. Optional.
	Limits *resource.Controller
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
	// Metrics defaults to NoopMetrics.
	Metrics Metrics
}

// Validate checks the parameters and fills defaults.
func (c *Config) Validate() error {
	if c.MaxDegree < 2 {
		return fmt.Errorf("max degree %d < 2: %w", c.MaxDegree, ErrConfig)
	}
	if c.Capacity < 1 {
		return fmt.Errorf("capacity %d < 1: %w", c.Capacity, ErrConfig)
	}
	if c.StartN < 1 || c.FinalN < c.StartN {
		return fmt.Errorf("levels %d..%d: %w", c.StartN, c.FinalN, ErrConfig)
	}
	if c.Canonicalizer == nil {
		c.Canonicalizer = canon.Refiner{}
	}
	c.Codec.Canonicalizer = c.Canonicalizer
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Metrics == nil {
		c.Metrics = NoopMetrics{}
	}
	return nil
}

// RunNode runs node id of topo over ep until it is killed or fails.
// The root returns the final level; other nodes return nil.
func RunNode(ctx context.Context, id int, topo Topology, ep transport.Endpoint, cfg Config) (*level.Level, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !topo.Contains(id) {
		return nil, fmt.Errorf("node %d not in topology: %w", id, ErrTopology)
	}
	n := newNode(id, topo, ep, cfg)
	switch topo.Role(id) {
	case RoleRoot:
		if cfg.Seeds == nil {
			return nil, fmt.Errorf("root without seed generator: %w", ErrConfig)
		}
		return runRoot(ctx, n)
	case RoleRelay:
		return nil, runRelay(ctx, n)
	default:
		return nil, runWorker(ctx, n)
	}
}

// node is the state shared by every role.
type node struct {
	id       int
	parent   int
	children []int
	ep       transport.Endpoint
	cfg      Config
	logger   *slog.Logger
}

func newNode(id int, topo Topology, ep transport.Endpoint, cfg Config) *node {
	parent, _ := topo.Parent(id)
	return &node{
		id:       id,
		parent:   parent,
		children: topo.Children(id),
		ep:       ep,
		cfg:      cfg,
		logger:   cfg.Logger.With("node", id, "role", topo.Role(id).String()),
	}
}

func (n *node) fail(tag wire.Tag, err error) error {
	var ne *NodeError
	if errors.As(err, &ne) {
		return err
	}
	return &NodeError{Node: n.id, Tag: tag, Err: err}
}

func (n *node) send(ctx context.Context, to int, m wire.Message) error {
	frame, err := n.cfg.Codec.Encode(m)
	if err != nil {
		return n.fail(m.Tag(), err)
	}
	if err := n.ep.Send(ctx, to, frame); err != nil {
		return n.fail(m.Tag(), fmt.Errorf("send to %d: %w", to, err))
	}
	n.cfg.Metrics.RecordMessage(n.id, m.Tag(), vertexCount(m), len(frame), true)
	return nil
}

func (n *node) broadcast(ctx context.Context, m wire.Message) error {
	for _, c := range n.children {
		if err := n.send(ctx, c, m); err != nil {
			return err
		}
	}
	return nil
}

func (n *node) recv(ctx context.Context) (int, wire.Message, error) {
	from, frame, err := n.ep.Recv(ctx)
	if err != nil {
		tag, _ := wire.PeekTag(frame)
		return 0, nil, n.fail(tag, fmt.Errorf("receive: %w", err))
	}
	m, err := n.cfg.Codec.Decode(frame)
	if err != nil {
		tag, _ := wire.PeekTag(frame)
		return 0, nil, n.fail(tag, fmt.Errorf("from %d: %w", from, err))
	}
	n.cfg.Metrics.RecordMessage(n.id, m.Tag(), vertexCount(m), len(frame), false)
	return from, m, nil
}

// flush sends every bucket of acc to the parent, emptying acc.
func (n *node) flush(ctx context.Context, acc *level.Level) error {
	numM := acc.NumBuckets()
	for i := 0; i < numM; i++ {
		out := wire.Output{N: acc.N(), Bucket: i, NumBuckets: numM, Graphs: acc.TakeBucket(i)}
		if err := n.send(ctx, n.parent, out); err != nil {
			return err
		}
	}
	return nil
}

// checkInput rejects an INPUT graph that cannot belong to the level of size
// vertices, before it reaches a level and its bucket lookup.
func (n *node) checkInput(g *graph.Record, size int) error {
	if g.N != size {
		return protocolf("graph on %d vertices during level %d", g.N, size)
	}
	if err := g.Validate(n.cfg.MaxDegree); err != nil {
		return fmt.Errorf("%w: input graph: %w", ErrProtocol, err)
	}
	minM := size - 1
	if b := g.M - minM; b < 0 || b >= level.NumBuckets(size, n.cfg.MaxDegree) {
		return protocolf("graph with %d edges outside the buckets of level %d", g.M, size)
	}
	return nil
}

// newAccumulator creates the level children's output is merged into.
func (n *node) newAccumulator(size int) (*level.Level, error) {
	return level.New(size, n.cfg.MaxDegree, n.cfg.Capacity, n.cfg.Canonicalizer)
}

// newSupply creates an unbounded level for graphs waiting to be handed out.
func (n *node) newSupply(size int) (*level.Level, error) {
	return level.New(size, n.cfg.MaxDegree, math.MaxInt, n.cfg.Canonicalizer)
}

func vertexCount(m wire.Message) int {
	switch m := m.(type) {
	case wire.NewLevel:
		return m.N
	case wire.Input:
		return m.Graph.N
	case wire.Output:
		return m.N
	case wire.MaxGraphs:
		return m.N
	}
	return 0
}
