package cluster

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/graphbeam/level"
	"github.com/hupe1980/graphbeam/transport"
)

// RunLocal runs every node of topo in its own goroutine, connected by an
// in-process mesh, and returns the root's final level. The first failing
// node cancels the others. Endpoints stay open until every node has
// returned, so a request racing the final kill is simply never read.
func RunLocal(ctx context.Context, topo Topology, cfg Config) (*level.Level, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mesh := transport.NewMesh(topo.IDs()...)
	defer mesh.Close()

	g, gctx := errgroup.WithContext(ctx)
	var final *level.Level
	for _, id := range topo.IDs() {
		ep, err := mesh.Endpoint(id)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			lvl, err := RunNode(gctx, id, topo, ep, cfg)
			if id == 0 {
				final = lvl
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return final, nil
}
