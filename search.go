package graphbeam

import (
	"context"
	"time"

	"github.com/hupe1980/graphbeam/cluster"
	"github.com/hupe1980/graphbeam/transport"
)

// Search runs a beam search with every node of the tree in this process and
// returns the final level.
//
//	res, err := graphbeam.Search(ctx,
//	    graphbeam.WithMaxDegree(3),
//	    graphbeam.WithCapacity(500),
//	    graphbeam.WithLevels(4, 16),
//	    graphbeam.WithWorkers(runtime.NumCPU()),
//	)
func Search(ctx context.Context, opts ...Option) (*Result, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	topo, err := o.buildTopology()
	if err != nil {
		return nil, translateError(err)
	}
	cfg := o.clusterConfig()
	cfg.Metrics = levelReporter{MetricsCollector: o.metrics, ctx: ctx, logger: o.logger}

	start := time.Now()
	final, err := cluster.RunLocal(ctx, topo, cfg)
	o.logger.LogSearch(ctx, o.startN, o.finalN, topo.Len(), time.Since(start), err)
	if err != nil {
		return nil, translateError(err)
	}
	return NewResult(final, o.capacity, o.startN, time.Since(start)), nil
}

// levelReporter logs every merged level before forwarding it.
type levelReporter struct {
	MetricsCollector
	ctx    context.Context
	logger *Logger
}

func (r levelReporter) RecordLevel(n, retained int, d time.Duration) {
	r.logger.WithLevel(n).LogLevelComplete(r.ctx, retained, d)
	r.MetricsCollector.RecordLevel(n, retained, d)
}

// RunNode runs node id of the tree set with WithTopology over ep, for
// searches spread over several processes. Every process must be given the
// same search options. The root returns the final level; every other node
// returns a nil Result once the root has finished.
func RunNode(ctx context.Context, id int, ep transport.Endpoint, opts ...Option) (*Result, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	topo, err := o.buildTopology()
	if err != nil {
		return nil, translateError(err)
	}
	cfg := o.clusterConfig()
	logger := o.logger.WithNode(id)
	if id == 0 {
		cfg.Metrics = levelReporter{MetricsCollector: o.metrics, ctx: ctx, logger: logger}
	}

	start := time.Now()
	final, err := cluster.RunNode(ctx, id, topo, ep, cfg)
	if err != nil {
		logger.LogSearch(ctx, o.startN, o.finalN, topo.Len(), time.Since(start), err)
		return nil, translateError(err)
	}
	if final == nil {
		logger.DebugContext(ctx, "node stopped", "duration", time.Since(start))
		return nil, nil
	}
	logger.LogSearch(ctx, o.startN, o.finalN, topo.Len(), time.Since(start), nil)
	return NewResult(final, o.capacity, o.startN, time.Since(start)), nil
}
