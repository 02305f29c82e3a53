package cluster

import (
	"context"
	"time"

	"github.com/hupe1980/graphbeam/level"
	"github.com/hupe1980/graphbeam/wire"
)

// runWorker extends every graph it receives into a local accumulator and
// flushes the accumulator whenever its parent advances the level.
func runWorker(ctx context.Context, n *node) error {
	size := n.cfg.StartN
	acc, err := n.newAccumulator(size + 1)
	if err != nil {
		return n.fail(wire.TagRequest, err)
	}
	if err := n.send(ctx, n.parent, wire.Request{}); err != nil {
		return err
	}

	for {
		from, msg, err := n.recv(ctx)
		if err != nil {
			return err
		}
		if from != n.parent {
			return n.fail(msg.Tag(), protocolf("message from %d, parent is %d", from, n.parent))
		}

		switch m := msg.(type) {
		case wire.Input:
			if err := n.checkInput(m.Graph, size); err != nil {
				return n.fail(m.Tag(), err)
			}
			if err := n.extend(ctx, m, acc); err != nil {
				return err
			}
			if err := n.send(ctx, n.parent, wire.Request{}); err != nil {
				return err
			}

		case wire.NewLevel:
			if m.N != size+1 {
				return n.fail(m.Tag(), protocolf("advance to %d during level %d", m.N, size))
			}
			if err := n.flush(ctx, acc); err != nil {
				return err
			}
			size = m.N
			if err := acc.Reset(size+1, n.cfg.Capacity); err != nil {
				return n.fail(m.Tag(), err)
			}
			if err := n.send(ctx, n.parent, wire.Request{}); err != nil {
				return err
			}

		case wire.MaxGraphs:
			if err := applyCapacities(acc, m); err != nil {
				return n.fail(m.Tag(), err)
			}

		case wire.Kill:
			n.logger.Debug("killed", "level", size)
			return nil

		default:
			return n.fail(msg.Tag(), protocolf("unexpected message from parent"))
		}
	}
}

func (n *node) extend(ctx context.Context, m wire.Input, acc *level.Level) error {
	if err := n.cfg.Limits.AcquireWorker(ctx); err != nil {
		return n.fail(m.Tag(), err)
	}
	start := time.Now()
	st, err := level.Extend(m.Graph, acc)
	n.cfg.Limits.ReleaseWorker()
	if err != nil {
		return n.fail(m.Tag(), err)
	}
	n.cfg.Metrics.RecordExtension(n.id, m.Graph.N, st, time.Since(start))
	return nil
}

func applyCapacities(acc *level.Level, m wire.MaxGraphs) error {
	if m.N != acc.N() {
		return protocolf("capacities for level %d, accumulating %d", m.N, acc.N())
	}
	_, err := acc.SetCapacities(m.Capacities)
	return err
}
