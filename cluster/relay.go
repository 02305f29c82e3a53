package cluster

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/graphbeam/level"
	"github.com/hupe1980/graphbeam/wire"
)

// distributor hands out a supply level to requesting children and collects
// their output once the supply is gone. Root and relays embed it.
type distributor struct {
	*node

	size    int          // vertex count of the supply
	supply  *level.Level // graphs not yet handed out
	acc     *level.Level // merged output of the children, size+1 vertices
	waiting []int        // children with an unanswered request, FIFO
	syncing bool
	pending *roaring.Bitmap // children whose output is incomplete
}

func newDistributor(n *node, size int) (*distributor, error) {
	d := &distributor{node: n, pending: roaring.New()}
	if err := d.reset(size); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *distributor) reset(size int) error {
	supply, err := d.newSupply(size)
	if err != nil {
		return err
	}
	acc, err := d.newAccumulator(size + 1)
	if err != nil {
		return err
	}
	d.size, d.supply, d.acc = size, supply, acc
	d.syncing = false
	return nil
}

// dispatch answers waiting requests while the supply lasts.
func (d *distributor) dispatch(ctx context.Context, onSend func(int)) error {
	for len(d.waiting) > 0 {
		g, ok := d.supply.Next()
		if !ok {
			return nil
		}
		child := d.waiting[0]
		d.waiting = d.waiting[1:]
		if onSend != nil {
			onSend(child)
		}
		if err := d.send(ctx, child, wire.Input{Graph: g}); err != nil {
			return err
		}
	}
	return nil
}

// startSync tells every child to advance and waits for all of them.
// Requests still queued belong to the finished level and are dropped.
func (d *distributor) startSync(ctx context.Context) error {
	d.syncing = true
	d.waiting = d.waiting[:0]
	d.pending.Clear()
	for _, c := range d.children {
		d.pending.Add(uint32(c))
	}
	d.logger.Debug("level exhausted", "level", d.size)
	return d.broadcast(ctx, wire.NewLevel{N: d.size + 1})
}

// onRequest queues a child's request. During a sync, a request from a child
// that has not finished its output is left over from the old level.
func (d *distributor) onRequest(child int) {
	if d.syncing && d.pending.Contains(uint32(child)) {
		return
	}
	d.waiting = append(d.waiting, child)
}

// onOutput merges one bucket of a child's output.
func (d *distributor) onOutput(child int, m wire.Output) error {
	if !d.syncing || !d.pending.Contains(uint32(child)) {
		return protocolf("output from %d outside a level sync", child)
	}
	if m.N != d.acc.N() || m.NumBuckets != d.acc.NumBuckets() || m.Bucket < 0 || m.Bucket >= m.NumBuckets {
		return protocolf("output bucket %d/%d for level %d, accumulating %d", m.Bucket, m.NumBuckets, m.N, d.acc.N())
	}
	for _, g := range m.Graphs {
		if g.N != m.N || g.M-d.acc.MinEdges() != m.Bucket {
			return protocolf("graph with %d edges in bucket %d", g.M, m.Bucket)
		}
		if err := g.Validate(d.cfg.MaxDegree); err != nil {
			return err
		}
		d.acc.Add(g)
	}
	if m.Last() {
		d.pending.Remove(uint32(child))
	}
	return nil
}

func (d *distributor) synced() bool {
	return d.syncing && d.pending.IsEmpty()
}

func (d *distributor) isChild(id int) bool {
	for _, c := range d.children {
		if c == id {
			return true
		}
	}
	return false
}

// runRelay forwards work from its parent to its children and their merged
// output back up.
func runRelay(ctx context.Context, n *node) error {
	d, err := newDistributor(n, n.cfg.StartN)
	if err != nil {
		return n.fail(wire.TagRequest, err)
	}
	upstream := 0       // requests sent to the parent and not yet answered
	parentDone := false // parent has advanced past d.size

	for {
		from, msg, err := d.recv(ctx)
		if err != nil {
			return err
		}

		switch {
		case from == d.parent:
			switch m := msg.(type) {
			case wire.Input:
				if parentDone {
					return d.fail(m.Tag(), protocolf("graph after advance to level %d", d.size+1))
				}
				if err := d.checkInput(m.Graph, d.size); err != nil {
					return d.fail(m.Tag(), err)
				}
				upstream--
				d.supply.AddUnchecked(m.Graph)
			case wire.NewLevel:
				if m.N != d.size+1 || parentDone {
					return d.fail(m.Tag(), protocolf("advance to %d during level %d", m.N, d.size))
				}
				parentDone = true
			case wire.MaxGraphs:
				if err := applyCapacities(d.acc, m); err != nil {
					return d.fail(m.Tag(), err)
				}
				if err := d.broadcast(ctx, m); err != nil {
					return err
				}
			case wire.Kill:
				d.logger.Debug("killed", "level", d.size)
				return d.broadcast(ctx, m)
			default:
				return d.fail(msg.Tag(), protocolf("unexpected message from parent"))
			}

		case d.isChild(from):
			switch m := msg.(type) {
			case wire.Request:
				d.onRequest(from)
			case wire.Output:
				if err := d.onOutput(from, m); err != nil {
					return d.fail(m.Tag(), err)
				}
			default:
				return d.fail(msg.Tag(), protocolf("unexpected message from child %d", from))
			}

		default:
			return d.fail(msg.Tag(), protocolf("message from stranger %d", from))
		}

		if err := d.dispatch(ctx, nil); err != nil {
			return err
		}

		if d.synced() {
			if err := d.flush(ctx, d.acc); err != nil {
				return err
			}
			if err := d.reset(d.size + 1); err != nil {
				return d.fail(wire.TagOutput, err)
			}
			// Requests sent upstream during the old level were dropped by the parent.
			upstream = 0
			parentDone = false
		}

		if !parentDone && !d.syncing {
			for upstream < len(d.waiting) {
				if err := d.send(ctx, d.parent, wire.Request{}); err != nil {
					return err
				}
				upstream++
			}
		}

		if parentDone && !d.syncing && d.supply.Len() == 0 {
			if err := d.startSync(ctx); err != nil {
				return err
			}
		}
	}
}
