package cluster

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/graphbeam/graph"
	"github.com/hupe1980/graphbeam/level"
	"github.com/hupe1980/graphbeam/wire"
)

// runRoot seeds the first level, drives every level transition and returns
// the merged level on FinalN vertices.
func runRoot(ctx context.Context, n *node) (*level.Level, error) {
	d, err := newDistributor(n, n.cfg.StartN)
	if err != nil {
		return nil, n.fail(wire.TagInput, err)
	}

	// The seed level is a regular level: P graphs per bucket, best kept.
	first, err := n.newAccumulator(n.cfg.StartN)
	if err != nil {
		return nil, n.fail(wire.TagInput, err)
	}
	seeds := 0
	err = n.cfg.Seeds.Generate(ctx, n.cfg.StartN, n.cfg.MaxDegree, func(g *graph.Record) {
		first.AddUnchecked(g)
		seeds++
	})
	if err != nil {
		return nil, n.fail(wire.TagInput, err)
	}
	d.supply = first
	n.logger.Info("seeded", "level", d.size, "generated", seeds, "retained", first.Len())

	if d.size == n.cfg.FinalN {
		final := d.supply
		return final, d.broadcast(ctx, wire.Kill{})
	}
	if err := d.tighten(ctx); err != nil {
		return nil, err
	}

	progress := rate.Sometimes{Interval: time.Second}
	levelStart := time.Now()
	dispatched := 0
	onSend := func(int) { dispatched++ }

	for {
		if err := d.dispatch(ctx, onSend); err != nil {
			return nil, err
		}
		if !d.syncing && d.supply.Len() == 0 {
			if err := d.startSync(ctx); err != nil {
				return nil, err
			}
		}
		progress.Do(func() {
			n.logger.Info("progress", "level", d.size, "dispatched", dispatched,
				"remaining", d.supply.Len(), "accumulated", d.acc.Len())
		})

		from, msg, err := d.recv(ctx)
		if err != nil {
			return nil, err
		}
		if !d.isChild(from) {
			return nil, d.fail(msg.Tag(), protocolf("message from stranger %d", from))
		}
		switch m := msg.(type) {
		case wire.Request:
			d.onRequest(from)
		case wire.Output:
			if err := d.onOutput(from, m); err != nil {
				return nil, d.fail(m.Tag(), err)
			}
		default:
			return nil, d.fail(msg.Tag(), protocolf("unexpected message from child %d", from))
		}

		if !d.synced() {
			continue
		}

		merged := d.acc
		n.cfg.Metrics.RecordLevel(merged.N(), merged.Len(), time.Since(levelStart))
		n.logger.Debug("level merged", "level", merged.N(), "graphs", merged.Len(),
			"dispatched", dispatched, "duration", time.Since(levelStart))
		if merged.N() == n.cfg.FinalN {
			return merged, d.broadcast(ctx, wire.Kill{})
		}

		// Requests queued after each child's output carry over to the new level.
		if err := d.reset(merged.N()); err != nil {
			return nil, d.fail(wire.TagNewLevel, err)
		}
		d.supply = merged
		levelStart, dispatched = time.Now(), 0
		if err := d.tighten(ctx); err != nil {
			return nil, err
		}
	}
}

// tighten derives per-bucket capacities for the accumulator from the memory
// budget and pushes them down before any graph of the level is handed out.
func (d *distributor) tighten(ctx context.Context) error {
	numM := d.acc.NumBuckets()
	per := d.cfg.Limits.BucketCapacity(numM, int64(wire.RecordSize(d.acc.N(), true)), d.cfg.Capacity)
	if per >= d.cfg.Capacity {
		return nil
	}
	caps := make([]int, numM)
	for i := range caps {
		caps[i] = per
	}
	if _, err := d.acc.SetCapacities(caps); err != nil {
		return d.fail(wire.TagMaxGraphs, err)
	}
	d.logger.Info("capacity tightened", "level", d.acc.N(), "capacity", per)
	return d.broadcast(ctx, wire.MaxGraphs{N: d.acc.N(), Capacities: caps})
}
