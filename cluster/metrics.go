package cluster

import (
	"time"

	"github.com/hupe1980/graphbeam/level"
	"github.com/hupe1980/graphbeam/wire"
)

// Metrics observes protocol activity. Implementations must be safe for
// concurrent use when nodes share one process.
type Metrics interface {
	// RecordLevel is called by the root once level n has been merged.
	RecordLevel(n int, retained int, d time.Duration)
	// RecordExtension is called by a worker after extending one graph on n vertices.
	RecordExtension(node int, n int, st level.ExtendStats, d time.Duration)
	// RecordMessage is called for every frame a node sends or receives.
	// n is the vertex count the message concerns, or 0.
	RecordMessage(node int, tag wire.Tag, n int, bytes int, sent bool)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordLevel(int, int, time.Duration)                         {}
func (NoopMetrics) RecordExtension(int, int, level.ExtendStats, time.Duration) {}
func (NoopMetrics) RecordMessage(int, wire.Tag, int, int, bool)                {}
