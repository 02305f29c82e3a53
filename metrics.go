package graphbeam

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/graphbeam/cluster"
	"github.com/hupe1980/graphbeam/level"
	"github.com/hupe1980/graphbeam/wire"
)

// MetricsCollector defines an interface for collecting search metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Every node of a local search reports into the same collector, so
// implementations must be safe for concurrent use.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    extensions prometheus.Counter
//	    levelTime  prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordLevel(n, retained int, d time.Duration) {
//	    p.levelTime.Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordLevel is called by the root after it merged the level on n vertices.
	RecordLevel(n, retained int, duration time.Duration)

	// RecordExtension is called by a worker after extending one graph on n vertices.
	RecordExtension(node, n int, stats level.ExtendStats, duration time.Duration)

	// RecordMessage is called for every frame a node sends or receives.
	// n is the vertex count the message refers to, or 0.
	RecordMessage(node int, tag wire.Tag, n, bytes int, sent bool)
}

var _ cluster.Metrics = MetricsCollector(nil)

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLevel(int, int, time.Duration)                        {}
func (NoopMetricsCollector) RecordExtension(int, int, level.ExtendStats, time.Duration) {}
func (NoopMetricsCollector) RecordMessage(int, wire.Tag, int, int, bool)                {}

const numTags = int(wire.TagMaxGraphs) + 1

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LevelCount       atomic.Int64
	LastLevel        atomic.Int64
	Retained         atomic.Int64
	LevelTotalNanos  atomic.Int64
	Extensions       atomic.Int64
	Children         atomic.Int64
	Admitted         atomic.Int64
	Pruned           atomic.Int64
	ExtendTotalNanos atomic.Int64
	BytesSent        atomic.Int64
	BytesReceived    atomic.Int64

	sent     [numTags]atomic.Int64
	received [numTags]atomic.Int64
}

// RecordLevel implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLevel(n, retained int, duration time.Duration) {
	b.LevelCount.Add(1)
	b.LastLevel.Store(int64(n))
	b.Retained.Store(int64(retained))
	b.LevelTotalNanos.Add(duration.Nanoseconds())
}

// RecordExtension implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExtension(_, _ int, st level.ExtendStats, duration time.Duration) {
	b.Extensions.Add(1)
	b.Children.Add(int64(st.Children))
	b.Admitted.Add(int64(st.Admitted))
	b.Pruned.Add(int64(st.Pruned))
	b.ExtendTotalNanos.Add(duration.Nanoseconds())
}

// RecordMessage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMessage(_ int, tag wire.Tag, _, bytes int, sent bool) {
	if int(tag) >= numTags {
		return
	}
	if sent {
		b.sent[tag].Add(1)
		b.BytesSent.Add(int64(bytes))
	} else {
		b.received[tag].Add(1)
		b.BytesReceived.Add(int64(bytes))
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		LevelCount:     b.LevelCount.Load(),
		LastLevel:      b.LastLevel.Load(),
		Retained:       b.Retained.Load(),
		Extensions:     b.Extensions.Load(),
		Children:       b.Children.Load(),
		Admitted:       b.Admitted.Load(),
		Pruned:         b.Pruned.Load(),
		ExtendAvgNanos: avg(b.ExtendTotalNanos.Load(), b.Extensions.Load()),
		LevelAvgNanos:  avg(b.LevelTotalNanos.Load(), b.LevelCount.Load()),
		BytesSent:      b.BytesSent.Load(),
		BytesReceived:  b.BytesReceived.Load(),
		Sent:           make(map[string]int64, numTags),
		Received:       make(map[string]int64, numTags),
	}
	for i := range numTags {
		tag := wire.Tag(i).String()
		s.Sent[tag] = b.sent[i].Load()
		s.Received[tag] = b.received[i].Load()
	}
	return s
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LevelCount     int64
	LastLevel      int64
	Retained       int64
	LevelAvgNanos  int64
	Extensions     int64
	Children       int64
	Admitted       int64
	Pruned         int64
	ExtendAvgNanos int64
	BytesSent      int64
	BytesReceived  int64
	// Sent and Received count messages by tag name.
	Sent     map[string]int64
	Received map[string]int64
}
