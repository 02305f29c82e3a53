package graphbeam

import (
	"fmt"
	"runtime"

	"github.com/hupe1980/graphbeam/canon"
	"github.com/hupe1980/graphbeam/cluster"
	"github.com/hupe1980/graphbeam/resource"
	"github.com/hupe1980/graphbeam/seed"
	"github.com/hupe1980/graphbeam/wire"
)

type options struct {
	maxDegree int
	capacity  int
	startN    int
	finalN    int

	seeds    seed.Generator
	canon    canon.Canonicalizer
	topology *cluster.Topology
	workers  int
	codec    wire.Codec
	limits   resource.Config
	logger   *Logger
	metrics  MetricsCollector
}

func defaultOptions() options {
	return options{
		maxDegree: 3,
		capacity:  100,
		startN:    4,
		finalN:    10,
		workers:   1,
		codec: wire.Codec{
			Compression: wire.CompressionLZ4,
			Threshold:   wire.DefaultCompressThreshold,
		},
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	}
}

// Option configures a Search.
type Option func(*options)

// WithMaxDegree bounds the degree of every vertex. Default 3.
func WithMaxDegree(d int) Option {
	return func(o *options) {
		o.maxDegree = d
	}
}

// WithCapacity sets how many graphs each edge-count bucket keeps. Default 100.
func WithCapacity(p int) Option {
	return func(o *options) {
		o.capacity = p
	}
}

// WithLevels sets the seed level and the final level. Default 4 and 10.
func WithLevels(startN, finalN int) Option {
	return func(o *options) {
		o.startN = startN
		o.finalN = finalN
	}
}

// WithSeedGraphs starts the search from the given edge lists instead of every
// connected graph on startN vertices.
func WithSeedGraphs(graphs ...[][2]int) Option {
	return func(o *options) {
		o.seeds = seed.Fixed{Graphs: graphs}
	}
}

// WithSeedGenerator replaces the seed generator.
func WithSeedGenerator(g seed.Generator) Option {
	return func(o *options) {
		o.seeds = g
	}
}

// WithCanonicalizer replaces the isomorphism oracle. Default canon.Refiner.
func WithCanonicalizer(c canon.Canonicalizer) Option {
	return func(o *options) {
		o.canon = c
	}
}

// WithWorkers runs a star of n workers under the root. Default 1.
// Ignored when WithTopology is set.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithTopology runs the search over an explicit node tree.
func WithTopology(t cluster.Topology) Option {
	return func(o *options) {
		o.topology = &t
	}
}

// WithCompression sets the frame compression and the payload size from which
// it applies. A threshold <= 0 keeps the default.
func WithCompression(c wire.Compression, threshold int) Option {
	return func(o *options) {
		o.codec.Compression = c
		if threshold > 0 {
			o.codec.Threshold = threshold
		}
	}
}

// WithResourceLimits bounds the retained graphs per level, the number of
// concurrent extensions and the frame bandwidth. MaxWorkers defaults to the
// number of CPUs.
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.limits = cfg
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetrics sets the metrics collector. If nil is passed, metrics are disabled.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

func (o *options) buildTopology() (cluster.Topology, error) {
	if o.topology != nil {
		return *o.topology, nil
	}
	if o.workers < 1 {
		return cluster.Topology{}, fmt.Errorf("%d workers: %w", o.workers, ErrInvalidOptions)
	}
	return cluster.Star(o.workers)
}

func (o *options) clusterConfig() cluster.Config {
	seeds := o.seeds
	if seeds == nil {
		seeds = seed.Exhaustive{Canonicalizer: o.canon}
	}
	limits := o.limits
	if limits.MaxWorkers <= 0 {
		limits.MaxWorkers = int64(runtime.NumCPU())
	}
	return cluster.Config{
		MaxDegree:     o.maxDegree,
		Capacity:      o.capacity,
		StartN:        o.startN,
		FinalN:        o.finalN,
		Seeds:         seeds,
		Canonicalizer: o.canon,
		Codec:         o.codec,
		Limits:        resource.NewController(limits),
		Logger:        o.logger.Logger,
		Metrics:       o.metrics,
	}
}
