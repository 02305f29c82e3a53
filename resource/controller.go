package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes bounds the graphs retained by one accumulator level.
	// If 0, capacities are never tightened.
	MemoryLimitBytes int64

	// MaxWorkers is the number of workers allowed to extend graphs at the
	// same time. If 0, defaults to 1.
	MaxWorkers int64

	// IOLimitBytesPerSec caps the bytes sent over network links.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller hands out extension slots, link bandwidth and level capacities.
type Controller struct {
	cfg Config

	workers   *semaphore.Weighted
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}

	c := &Controller{
		cfg:     cfg,
		workers: semaphore.NewWeighted(cfg.MaxWorkers),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// MemoryLimit returns the configured level budget in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// BucketCapacity returns how many graphs of recordBytes each of numBuckets
// buckets may retain so a full level stays within the memory budget, capped
// at capacity. Every bucket keeps room for at least one graph.
func (c *Controller) BucketCapacity(numBuckets int, recordBytes int64, capacity int) int {
	limit := c.MemoryLimit()
	if limit <= 0 || numBuckets <= 0 || recordBytes <= 0 {
		return capacity
	}
	per := limit / (int64(numBuckets) * recordBytes)
	if per < 1 {
		per = 1
	}
	if per < int64(capacity) {
		return int(per)
	}
	return capacity
}

// AcquireWorker reserves an extension slot, blocking while all are busy.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workers.Acquire(ctx, 1)
}

// ReleaseWorker returns an extension slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workers.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than one second of budget are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
