package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_BucketCapacity(t *testing.T) {
	tests := []struct {
		name     string
		limit    int64
		buckets  int
		record   int64
		capacity int
		want     int
	}{
		{"unlimited", 0, 10, 100, 500, 500},
		{"budget tighter", 10_000, 10, 100, 500, 10},
		{"budget looser", 1 << 30, 10, 100, 500, 500},
		{"at least one", 50, 10, 100, 500, 1},
		{"no buckets", 10_000, 0, 100, 500, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(Config{MemoryLimitBytes: tt.limit})
			assert.Equal(t, tt.want, c.BucketCapacity(tt.buckets, tt.record, tt.capacity))
		})
	}

	var nilController *Controller
	assert.Equal(t, 7, nilController.BucketCapacity(3, 100, 7))
}

func TestController_Workers(t *testing.T) {
	c := NewController(Config{MaxWorkers: 2})

	require.NoError(t, c.AcquireWorker(context.Background()))
	require.NoError(t, c.AcquireWorker(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireWorker(ctx), context.DeadlineExceeded)

	c.ReleaseWorker()
	require.NoError(t, c.AcquireWorker(context.Background()))
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1024})

	// Larger than the burst is split instead of failing.
	require.NoError(t, c.AcquireIO(context.Background(), 1024))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireIO(ctx, 4096))

	var unlimited *Controller
	require.NoError(t, unlimited.AcquireIO(context.Background(), 1<<20))
}

func TestRateLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewRateLimitedWriter(context.Background(), &buf, NewController(Config{}))
	n, err := w.Write([]byte("frame"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "frame", buf.String())
}
