package level_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphbeam/canon"
	"github.com/hupe1980/graphbeam/level"
	"github.com/hupe1980/graphbeam/testutil"
)

func TestNewValidation(t *testing.T) {
	_, err := level.New(0, 3, 10, nil)
	require.ErrorIs(t, err, level.ErrInvalidLevel)
	_, err = level.New(4, 1, 10, nil)
	require.ErrorIs(t, err, level.ErrInvalidLevel)

	l, err := level.New(4, 3, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, l.MinEdges())
	assert.Equal(t, 4, l.NumBuckets())
	assert.Equal(t, []int{10, 10, 10, 10}, l.Capacities())
}

func TestNumBuckets(t *testing.T) {
	tests := []struct {
		n, d, want int
	}{
		{1, 2, 1},
		{2, 2, 1},
		{3, 2, 2},
		{4, 2, 2},
		{4, 3, 4},
		{6, 3, 5},
		{10, 4, 12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, level.NumBuckets(tt.n, tt.d), "n=%d d=%d", tt.n, tt.d)
	}
}

func TestAddRejectsIsomorphicDuplicate(t *testing.T) {
	l, err := level.New(4, 3, 10, nil)
	require.NoError(t, err)

	assert.True(t, l.Add(testutil.Path(4)))
	assert.False(t, l.Add(testutil.Relabel(testutil.Path(4), []int{2, 0, 3, 1})))
	assert.True(t, l.Add(testutil.Star(4)))

	st := l.Stats()
	assert.EqualValues(t, 3, st.Offered)
	assert.EqualValues(t, 1, st.Duplicates)
	assert.EqualValues(t, 2, st.Admitted)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 2, l.BucketLen(0))
}

func TestCapacityRejectSkipsCanonicalization(t *testing.T) {
	oracle := &canon.Counting{}
	l, err := level.New(4, 3, 1, oracle)
	require.NoError(t, err)

	require.True(t, l.Add(testutil.Star(4)))
	require.EqualValues(t, 1, oracle.Calls())

	for i := 0; i < 5; i++ {
		assert.False(t, l.Add(testutil.Path(4)))
	}
	assert.EqualValues(t, 1, oracle.Calls())

	// An equally good duplicate passes the capacity check and is canonicalized.
	assert.False(t, l.Add(testutil.Relabel(testutil.Star(4), []int{3, 2, 1, 0})))
	assert.EqualValues(t, 2, oracle.Calls())

	st := l.Stats()
	assert.EqualValues(t, 5, st.Rejected)
	assert.Equal(t, st.Canonicalized, oracle.Calls())
	assert.Equal(t, st.Offered-st.Rejected, oracle.Calls())
}

func TestEvictionReleasesCanonicalForm(t *testing.T) {
	l, err := level.New(4, 3, 1, nil)
	require.NoError(t, err)

	require.True(t, l.Add(testutil.Path(4)))
	require.True(t, l.Add(testutil.Star(4)))
	assert.EqualValues(t, 1, l.Stats().Evicted)

	best, ok := l.Best(0)
	require.True(t, ok)
	assert.Equal(t, 9, best.SumOfDistances)

	evicted, err := l.SetCapacities([]int{0, 1, 1, 1})
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.Zero(t, l.Len())

	_, err = l.SetCapacities([]int{2, 2, 2, 2})
	require.NoError(t, err)
	assert.True(t, l.Add(testutil.Star(4)))
	assert.True(t, l.Add(testutil.Path(4)))

	_, err = l.SetCapacities([]int{1})
	require.ErrorIs(t, err, level.ErrCapacityCount)
}

func TestAddUnchecked(t *testing.T) {
	l, err := level.New(4, 3, 2, nil)
	require.NoError(t, err)

	assert.True(t, l.AddUnchecked(testutil.Path(4)))
	assert.True(t, l.AddUnchecked(testutil.Path(4)))
	assert.Equal(t, 2, l.BucketLen(0))
	assert.Nil(t, l.Sorted(0)[0].Canonical())

	// Displacing records without a canonical form leaves dedup untouched.
	assert.True(t, l.Add(testutil.Star(4)))
	assert.Equal(t, 2, l.BucketLen(0))
	assert.False(t, l.Add(testutil.Star(4)))
}

func TestNextRoundRobin(t *testing.T) {
	l, err := level.New(4, 3, 10, nil)
	require.NoError(t, err)

	require.True(t, l.Add(testutil.Path(4)))
	require.True(t, l.Add(testutil.Star(4)))
	require.True(t, l.Add(testutil.Cycle(4)))
	require.True(t, l.Add(testutil.MustGraph(4, [][2]int{{0, 1}, {1, 2}, {2, 0}, {2, 3}, {0, 3}})))

	var ms []int
	for {
		g, ok := l.Next()
		if !ok {
			break
		}
		ms = append(ms, g.M)
	}
	assert.Equal(t, []int{3, 4, 5, 3}, ms)
	assert.Zero(t, l.Len())
}

func TestTakeBucketAndSorted(t *testing.T) {
	l, err := level.New(4, 3, 10, nil)
	require.NoError(t, err)
	require.True(t, l.Add(testutil.Path(4)))
	require.True(t, l.Add(testutil.Star(4)))

	sorted := l.Sorted(0)
	require.Len(t, sorted, 2)
	assert.Equal(t, 9, sorted[0].SumOfDistances)
	assert.Equal(t, 10, sorted[1].SumOfDistances)

	taken := l.TakeBucket(0)
	require.Len(t, taken, 2)
	assert.Equal(t, 9, taken[0].SumOfDistances)
	assert.Zero(t, l.Len())
	assert.Empty(t, l.TakeBucket(1))

	// Taking a bucket clears its dedup entries.
	assert.True(t, l.Add(testutil.Path(4)))
}

func TestReset(t *testing.T) {
	l, err := level.New(4, 3, 10, nil)
	require.NoError(t, err)
	require.True(t, l.Add(testutil.Path(4)))

	require.NoError(t, l.Reset(5, 3))
	assert.Equal(t, 5, l.N())
	assert.Zero(t, l.Len())
	assert.Equal(t, level.NumBuckets(5, 3), l.NumBuckets())
	assert.Equal(t, 3, l.Capacities()[0])
}

func TestAddPanicsOnWrongVertexCount(t *testing.T) {
	l, err := level.New(4, 3, 10, nil)
	require.NoError(t, err)
	assert.Panics(t, func() { l.Add(testutil.Path(5)) })
}
