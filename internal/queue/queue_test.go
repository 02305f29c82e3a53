package queue

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	sum  int
	diam int
}

func worseEntry(a, b entry) bool {
	if a.sum != b.sum {
		return a.sum > b.sum
	}
	return a.diam > b.diam
}

func TestBoundedKeepsBest(t *testing.T) {
	q := NewBounded(worseEntry, 3)

	for _, e := range []entry{{10, 5}, {8, 4}, {12, 6}} {
		ok, _, evicted := q.Admit(e, 3)
		require.True(t, ok)
		require.False(t, evicted)
	}

	ok, ev, evicted := q.Admit(entry{7, 3}, 3)
	require.True(t, ok)
	require.True(t, evicted)
	assert.Equal(t, entry{12, 6}, ev)

	got := slices.Clone(q.Items())
	slices.SortFunc(got, func(a, b entry) int { return a.sum - b.sum })
	assert.Equal(t, []entry{{7, 3}, {8, 4}, {10, 5}}, got)
}

func TestBoundedRejectsWorseWhenFull(t *testing.T) {
	q := NewBounded(worseEntry, 2)
	q.Admit(entry{5, 2}, 2)
	q.Admit(entry{6, 2}, 2)

	assert.False(t, q.WouldAdmit(entry{7, 2}, 2))
	ok, _, evicted := q.Admit(entry{7, 2}, 2)
	assert.False(t, ok)
	assert.False(t, evicted)
	assert.Equal(t, 2, q.Len())

	worst, _ := q.PeekWorst()
	assert.Equal(t, entry{6, 2}, worst)
}

func TestBoundedTieIsAdmitted(t *testing.T) {
	q := NewBounded(worseEntry, 1)
	q.Admit(entry{5, 2}, 1)

	ok, ev, evicted := q.Admit(entry{5, 2}, 1)
	assert.True(t, ok)
	assert.True(t, evicted)
	assert.Equal(t, entry{5, 2}, ev)
	assert.Equal(t, 1, q.Len())
}

func TestBoundedZeroCapacity(t *testing.T) {
	q := NewBounded(worseEntry, 0)
	assert.False(t, q.WouldAdmit(entry{1, 1}, 0))
	ok, _, _ := q.Admit(entry{1, 1}, 0)
	assert.False(t, ok)
	assert.Zero(t, q.Len())

	_, ok = q.PopWorst()
	assert.False(t, ok)
	_, ok = q.PeekWorst()
	assert.False(t, ok)
}

func TestBoundedPopOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	q := NewBounded(func(a, b int) bool { return a > b }, 0)
	want := make([]int, 200)
	for i := range want {
		want[i] = rng.Intn(1000)
		q.Push(want[i])
	}
	slices.Sort(want)
	slices.Reverse(want)

	got := make([]int, 0, len(want))
	for q.Len() > 0 {
		v, ok := q.PopWorst()
		require.True(t, ok)
		got = append(got, v)
	}
	assert.Equal(t, want, got)
}

func TestBoundedTrim(t *testing.T) {
	q := NewBounded(func(a, b int) bool { return a > b }, 8)
	for _, v := range []int{4, 9, 1, 7, 3} {
		q.Push(v)
	}

	evicted := q.Trim(2)
	assert.ElementsMatch(t, []int{9, 7, 4}, evicted)
	assert.ElementsMatch(t, []int{1, 3}, q.Items())

	assert.Empty(t, q.Trim(5))
	q.Reset()
	assert.Zero(t, q.Len())
}
