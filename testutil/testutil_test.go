package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectedGraph(t *testing.T) {
	rng := NewRNG(4711)

	for range 50 {
		n := 2 + rng.Intn(9)
		g := rng.ConnectedGraph(n, 3)

		require.NoError(t, g.Validate(3))
		assert.Equal(t, n, g.N)
		assert.GreaterOrEqual(t, g.M, n-1)
	}
}

func TestShapes(t *testing.T) {
	p := Path(4)
	assert.Equal(t, 3, p.M)
	assert.Equal(t, 3, p.Diameter)
	assert.Equal(t, 10, p.SumOfDistances)

	c := Cycle(4)
	assert.Equal(t, 4, c.M)
	assert.Equal(t, 2, c.Diameter)
	assert.Equal(t, 8, c.SumOfDistances)

	s := Star(5)
	assert.Equal(t, 4, s.MaxK)
	assert.Equal(t, 2, s.Diameter)
}

func TestRelabel(t *testing.T) {
	p := Path(4)
	q := Relabel(p, []int{3, 1, 0, 2})

	assert.Equal(t, p.M, q.M)
	assert.Equal(t, p.SumOfDistances, q.SumOfDistances)
	assert.True(t, q.HasEdge(3, 1))
	assert.True(t, q.HasEdge(1, 0))
	assert.True(t, q.HasEdge(0, 2))
}
