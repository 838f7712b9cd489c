package testutil

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestScene(t *testing.T) {
	frames := Scene(3,
		Target{Start: r3.Vec{X: 1}, Velocity: r3.Vec{X: 1}},
		Target{Start: r3.Vec{Y: 5, Z: 2}, Velocity: r3.Vec{Y: -0.5}},
	)
	require.Len(t, frames, 3)
	assert.Equal(t, []r3.Vec{{X: 3}, {Y: 4, Z: 2}}, frames[2])
}

func TestRandomPoints(t *testing.T) {
	a := RandomPoints(rand.New(rand.NewSource(1)), 50, 10)
	b := RandomPoints(rand.New(rand.NewSource(1)), 50, 10)
	assert.Equal(t, a, b, "same seed, same points")
	for _, p := range a {
		assert.True(t, p.X >= 0 && p.X < 10 && p.Y >= 0 && p.Y < 10)
	}
}
