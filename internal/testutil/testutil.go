// Package testutil provides shared test fixtures: synthetic centroid scenes
// for exercising the tracker and the layers around it.
package testutil

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// Target is an object moving at constant velocity, in units per frame.
type Target struct {
	Start    r3.Vec
	Velocity r3.Vec
}

// At returns the target's position at frame i (frame 0 is Start).
func (t Target) At(i int) r3.Vec {
	return r3.Add(t.Start, r3.Scale(float64(i), t.Velocity))
}

// Scene returns frames of observations, one per target per frame, in
// target order.
func Scene(frames int, targets ...Target) [][]r3.Vec {
	out := make([][]r3.Vec, frames)
	for i := range out {
		obs := make([]r3.Vec, len(targets))
		for j, t := range targets {
			obs[j] = t.At(i)
		}
		out[i] = obs
	}
	return out
}

// RandomPoints returns n points uniformly spread over [0, extent) in x and
// y, with z in [0, 1).
func RandomPoints(rng *rand.Rand, n int, extent float64) []r3.Vec {
	pts := make([]r3.Vec, n)
	for i := range pts {
		pts[i] = r3.Vec{X: rng.Float64() * extent, Y: rng.Float64() * extent, Z: rng.Float64()}
	}
	return pts
}
