package markers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/cluster-tracker/internal/geom"
	"github.com/banshee-data/cluster-tracker/internal/tracking"
)

func TestColorFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		i    int
		want Color
	}{
		{0, Color{0, 0, 0, 1}},
		{1, Color{1, 1, 1, 1}},
		{2, Color{0, 1, 1, 1}},
		{3, Color{1, 0, 1, 1}},
		{4, Color{0, 1, 0, 1}},
		{6, Color{0, 0, 1, 1}},
		{12, Color{0, 0, 0, 1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColorFor(tt.i), "index %d", tt.i)
	}
}

func frame() (tracking.FrameResult, []r3.Vec) {
	obs := []r3.Vec{{X: 1, Y: 1, Z: 0.5}, {X: 5, Y: 5}}
	return tracking.FrameResult{
		Frame: 7,
		Tracks: []tracking.TrackReport{
			{ID: 3, Match: tracking.Matched(1), Predicted: r3.Vec{X: 4.8, Y: 5.1}},
			{ID: 4, Match: tracking.Unmatched(), Predicted: r3.Vec{X: 9, Y: 9}},
		},
	}, obs
}

func TestBuild_SameFrame(t *testing.T) {
	result, obs := frame()

	got := Build(result, obs, Options{ScanFrame: "laser", TargetFrame: "laser"})
	require.Len(t, got, 2)
	assert.Equal(t, Marker{ID: 3, Position: r3.Vec{X: 5, Y: 5}, Scale: DefaultScale, Color: ColorFor(0)}, got[0])
	assert.Equal(t, Marker{ID: 4, Position: r3.Vec{X: 9, Y: 9}, Scale: DefaultScale, Color: ColorFor(1)}, got[1])
}

type countingTransformer struct{ calls int }

func (c *countingTransformer) Transform(p r3.Vec, from, to string) (r3.Vec, error) {
	c.calls++
	return p, nil
}

func TestBuild_SkipsTransformWhenFramesMatch(t *testing.T) {
	result, obs := frame()
	tf := &countingTransformer{}

	Build(result, obs, Options{Transformer: tf, ScanFrame: "laser", TargetFrame: "laser"})
	assert.Zero(t, tf.calls)
}

func TestBuild_Transforms(t *testing.T) {
	result, obs := frame()
	reg := geom.NewStaticTransforms()
	require.NoError(t, reg.Set("laser", "map", geom.Rigid{Translation: r3.Vec{X: 10}}))

	got := Build(result, obs, Options{Transformer: reg, ScanFrame: "laser", TargetFrame: "map", Scale: 0.5})
	require.Len(t, got, 2)
	assert.Equal(t, r3.Vec{X: 15, Y: 5}, got[0].Position)
	assert.Equal(t, r3.Vec{X: 19, Y: 9}, got[1].Position)
	assert.Equal(t, 0.5, got[0].Scale)
}

type failingTransformer struct{ failID r3.Vec }

func (f failingTransformer) Transform(p r3.Vec, from, to string) (r3.Vec, error) {
	if p == f.failAt {
		return r3.Vec{}, errors.New("lookup timed out")
	}
	return p, nil
}

func TestBuild_TransformFailureSkipsOnlyThatTrack(t *testing.T) {
	result, obs := frame()

	got := Build(result, obs, Options{
		Transformer: failingTransformer{failAt: r3.Vec{X: 5, Y: 5}},
		ScanFrame:   "laser",
		TargetFrame: "map",
	})
	require.Len(t, got, 1)
	assert.Equal(t, int64(4), got[0].ID)
	assert.Equal(t, ColorFor(1), got[0].Color, "colour follows the track's position in the frame")
}

func TestBuild_Bootstrap(t *testing.T) {
	tr := tracking.NewTracker(tracking.DefaultTrackerConfig())
	obs := []r3.Vec{{X: 1, Y: 2}, {X: 3, Y: 4}}
	result := tr.Process(obs)

	got := Build(result, obs, Options{})
	require.Len(t, got, 2)
	assert.Equal(t, obs[0], got[0].Position)
	assert.Equal(t, obs[1], got[1].Position)
}
