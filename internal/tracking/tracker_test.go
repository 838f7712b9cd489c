package tracking

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/cluster-tracker/internal/testutil"
)

func TestTracker_Bootstrap(t *testing.T) {
	t.Parallel()
	tracker := NewTracker(DefaultTrackerConfig())
	assert.Equal(t, PhaseBootstrap, tracker.Phase())

	result := tracker.Process([]r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 5, Y: 5, Z: 0}})

	assert.True(t, result.Bootstrap)
	assert.Empty(t, result.Assignment())
	assert.Equal(t, PhaseSteady, tracker.Phase())
	require.Len(t, result.Tracks, 2)
	assert.Equal(t, []int64{1, 2}, result.IDs())
	assert.Equal(t, []int64{1, 2}, result.Created)

	for i, want := range []r3.Vec{{X: 0, Y: 0}, {X: 5, Y: 5}} {
		report := result.Tracks[i]
		assert.Equal(t, want, report.Position)
		assert.Equal(t, r3.Vec{}, report.Velocity)
		assert.True(t, report.Born)
	}

	// No correction ran: covariance is still the initial one.
	snap := tracker.bank.At(0).Covariance()
	assert.Equal(t, DefaultInitialPositionVariance, snap.At(0, 0))
}

func TestTracker_BootstrapWithNoObservations(t *testing.T) {
	t.Parallel()
	tracker := NewTracker(DefaultTrackerConfig())

	result := tracker.Process(nil)
	assert.True(t, result.Bootstrap)
	assert.Empty(t, result.Tracks)
	assert.Equal(t, PhaseSteady, tracker.Phase(), "bootstrap ends after the first frame regardless")

	result = tracker.Process([]r3.Vec{{X: 1}})
	assert.False(t, result.Bootstrap)
	assert.Equal(t, []Match{Matched(0)}, result.Assignment())
	assert.True(t, result.Tracks[0].Born)
}

func TestTracker_GreedyExample(t *testing.T) {
	t.Parallel()
	tracker := NewTracker(DefaultTrackerConfig())
	tracker.Process([]r3.Vec{{X: 0, Y: 0}, {X: 10, Y: 10}})

	result := tracker.Process([]r3.Vec{{X: 0.1, Y: 0.1}, {X: 9.9, Y: 9.9}, {X: 50, Y: 50}})

	assert.False(t, result.Bootstrap)
	assert.Equal(t, []Match{Matched(0), Matched(1), Matched(2)}, result.Assignment())
	assert.Equal(t, []int64{1, 2, 3}, result.IDs())
	assert.Equal(t, []int64{3}, result.Created)

	born := result.Tracks[2]
	assert.True(t, born.Born)
	assert.Equal(t, r3.Vec{X: 50, Y: 50}, born.Position)
	assert.Equal(t, r3.Vec{}, born.Velocity)

	// Matched tracks were pulled toward their observations.
	assert.Greater(t, result.Tracks[0].Position.X, 0.0)
	assert.Less(t, result.Tracks[1].Position.X, 10.0)
}

func TestTracker_PredictWithoutCorrect(t *testing.T) {
	t.Parallel()
	tracker := NewTracker(DefaultTrackerConfig())
	tracker.Process([]r3.Vec{{X: 0}})
	moving := tracker.Process([]r3.Vec{{X: 1}})
	require.Len(t, moving.Tracks, 1)
	before := moving.Tracks[0]
	require.Greater(t, before.Velocity.X, 0.0)

	result := tracker.Process(nil)
	require.Len(t, result.Tracks, 1)
	after := result.Tracks[0]

	assert.False(t, after.Match.IsMatched())
	assert.Equal(t, after.Predicted, after.Position, "no measurement pulled the track")
	assert.InDelta(t, before.Position.X+before.Velocity.X, after.Position.X, 1e-12)
	assert.Equal(t, before.Velocity, after.Velocity)
	assert.Equal(t, 1, after.Misses)
}

func TestTracker_SkipsNonFiniteObservations(t *testing.T) {
	t.Parallel()
	tracker := NewTracker(DefaultTrackerConfig())
	tracker.Process([]r3.Vec{{X: 0}, {X: 10}})

	result := tracker.Process([]r3.Vec{
		{X: math.NaN()},
		{X: 10.2},
		{X: math.Inf(1)},
		{X: 0.1},
	})

	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, []Match{Matched(3), Matched(1)}, result.Assignment(),
		"indices refer to the caller's slice, not the filtered one")
	assert.Empty(t, result.Created)
}

func TestTracker_IDsSurvivePruning(t *testing.T) {
	t.Parallel()
	cfg := DefaultTrackerConfig()
	cfg.PruneInterval = 2
	tracker := NewTracker(cfg)
	tracker.Process([]r3.Vec{{X: -100}, {X: 0}, {X: 100}})

	var result FrameResult
	for i := 0; i < 3; i++ {
		result = tracker.Process([]r3.Vec{{X: 0}, {X: 100}})
	}

	assert.Equal(t, []int64{1}, result.Pruned)
	assert.Equal(t, []int64{2, 3}, result.IDs(), "surviving tracks keep their IDs even though their bank positions shifted")
	assert.Equal(t, []Match{Matched(0), Matched(1)}, result.Assignment())
}

func TestTracker_FollowsMovingObject(t *testing.T) {
	t.Parallel()
	tracker := NewTracker(DefaultTrackerConfig())

	var result FrameResult
	for _, obs := range testutil.Scene(40,
		testutil.Target{Start: r3.Vec{Y: 2}, Velocity: r3.Vec{X: 1}},
		testutil.Target{Start: r3.Vec{X: 20}, Velocity: r3.Vec{Y: -0.5}},
	) {
		result = tracker.Process(obs)
	}

	require.Equal(t, []int64{1, 2}, result.IDs())
	assert.InDelta(t, 1.0, result.Tracks[0].Velocity.X, 0.1)
	assert.InDelta(t, 0.0, result.Tracks[0].Velocity.Y, 0.1)
	assert.InDelta(t, -0.5, result.Tracks[1].Velocity.Y, 0.1)
	assert.InDelta(t, 39.0, result.Tracks[0].Position.X, 0.2)
}

func TestTracker_Conservation(t *testing.T) {
	t.Parallel()
	cfg := DefaultTrackerConfig()
	cfg.PruneInterval = 3
	tracker := NewTracker(cfg)
	rng := rand.New(rand.NewSource(7))

	tracker.Process(randomPoints(rng, 4))
	for frame := 0; frame < 300; frame++ {
		before := tracker.Len()
		observations := randomPoints(rng, rng.Intn(8))

		result := tracker.Process(observations)

		after := len(result.Tracks)
		assert.Equal(t, before+len(result.Created)-len(result.Pruned), after, "frame %d", frame)
		assert.Equal(t, after, tracker.Len())

		matched := 0
		seen := make(map[int]bool)
		for _, report := range result.Tracks {
			if j, ok := report.Match.Observation(); ok {
				assert.False(t, seen[j], "frame %d: observation %d used twice", frame, j)
				seen[j] = true
				if !report.Born {
					matched++
				}
			}
			assert.LessOrEqual(t, report.Misses, cfg.PruneInterval)
		}
		assert.Equal(t, len(observations)-matched, len(result.Created), "frame %d", frame)
		assert.Len(t, seen, len(observations), "every observation is explained by a track")
	}
}

func TestTracker_ConcurrentProcess(t *testing.T) {
	t.Parallel()
	tracker := NewTracker(DefaultTrackerConfig())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				result := tracker.Process([]r3.Vec{{X: float64(g)}, {X: float64(i)}})
				if !result.Bootstrap {
					assert.Len(t, result.Assignment(), len(result.Tracks))
				}
				_ = tracker.Snapshot()
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, len(tracker.Snapshot()), tracker.Len())
}

func TestTracker_Reset(t *testing.T) {
	t.Parallel()
	tracker := NewTracker(DefaultTrackerConfig())
	tracker.Process([]r3.Vec{{X: 1}, {X: 2}})
	tracker.Process([]r3.Vec{{X: 1}, {X: 2}})

	tracker.Reset()
	assert.Equal(t, PhaseBootstrap, tracker.Phase())
	assert.Zero(t, tracker.Len())

	result := tracker.Process([]r3.Vec{{X: 3}})
	assert.True(t, result.Bootstrap)
	assert.Equal(t, []int64{3}, result.IDs())
	assert.Equal(t, uint64(3), result.Frame)
}

func TestPhase_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "bootstrap", PhaseBootstrap.String())
	assert.Equal(t, "steady", PhaseSteady.String())
	assert.Equal(t, "unknown", Phase(9).String())
}
