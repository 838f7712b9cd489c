package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// cycle runs predict, assign and reconcile once, the way Tracker does.
func cycle(bank *Bank, l *Lifecycle, observations []r3.Vec) Plan {
	a := GreedyAssign(bank.PredictAll(), observations)
	return l.Reconcile(bank, a, observations)
}

func TestLifecycle_GrowthSeedsUnmatchedInOrder(t *testing.T) {
	t.Parallel()
	cfg := DefaultTrackerConfig()
	bank := NewBank(cfg)
	l := NewLifecycle(cfg)
	bank.Create(r3.Vec{X: 10})

	observations := []r3.Vec{{X: 50}, {X: 10.1}, {X: -30, Z: 2}}
	plan := cycle(bank, l, observations)

	require.Len(t, plan.Created, 2)
	assert.Equal(t, r3.Vec{X: 50}, plan.Created[0].Position())
	assert.Equal(t, r3.Vec{X: -30, Z: 2}, plan.Created[1].Position())
	assert.Equal(t, 3, bank.Len())
	assert.Len(t, plan.Matches, bank.Len())
	assert.Equal(t, []Match{Matched(1), Matched(0), Matched(2)}, plan.Matches)

	require.Len(t, plan.Corrections, 1, "only the pre-existing track is corrected")
	assert.Equal(t, int64(1), plan.Corrections[0].Track().ID)
	assert.Equal(t, r3.Vec{X: 10.1}, plan.Corrections[0].Measured())
}

func TestLifecycle_PerTrackHysteresis(t *testing.T) {
	t.Parallel()
	cfg := DefaultTrackerConfig()
	bank := NewBank(cfg)
	l := NewLifecycle(cfg)
	bank.Create(r3.Vec{X: 0}, r3.Vec{X: 100})
	keep := []r3.Vec{{X: 0}}

	for i := 1; i <= cfg.PruneInterval; i++ {
		plan := cycle(bank, l, keep)
		assert.Empty(t, plan.Pruned, "cycle %d", i)
		assert.Equal(t, 2, bank.Len(), "cycle %d", i)
		assert.Equal(t, i, bank.At(1).Misses)
		assert.Len(t, plan.Matches, bank.Len())
	}

	plan := cycle(bank, l, keep)
	require.Len(t, plan.Pruned, 1)
	assert.Equal(t, int64(2), plan.Pruned[0].ID)
	assert.Equal(t, 1, bank.Len())
	assert.Equal(t, int64(1), bank.At(0).ID)
	assert.Equal(t, []Match{Matched(0)}, plan.Matches)
}

func TestLifecycle_PerTrackMatchResetsMisses(t *testing.T) {
	t.Parallel()
	cfg := DefaultTrackerConfig()
	cfg.PruneInterval = 3
	bank := NewBank(cfg)
	l := NewLifecycle(cfg)
	bank.Create(r3.Vec{X: 0})

	for i := 0; i < 3; i++ {
		cycle(bank, l, nil)
	}
	assert.Equal(t, 3, bank.At(0).Misses)

	cycle(bank, l, []r3.Vec{{X: 0}})
	assert.Equal(t, 0, bank.At(0).Misses)
	assert.Equal(t, 1, bank.At(0).Hits)

	for i := 0; i < 3; i++ {
		plan := cycle(bank, l, nil)
		assert.Empty(t, plan.Pruned)
	}
	plan := cycle(bank, l, nil)
	assert.Len(t, plan.Pruned, 1)
	assert.Zero(t, bank.Len())
}

func TestLifecycle_GlobalCounter(t *testing.T) {
	t.Parallel()
	cfg := DefaultTrackerConfig()
	cfg.PruneMode = PruneGlobal
	cfg.PruneInterval = 3
	bank := NewBank(cfg)
	l := NewLifecycle(cfg)
	bank.Create(r3.Vec{X: 0}, r3.Vec{X: 100})

	// Track 2 is unmatched for three cycles: counter reaches the interval.
	for i := 0; i < 3; i++ {
		plan := cycle(bank, l, []r3.Vec{{X: 0}})
		assert.Empty(t, plan.Pruned)
	}

	// Every track matches, so the counter holds, and a fresh track (ID 3)
	// is born at x=50.
	plan := cycle(bank, l, []r3.Vec{{X: 0}, {X: 100}, {X: 50}})
	assert.Empty(t, plan.Pruned)
	require.Len(t, plan.Created, 1)
	assert.Equal(t, 3, l.globalMisses)

	// The counter trips on the next unmatched cycle and every track
	// unmatched right now goes, including ones that missed a single frame.
	plan = cycle(bank, l, []r3.Vec{{X: 0}})
	require.Len(t, plan.Pruned, 2)
	assert.Equal(t, int64(2), plan.Pruned[0].ID)
	assert.Equal(t, int64(3), plan.Pruned[1].ID)
	assert.Equal(t, 0, l.globalMisses)
	assert.Equal(t, 1, bank.Len())
	assert.Equal(t, []Match{Matched(0)}, plan.Matches)
}

func TestLifecycle_GlobalCounterIdleWhenAllMatched(t *testing.T) {
	t.Parallel()
	cfg := DefaultTrackerConfig()
	cfg.PruneMode = PruneGlobal
	bank := NewBank(cfg)
	l := NewLifecycle(cfg)
	bank.Create(r3.Vec{X: 0})

	for i := 0; i < 50; i++ {
		cycle(bank, l, []r3.Vec{{X: 0}})
	}
	assert.Zero(t, l.globalMisses)
	assert.Equal(t, 1, bank.Len())
}

func TestNewLifecycle_InvalidModeFallsBack(t *testing.T) {
	t.Parallel()
	cfg := DefaultTrackerConfig()
	cfg.PruneMode = "sometimes"
	assert.Equal(t, PrunePerTrack, NewLifecycle(cfg).mode)
}
