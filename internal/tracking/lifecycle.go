package tracking

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/cluster-tracker/internal/monitoring"
)

var logf = monitoring.Scoped("tracking")

// Plan is the outcome of reconciling the bank with one cycle's assignment.
type Plan struct {
	// Matches is aligned to the bank after growth and pruning.
	Matches []Match
	// Corrections lists every surviving pre-existing track that was matched.
	// Tracks born this cycle are not corrected: their seed is their state.
	Corrections []Correction
	Created     []*Track
	Pruned      []*Track
}

// Lifecycle decides which tracks are born and which are pruned.
type Lifecycle struct {
	interval int
	mode     PruneMode

	// globalMisses is the process-wide counter used by PruneGlobal.
	globalMisses int
}

// NewLifecycle creates a lifecycle manager from cfg's prune settings.
func NewLifecycle(cfg TrackerConfig) *Lifecycle {
	mode := cfg.PruneMode
	if !mode.Valid() {
		mode = PrunePerTrack
	}
	return &Lifecycle{interval: cfg.PruneInterval, mode: mode}
}

// Reconcile updates hit/miss counters, prunes stale tracks and seeds a new
// track for every unmatched observation. a must have been computed against
// bank's current order.
func (l *Lifecycle) Reconcile(bank *Bank, a Assignment, observations []r3.Vec) Plan {
	tracks := bank.Tracks()
	unmatchedTracks := 0
	for i, track := range tracks {
		if a.Matches[i].ok {
			track.Hits++
			track.Misses = 0
		} else {
			track.Misses++
			track.Hits = 0
			unmatchedTracks++
		}
	}

	doomed := l.selectPrunable(tracks, a, unmatchedTracks)

	plan := Plan{Matches: make([]Match, 0, len(tracks)-len(doomed)+len(observations))}
	for i, track := range tracks {
		if doomed[i] {
			continue
		}
		m := a.Matches[i]
		plan.Matches = append(plan.Matches, m)
		if j, ok := m.Observation(); ok {
			plan.Corrections = append(plan.Corrections, Correction{track: track, measured: observations[j]})
		}
	}

	if len(doomed) > 0 {
		indices := make([]int, 0, len(doomed))
		for i := range tracks {
			if doomed[i] {
				indices = append(indices, i)
			}
		}
		plan.Pruned = bank.DeleteAt(indices...)
		logf("pruned %d stale tracks (%s)", len(plan.Pruned), l.mode)
	}

	if unmatched := a.UnmatchedObservations(); len(unmatched) > 0 {
		seeds := make([]r3.Vec, len(unmatched))
		for k, j := range unmatched {
			seeds[k] = observations[j]
			plan.Matches = append(plan.Matches, Matched(j))
		}
		plan.Created = bank.Create(seeds...)
	}

	return plan
}

// selectPrunable returns the bank positions to delete this cycle.
func (l *Lifecycle) selectPrunable(tracks []*Track, a Assignment, unmatchedTracks int) map[int]bool {
	doomed := make(map[int]bool)
	switch l.mode {
	case PruneGlobal:
		if unmatchedTracks == 0 {
			return doomed
		}
		l.globalMisses++
		if l.globalMisses <= l.interval {
			return doomed
		}
		for i := range tracks {
			if !a.Matches[i].ok {
				doomed[i] = true
			}
		}
		l.globalMisses = 0
	default:
		for i, track := range tracks {
			if track.Misses > l.interval {
				doomed[i] = true
			}
		}
	}
	return doomed
}

// Reset clears the global prune counter.
func (l *Lifecycle) Reset() {
	l.globalMisses = 0
}
