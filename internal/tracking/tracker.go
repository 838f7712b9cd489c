package tracking

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// Phase is the tracker's cycle state.
type Phase int

const (
	// PhaseBootstrap: no frame has been processed; the first frame seeds
	// tracks directly.
	PhaseBootstrap Phase = iota
	// PhaseSteady: every frame runs predict, assign, reconcile, correct.
	PhaseSteady
)

func (p Phase) String() string {
	switch p {
	case PhaseBootstrap:
		return "bootstrap"
	case PhaseSteady:
		return "steady"
	}
	return "unknown"
}

// TrackReport is the externally visible state of one track after a cycle.
type TrackReport struct {
	ID        int64
	Match     Match  // Index into the caller's observation slice
	Predicted r3.Vec // Position before this cycle's correction
	Position  r3.Vec // Position after this cycle's correction
	Velocity  r3.Vec
	Hits      int
	Misses    int
	Born      bool // Created this cycle
}

// FrameResult is the per-frame output of Tracker.Process.
type FrameResult struct {
	Frame     uint64
	Bootstrap bool
	// Tracks is aligned to the bank order after the cycle.
	Tracks []TrackReport
	// Skipped counts observations dropped for non-finite coordinates.
	Skipped int
	Created []int64
	Pruned  []int64
}

// Assignment returns, per track, the matched observation index or
// unmatched. It is empty for the bootstrap frame, where no association ran.
func (r FrameResult) Assignment() []Match {
	if r.Bootstrap {
		return nil
	}
	out := make([]Match, len(r.Tracks))
	for i, t := range r.Tracks {
		out[i] = t.Match
	}
	return out
}

// IDs returns the track IDs in output order.
func (r FrameResult) IDs() []int64 {
	out := make([]int64, len(r.Tracks))
	for i, t := range r.Tracks {
		out[i] = t.ID
	}
	return out
}

// Tracker runs one tracking cycle per frame over a Bank.
// Process holds a single exclusive lock for the whole cycle, so concurrent
// callers are serialised and never observe a half-updated bank.
type Tracker struct {
	Config TrackerConfig

	bank      *Bank
	lifecycle *Lifecycle
	phase     Phase
	frame     uint64

	mu sync.Mutex
}

// NewTracker creates a new tracker with the specified configuration.
func NewTracker(config TrackerConfig) *Tracker {
	return &Tracker{
		Config:    config,
		bank:      NewBank(config),
		lifecycle: NewLifecycle(config),
	}
}

// Process runs one cycle over the frame's observations.
// Observations with non-finite coordinates are skipped; match indices in
// the result always refer to positions in observations.
func (t *Tracker) Process(observations []r3.Vec) FrameResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frame++
	valid, origin := finiteObservations(observations)
	result := FrameResult{
		Frame:   t.frame,
		Skipped: len(observations) - len(valid),
	}
	if result.Skipped > 0 {
		logf("frame %d: skipped %d malformed observations", t.frame, result.Skipped)
	}

	if t.phase == PhaseBootstrap {
		t.phase = PhaseSteady
		result.Bootstrap = true
		matches := make([]Match, len(valid))
		for i := range valid {
			matches[i] = Matched(i)
		}
		created := t.bank.Create(valid...)
		t.fillReports(&result, matches, origin, created)
		return result
	}

	predictions := t.bank.PredictAll()
	assignment := GreedyAssign(predictions, valid)
	plan := t.lifecycle.Reconcile(t.bank, assignment, valid)

	for _, c := range plan.Corrections {
		if err := t.bank.Correct(c); err != nil {
			logf("frame %d: track %d kept its prediction: %v", t.frame, c.Track().ID, err)
		}
	}

	for _, track := range plan.Pruned {
		result.Pruned = append(result.Pruned, track.ID)
	}
	t.fillReports(&result, plan.Matches, origin, plan.Created)
	return result
}

func (t *Tracker) fillReports(result *FrameResult, matches []Match, origin []int, created []*Track) {
	born := make(map[int64]bool, len(created))
	for _, track := range created {
		born[track.ID] = true
		result.Created = append(result.Created, track.ID)
	}
	result.Tracks = make([]TrackReport, t.bank.Len())
	for i, track := range t.bank.tracks {
		m := matches[i]
		if j, ok := m.Observation(); ok {
			m = Matched(origin[j])
		}
		result.Tracks[i] = report(track, m, born[track.ID])
	}
}

func report(track *Track, m Match, born bool) TrackReport {
	return TrackReport{
		ID:        track.ID,
		Match:     m,
		Predicted: track.Predicted,
		Position:  track.Position(),
		Velocity:  track.Velocity(),
		Hits:      track.Hits,
		Misses:    track.Misses,
		Born:      born,
	}
}

// finiteObservations drops observations with NaN or infinite coordinates
// and returns the survivors with their original indices.
func finiteObservations(observations []r3.Vec) (valid []r3.Vec, origin []int) {
	valid = make([]r3.Vec, 0, len(observations))
	origin = make([]int, 0, len(observations))
	for i, o := range observations {
		if !finite(o.X) || !finite(o.Y) || !finite(o.Z) {
			continue
		}
		valid = append(valid, o)
		origin = append(origin, i)
	}
	return valid, origin
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Phase returns the tracker's current phase.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Len returns the number of active tracks.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bank.Len()
}

// Snapshot returns the current state of every track in bank order.
// Match fields are unmatched: associations belong to a FrameResult.
func (t *Tracker) Snapshot() []TrackReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrackReport, t.bank.Len())
	for i, track := range t.bank.tracks {
		out[i] = report(track, Unmatched(), false)
	}
	return out
}

// Reset clears all tracks and returns the tracker to bootstrap.
// Track IDs are not reused after a reset.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bank.Reset()
	t.lifecycle.Reset()
	t.phase = PhaseBootstrap
}
