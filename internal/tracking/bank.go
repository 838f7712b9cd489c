package tracking

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmptyCorrection is returned by Bank.Correct for a Correction that was
// not produced from a matched assignment entry.
var ErrEmptyCorrection = errors.New("correction has no track")

// Track is a single tracked object: one Kalman estimator plus the
// bookkeeping the lifecycle needs.
type Track struct {
	// Identity, never reused within a tracker's lifetime.
	ID int64

	// Predicted is the output of the last prediction step (the seed
	// position for a track created this cycle).
	Predicted r3.Vec

	// Z is the height of the last observation folded into this track.
	// It is carried through, not estimated.
	Z float64

	// Lifecycle counters
	Hits   int // Consecutive matched cycles
	Misses int // Consecutive unmatched cycles
	Age    int // Prediction steps since birth

	filter kalman
}

// Position returns the current position estimate.
func (t *Track) Position() r3.Vec {
	return r3.Vec{X: t.filter.x.AtVec(0), Y: t.filter.x.AtVec(1), Z: t.Z}
}

// Velocity returns the current velocity estimate in units per tick.
func (t *Track) Velocity() r3.Vec {
	return r3.Vec{X: t.filter.x.AtVec(2), Y: t.filter.x.AtVec(3)}
}

// Covariance returns a copy of the 4x4 estimation-error covariance.
func (t *Track) Covariance() *mat.Dense {
	return mat.DenseCopyOf(t.filter.p)
}

// Correction pairs a track with the observation matched to it this cycle.
// Corrections are only produced by Lifecycle.Reconcile from matched
// assignment entries, so a track without a measurement cannot be corrected.
type Correction struct {
	track    *Track
	measured r3.Vec
}

// Track returns the track to correct.
func (c Correction) Track() *Track { return c.track }

// Measured returns the observed position folded into the track.
func (c Correction) Measured() r3.Vec { return c.measured }

// Bank owns the ordered pool of active tracks.
// It is not safe for concurrent use; Tracker serialises access.
type Bank struct {
	tracks []*Track
	nextID int64
	noise  noiseModel
}

// NewBank creates an empty bank whose tracks share cfg's noise parameters.
func NewBank(cfg TrackerConfig) *Bank {
	return &Bank{
		nextID: 1,
		noise:  newNoiseModel(cfg),
	}
}

// Len returns the number of tracks in the bank.
func (b *Bank) Len() int { return len(b.tracks) }

// At returns the track at bank position i.
func (b *Bank) At(i int) *Track { return b.tracks[i] }

// Tracks returns the tracks in bank order. The slice is a copy; the tracks
// are not.
func (b *Bank) Tracks() []*Track {
	out := make([]*Track, len(b.tracks))
	copy(out, b.tracks)
	return out
}

// PredictAll advances every track by one tick and returns the predicted
// positions in bank order.
func (b *Bank) PredictAll() []r3.Vec {
	predictions := make([]r3.Vec, len(b.tracks))
	for i, track := range b.tracks {
		track.filter.predict(b.noise)
		track.Age++
		track.Predicted = track.Position()
		predictions[i] = track.Predicted
	}
	return predictions
}

// Create appends one track per seed, positioned at the seed with zero
// velocity, and returns the new tracks in seed order.
func (b *Bank) Create(seeds ...r3.Vec) []*Track {
	created := make([]*Track, 0, len(seeds))
	for _, seed := range seeds {
		track := &Track{
			ID:     b.nextID,
			Z:      seed.Z,
			filter: newKalman(seed.X, seed.Y, b.noise),
		}
		track.Predicted = track.Position()
		b.nextID++
		b.tracks = append(b.tracks, track)
		created = append(created, track)
	}
	return created
}

// Correct folds the correction's measured x, y into its track.
// On a numerical failure the track keeps its predicted state.
func (b *Bank) Correct(c Correction) error {
	if c.track == nil {
		return ErrEmptyCorrection
	}
	if err := c.track.filter.correct(c.measured.X, c.measured.Y, b.noise); err != nil {
		return err
	}
	c.track.Z = c.measured.Z
	return nil
}

// DeleteAt removes the tracks at the given bank positions and returns them.
// The remaining tracks keep their relative order. Out-of-range and repeated
// indices are ignored.
func (b *Bank) DeleteAt(indices ...int) []*Track {
	if len(indices) == 0 {
		return nil
	}
	doomed := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(b.tracks) {
			doomed[i] = true
		}
	}
	removed := make([]*Track, 0, len(doomed))
	kept := b.tracks[:0]
	for i, track := range b.tracks {
		if doomed[i] {
			removed = append(removed, track)
			continue
		}
		kept = append(kept, track)
	}
	for i := len(kept); i < len(b.tracks); i++ {
		b.tracks[i] = nil
	}
	b.tracks = kept
	return removed
}

// Reset drops every track. IDs keep increasing across a reset.
func (b *Bank) Reset() {
	b.tracks = nil
}
