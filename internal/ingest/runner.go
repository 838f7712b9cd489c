package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/cluster-tracker/internal/monitoring"
	"github.com/banshee-data/cluster-tracker/internal/timeutil"
	"github.com/banshee-data/cluster-tracker/internal/tracking"
)

var logf = monitoring.Scoped("ingest")

// Processor runs one tracking cycle. *tracking.Tracker implements it.
type Processor interface {
	Process(observations []r3.Vec) tracking.FrameResult
}

// FrameSink consumes the outcome of each cycle.
type FrameSink interface {
	HandleFrame(f Frame, result tracking.FrameResult) error
}

// SinkFunc adapts a function to FrameSink.
type SinkFunc func(f Frame, result tracking.FrameResult) error

// HandleFrame calls fn.
func (fn SinkFunc) HandleFrame(f Frame, result tracking.FrameResult) error {
	return fn(f, result)
}

// RunnerConfig contains configuration options for a Runner.
type RunnerConfig struct {
	Queue         *FrameQueue
	Tracker       Processor
	Sinks         []FrameSink
	Clock         timeutil.Clock
	StatsInterval time.Duration
}

// RunnerStats are cumulative counters for a Runner.
type RunnerStats struct {
	Frames       uint64
	Observations uint64
	Malformed    uint64
	Skipped      uint64
	Created      uint64
	Pruned       uint64
	SinkErrors   uint64
}

// Runner drains a FrameQueue through a tracker and fans results out to
// sinks. One Runner is the only consumer of its queue.
type Runner struct {
	queue         *FrameQueue
	tracker       Processor
	sinks         []FrameSink
	clock         timeutil.Clock
	statsInterval time.Duration

	frames       atomic.Uint64
	observations atomic.Uint64
	malformed    atomic.Uint64
	skipped      atomic.Uint64
	created      atomic.Uint64
	pruned       atomic.Uint64
	sinkErrors   atomic.Uint64
}

// NewRunner creates a Runner. A nil Clock uses the real clock and a zero
// StatsInterval defaults to ten seconds.
func NewRunner(cfg RunnerConfig) *Runner {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	interval := cfg.StatsInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Runner{
		queue:         cfg.Queue,
		tracker:       cfg.Tracker,
		sinks:         cfg.Sinks,
		clock:         clock,
		statsInterval: interval,
	}
}

// Run processes frames until ctx is cancelled or the queue is closed and
// drained. A closed queue ends Run with a nil error.
func (r *Runner) Run(ctx context.Context) error {
	statsCtx, stop := context.WithCancel(ctx)
	defer stop()
	go r.logStatsLoop(statsCtx)

	for {
		f, err := r.queue.Pop(ctx)
		if errors.Is(err, ErrQueueClosed) {
			r.logStats()
			return nil
		}
		if err != nil {
			return err
		}
		r.Step(f)
	}
}

// Step runs a single frame through the tracker and every sink.
func (r *Runner) Step(f Frame) tracking.FrameResult {
	result := r.tracker.Process(f.Observations)

	r.frames.Add(1)
	r.observations.Add(uint64(len(f.Observations)))
	r.malformed.Add(uint64(f.Malformed))
	r.skipped.Add(uint64(result.Skipped))
	r.created.Add(uint64(len(result.Created)))
	r.pruned.Add(uint64(len(result.Pruned)))

	for _, sink := range r.sinks {
		if err := sink.HandleFrame(f, result); err != nil {
			r.sinkErrors.Add(1)
			logf("frame %d: sink error: %v", f.Seq, err)
		}
	}
	return result
}

// Stats returns the cumulative counters.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Frames:       r.frames.Load(),
		Observations: r.observations.Load(),
		Malformed:    r.malformed.Load(),
		Skipped:      r.skipped.Load(),
		Created:      r.created.Load(),
		Pruned:       r.pruned.Load(),
		SinkErrors:   r.sinkErrors.Load(),
	}
}

func (r *Runner) logStatsLoop(ctx context.Context) {
	ticker := r.clock.NewTicker(r.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			r.logStats()
		}
	}
}

func (r *Runner) logStats() {
	s := r.Stats()
	q := r.queue.Stats()
	logf("frames=%d obs=%d malformed=%d skipped=%d created=%d pruned=%d sink_errors=%d queue_depth=%d queue_dropped=%d",
		s.Frames, s.Observations, s.Malformed, s.Skipped, s.Created, s.Pruned, s.SinkErrors, q.Depth, q.Dropped)
}
