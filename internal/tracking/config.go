package tracking

// PruneMode selects how stale tracks are detected.
type PruneMode string

const (
	// PrunePerTrack deletes a track once its own consecutive miss count
	// exceeds the prune interval.
	PrunePerTrack PruneMode = "per_track"
	// PruneGlobal keeps one process-wide counter that advances on every
	// cycle with an unmatched track; when it exceeds the prune interval all
	// currently unmatched tracks are deleted and the counter resets.
	PruneGlobal PruneMode = "global"
)

// Valid reports whether m is a known prune mode.
func (m PruneMode) Valid() bool {
	return m == PrunePerTrack || m == PruneGlobal
}

// Default tracker parameters.
const (
	DefaultProcessNoise            = 0.01
	DefaultMeasurementNoise        = 0.1
	DefaultInitialPositionVariance = 1.0
	DefaultInitialVelocityVariance = 1.0
	DefaultPruneInterval           = 20
)

// TrackerConfig holds configuration parameters for the tracker.
// Noise values are variances shared by every track.
type TrackerConfig struct {
	ProcessNoise            float64   // Q = ProcessNoise·I₄ per tick
	MeasurementNoise        float64   // R = MeasurementNoise·I₂
	InitialPositionVariance float64   // P₀ diagonal for x, y
	InitialVelocityVariance float64   // P₀ diagonal for vx, vy
	PruneInterval           int       // Misses (or global cycles) tolerated before pruning
	PruneMode               PruneMode // How staleness is counted
}

// DefaultTrackerConfig returns default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		ProcessNoise:            DefaultProcessNoise,
		MeasurementNoise:        DefaultMeasurementNoise,
		InitialPositionVariance: DefaultInitialPositionVariance,
		InitialVelocityVariance: DefaultInitialVelocityVariance,
		PruneInterval:           DefaultPruneInterval,
		PruneMode:               PrunePerTrack,
	}
}
