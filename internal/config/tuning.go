package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/cluster-tracker/internal/geom"
	"github.com/banshee-data/cluster-tracker/internal/tracking"
)

// DefaultConfigPath is the checked-in tuning file. Its values mirror
// DefaultTuningConfig, which the daemon uses when no -config is given.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Every field is optional; the Get* accessors supply defaults.
type TuningConfig struct {
	// Tracker params
	ProcessNoise            *float64 `json:"process_noise,omitempty"`
	MeasurementNoise        *float64 `json:"measurement_noise,omitempty"`
	InitialPositionVariance *float64 `json:"initial_position_variance,omitempty"`
	InitialVelocityVariance *float64 `json:"initial_velocity_variance,omitempty"`
	PruneInterval           *int     `json:"prune_interval,omitempty"`
	PruneMode               *string  `json:"prune_mode,omitempty"` // "per_track" or "global"

	// Ingest params
	QueueSize     *int    `json:"queue_size,omitempty"`     // 0 means one slot per CPU
	StatsInterval *string `json:"stats_interval,omitempty"` // duration string like "10s"

	// Output frames and markers
	ScanFrame   *string           `json:"scan_frame,omitempty"`
	TargetFrame *string           `json:"target_frame,omitempty"` // defaults to scan_frame
	Visualize   *bool             `json:"visualize,omitempty"`
	MarkerScale *float64          `json:"marker_scale,omitempty"`
	Transforms  []TransformConfig `json:"transforms,omitempty"`
}

// TransformConfig describes one static rigid transform between frames:
// rotate by angle_rad about axis, then translate.
type TransformConfig struct {
	From        string     `json:"from"`
	To          string     `json:"to"`
	Translation [3]float64 `json:"translation"`
	Axis        [3]float64 `json:"axis"`
	AngleRad    float64    `json:"angle_rad"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		ProcessNoise:            ptrFloat64(tracking.DefaultProcessNoise),
		MeasurementNoise:        ptrFloat64(tracking.DefaultMeasurementNoise),
		InitialPositionVariance: ptrFloat64(tracking.DefaultInitialPositionVariance),
		InitialVelocityVariance: ptrFloat64(tracking.DefaultInitialVelocityVariance),
		PruneInterval:           ptrInt(tracking.DefaultPruneInterval),
		PruneMode:               ptrString(string(tracking.PrunePerTrack)),
		QueueSize:               ptrInt(0),
		StatsInterval:           ptrString("10s"),
		ScanFrame:               ptrString("laser"),
		TargetFrame:             ptrString("laser"),
		Visualize:               ptrBool(true),
		MarkerScale:             ptrFloat64(0.2),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	for name, v := range map[string]*float64{
		"process_noise":             c.ProcessNoise,
		"measurement_noise":         c.MeasurementNoise,
		"initial_position_variance": c.InitialPositionVariance,
		"initial_velocity_variance": c.InitialVelocityVariance,
		"marker_scale":              c.MarkerScale,
	} {
		if v != nil && (*v <= 0 || math.IsInf(*v, 0) || math.IsNaN(*v)) {
			return fmt.Errorf("%s must be a positive finite number, got %v", name, *v)
		}
	}

	if c.PruneInterval != nil && *c.PruneInterval < 0 {
		return fmt.Errorf("prune_interval must be non-negative, got %d", *c.PruneInterval)
	}

	if c.PruneMode != nil && !tracking.PruneMode(*c.PruneMode).Valid() {
		return fmt.Errorf("prune_mode must be %q or %q, got %q", tracking.PrunePerTrack, tracking.PruneGlobal, *c.PruneMode)
	}

	if c.QueueSize != nil && *c.QueueSize < 0 {
		return fmt.Errorf("queue_size must be non-negative, got %d", *c.QueueSize)
	}

	if c.StatsInterval != nil && *c.StatsInterval != "" {
		d, err := time.ParseDuration(*c.StatsInterval)
		if err != nil {
			return fmt.Errorf("invalid stats_interval '%s': %w", *c.StatsInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("stats_interval must be positive, got %s", d)
		}
	}

	if _, err := TransformsFromTuning(c); err != nil {
		return err
	}

	return nil
}

// GetProcessNoise returns the process_noise value or the default.
func (c *TuningConfig) GetProcessNoise() float64 {
	if c.ProcessNoise == nil {
		return tracking.DefaultProcessNoise
	}
	return *c.ProcessNoise
}

// GetMeasurementNoise returns the measurement_noise value or the default.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return tracking.DefaultMeasurementNoise
	}
	return *c.MeasurementNoise
}

// GetInitialPositionVariance returns the initial_position_variance value or the default.
func (c *TuningConfig) GetInitialPositionVariance() float64 {
	if c.InitialPositionVariance == nil {
		return tracking.DefaultInitialPositionVariance
	}
	return *c.InitialPositionVariance
}

// GetInitialVelocityVariance returns the initial_velocity_variance value or the default.
func (c *TuningConfig) GetInitialVelocityVariance() float64 {
	if c.InitialVelocityVariance == nil {
		return tracking.DefaultInitialVelocityVariance
	}
	return *c.InitialVelocityVariance
}

// GetPruneInterval returns the prune_interval value or the default.
func (c *TuningConfig) GetPruneInterval() int {
	if c.PruneInterval == nil {
		return tracking.DefaultPruneInterval
	}
	return *c.PruneInterval
}

// GetPruneMode returns the prune_mode value or the default.
func (c *TuningConfig) GetPruneMode() tracking.PruneMode {
	if c.PruneMode == nil || *c.PruneMode == "" {
		return tracking.PrunePerTrack
	}
	return tracking.PruneMode(*c.PruneMode)
}

// GetQueueSize returns the frame queue capacity. Zero or unset means one
// slot per available CPU.
func (c *TuningConfig) GetQueueSize() int {
	if c.QueueSize == nil || *c.QueueSize == 0 {
		return runtime.NumCPU()
	}
	return *c.QueueSize
}

// GetStatsInterval parses and returns the StatsInterval as a time.Duration.
func (c *TuningConfig) GetStatsInterval() time.Duration {
	if c.StatsInterval == nil || *c.StatsInterval == "" {
		return 10 * time.Second // default
	}
	d, err := time.ParseDuration(*c.StatsInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second // default on parse error
	}
	return d
}

// GetScanFrame returns the scan_frame value or the default.
func (c *TuningConfig) GetScanFrame() string {
	if c.ScanFrame == nil || *c.ScanFrame == "" {
		return "laser"
	}
	return *c.ScanFrame
}

// GetTargetFrame returns the target_frame value, falling back to the scan frame.
func (c *TuningConfig) GetTargetFrame() string {
	if c.TargetFrame == nil || *c.TargetFrame == "" {
		return c.GetScanFrame()
	}
	return *c.TargetFrame
}

// GetVisualize returns the visualize value or the default.
func (c *TuningConfig) GetVisualize() bool {
	if c.Visualize == nil {
		return true
	}
	return *c.Visualize
}

// GetMarkerScale returns the marker_scale value or the default.
func (c *TuningConfig) GetMarkerScale() float64 {
	if c.MarkerScale == nil {
		return 0.2
	}
	return *c.MarkerScale
}

// TrackerConfigFromTuning builds a tracking.TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *TuningConfig) tracking.TrackerConfig {
	return tracking.TrackerConfig{
		ProcessNoise:            cfg.GetProcessNoise(),
		MeasurementNoise:        cfg.GetMeasurementNoise(),
		InitialPositionVariance: cfg.GetInitialPositionVariance(),
		InitialVelocityVariance: cfg.GetInitialVelocityVariance(),
		PruneInterval:           cfg.GetPruneInterval(),
		PruneMode:               cfg.GetPruneMode(),
	}
}

// TransformsFromTuning registers every configured transform in a new registry.
func TransformsFromTuning(cfg *TuningConfig) (*geom.StaticTransforms, error) {
	reg := geom.NewStaticTransforms()
	for i, tc := range cfg.Transforms {
		rigid := geom.Rigid{
			Axis:        r3.Vec{X: tc.Axis[0], Y: tc.Axis[1], Z: tc.Axis[2]},
			Angle:       tc.AngleRad,
			Translation: r3.Vec{X: tc.Translation[0], Y: tc.Translation[1], Z: tc.Translation[2]},
		}
		if err := reg.Set(tc.From, tc.To, rigid); err != nil {
			return nil, fmt.Errorf("transforms[%d]: %w", i, err)
		}
	}
	return reg, nil
}
