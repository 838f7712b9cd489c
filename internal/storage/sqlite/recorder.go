package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/cluster-tracker/internal/ingest"
	"github.com/banshee-data/cluster-tracker/internal/timeutil"
	"github.com/banshee-data/cluster-tracker/internal/tracking"
)

// ErrNoRun is returned when frames are recorded before StartRun.
var ErrNoRun = errors.New("no tracking run started")

// Run is one recorded tracker session.
type Run struct {
	RunID      string `json:"run_id"`
	Source     string `json:"source"`
	StartedNs  int64  `json:"started_ns"`
	FinishedNs *int64 `json:"finished_ns,omitempty"`
	Frames     int64  `json:"frames"`
	ConfigJSON string `json:"config_json,omitempty"`
}

// TrackPoint is one track's state in one recorded frame.
type TrackPoint struct {
	Frame      uint64
	ReceivedNs int64
	TrackID    int64
	ObsIndex   *int // nil when the track was unmatched
	X, Y, Z    float64
	VX, VY     float64
	PredictedX float64
	PredictedY float64
	Misses     int
	Born       bool
}

// FrameStats are the per-frame counters recorded alongside track points.
type FrameStats struct {
	Frame        uint64
	Observations int
	Skipped      int
	Malformed    int
	Created      int
	Pruned       int
	ActiveTracks int
}

// Recorder persists frame results. It implements ingest.FrameSink.
type Recorder struct {
	db    *DB
	clock timeutil.Clock
	runID string
}

// NewRecorder creates a Recorder on db. A nil clock uses the real clock.
func NewRecorder(db *DB, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{db: db, clock: clock}
}

// RunID returns the current run, or "" before StartRun.
func (r *Recorder) RunID() string { return r.runID }

// StartRun opens a new run and makes it current.
func (r *Recorder) StartRun(source, configJSON string) (string, error) {
	id := uuid.New().String()
	_, err := r.db.Exec(`
		INSERT INTO tracking_runs (run_id, source, started_ns, config_json)
		VALUES (?, ?, ?, ?)`,
		id, source, r.clock.Now().UnixNano(), nullString(configJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert tracking run: %w", err)
	}
	r.runID = id
	return id, nil
}

// FinishRun stamps the current run's finish time.
func (r *Recorder) FinishRun() error {
	if r.runID == "" {
		return ErrNoRun
	}
	_, err := r.db.Exec(`UPDATE tracking_runs SET finished_ns = ? WHERE run_id = ?`,
		r.clock.Now().UnixNano(), r.runID)
	if err != nil {
		return fmt.Errorf("finish tracking run %s: %w", r.runID, err)
	}
	return nil
}

// HandleFrame writes every track of result, plus the frame's counters,
// in one transaction.
func (r *Recorder) HandleFrame(f ingest.Frame, result tracking.FrameResult) (err error) {
	if r.runID == "" {
		return ErrNoRun
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin frame %d: %w", result.Frame, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO track_observations (
			run_id, frame, queue_seq, received_ns, track_id, obs_index,
			x, y, z, vx, vy, predicted_x, predicted_y, misses, born
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare track insert: %w", err)
	}
	defer stmt.Close()

	received := f.Received.UnixNano()
	for _, tr := range result.Tracks {
		var obs sql.NullInt64
		if j, ok := tr.Match.Observation(); ok {
			obs = sql.NullInt64{Int64: int64(j), Valid: true}
		}
		if _, err = stmt.Exec(
			r.runID, int64(result.Frame), int64(f.Seq), received, tr.ID, obs,
			tr.Position.X, tr.Position.Y, tr.Position.Z,
			tr.Velocity.X, tr.Velocity.Y,
			tr.Predicted.X, tr.Predicted.Y,
			tr.Misses, tr.Born,
		); err != nil {
			return fmt.Errorf("insert track %d frame %d: %w", tr.ID, result.Frame, err)
		}
	}

	if _, err = tx.Exec(`
		INSERT INTO frame_stats (
			run_id, frame, observations, skipped, malformed, created, pruned, active_tracks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.runID, int64(result.Frame), len(f.Observations), result.Skipped, f.Malformed,
		len(result.Created), len(result.Pruned), len(result.Tracks),
	); err != nil {
		return fmt.Errorf("insert frame stats %d: %w", result.Frame, err)
	}

	if _, err = tx.Exec(`UPDATE tracking_runs SET frames = frames + 1 WHERE run_id = ?`, r.runID); err != nil {
		return fmt.Errorf("update run frame count: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit frame %d: %w", result.Frame, err)
	}
	return nil
}

// Runs lists recorded runs, newest first.
func (r *Recorder) Runs() ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT run_id, source, started_ns, finished_ns, frames, config_json
		FROM tracking_runs ORDER BY started_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			finished sql.NullInt64
			config   sql.NullString
		)
		if err := rows.Scan(&run.RunID, &run.Source, &run.StartedNs, &finished, &run.Frames, &config); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			run.FinishedNs = &finished.Int64
		}
		run.ConfigJSON = config.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// TrackPoints returns every recorded point of a run ordered by track then
// frame, ready to be drawn as trails.
func (r *Recorder) TrackPoints(runID string) ([]TrackPoint, error) {
	rows, err := r.db.Query(`
		SELECT frame, received_ns, track_id, obs_index, x, y, z, vx, vy,
		       predicted_x, predicted_y, misses, born
		FROM track_observations
		WHERE run_id = ?
		ORDER BY track_id, frame`, runID)
	if err != nil {
		return nil, fmt.Errorf("query track points: %w", err)
	}
	defer rows.Close()

	var points []TrackPoint
	for rows.Next() {
		var (
			p     TrackPoint
			frame int64
			obs   sql.NullInt64
		)
		if err := rows.Scan(&frame, &p.ReceivedNs, &p.TrackID, &obs, &p.X, &p.Y, &p.Z,
			&p.VX, &p.VY, &p.PredictedX, &p.PredictedY, &p.Misses, &p.Born); err != nil {
			return nil, fmt.Errorf("scan track point: %w", err)
		}
		p.Frame = uint64(frame)
		if obs.Valid {
			j := int(obs.Int64)
			p.ObsIndex = &j
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// FrameStats returns the per-frame counters of a run in frame order.
func (r *Recorder) FrameStats(runID string) ([]FrameStats, error) {
	rows, err := r.db.Query(`
		SELECT frame, observations, skipped, malformed, created, pruned, active_tracks
		FROM frame_stats WHERE run_id = ? ORDER BY frame`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frame stats: %w", err)
	}
	defer rows.Close()

	var out []FrameStats
	for rows.Next() {
		var (
			s     FrameStats
			frame int64
		)
		if err := rows.Scan(&frame, &s.Observations, &s.Skipped, &s.Malformed, &s.Created, &s.Pruned, &s.ActiveTracks); err != nil {
			return nil, fmt.Errorf("scan frame stats: %w", err)
		}
		s.Frame = uint64(frame)
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
