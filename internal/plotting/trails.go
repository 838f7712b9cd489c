// Package plotting renders recorded tracking runs as PNG charts.
package plotting

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/cluster-tracker/internal/storage/sqlite"
)

// maxLegendTracks caps legend entries; beyond it the legend is omitted.
const maxLegendTracks = 12

// TrailPlotter writes trail and activity charts for recorded runs.
type TrailPlotter struct {
	outputDir string
	width     vg.Length
	height    vg.Length
}

// NewTrailPlotter creates a plotter writing into outputDir.
func NewTrailPlotter(outputDir string) *TrailPlotter {
	return &TrailPlotter{outputDir: outputDir, width: 10 * vg.Inch, height: 10 * vg.Inch}
}

type trail struct {
	id     int64
	path   plotter.XYs
	births plotter.XYs
	misses plotter.XYs
}

// groupTrails splits points ordered by track then frame into one trail per
// track, preserving that order.
func groupTrails(points []sqlite.TrackPoint) []trail {
	var trails []trail
	for _, p := range points {
		if len(trails) == 0 || trails[len(trails)-1].id != p.TrackID {
			trails = append(trails, trail{id: p.TrackID})
		}
		t := &trails[len(trails)-1]
		xy := plotter.XY{X: p.X, Y: p.Y}
		t.path = append(t.path, xy)
		if p.Born {
			t.births = append(t.births, xy)
		}
		if p.ObsIndex == nil {
			t.misses = append(t.misses, xy)
		}
	}
	return trails
}

// PlotTrails draws every track's path in the x/y plane. Births are marked
// with a ring and unmatched (predicted-only) positions with a cross.
// It returns the written file path.
func (tp *TrailPlotter) PlotTrails(runID string, points []sqlite.TrackPoint) (string, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("run %s has no track points", runID)
	}
	trails := groupTrails(points)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run %s - Track Trails (%d tracks)", shortID(runID), len(trails))
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	for i, t := range trails {
		c := plotutil.Color(i)

		line, err := plotter.NewLine(t.path)
		if err != nil {
			return "", fmt.Errorf("track %d: %w", t.id, err)
		}
		line.Color = c
		line.Width = vg.Points(1)
		p.Add(line)
		if len(trails) <= maxLegendTracks {
			p.Legend.Add(fmt.Sprintf("track %d", t.id), line)
		}

		if len(t.births) > 0 {
			s, err := plotter.NewScatter(t.births)
			if err != nil {
				return "", fmt.Errorf("track %d births: %w", t.id, err)
			}
			s.GlyphStyle = draw.GlyphStyle{Color: c, Radius: vg.Points(3), Shape: draw.RingGlyph{}}
			p.Add(s)
		}
		if len(t.misses) > 0 {
			s, err := plotter.NewScatter(t.misses)
			if err != nil {
				return "", fmt.Errorf("track %d misses: %w", t.id, err)
			}
			s.GlyphStyle = draw.GlyphStyle{Color: c, Radius: vg.Points(2), Shape: draw.CrossGlyph{}}
			p.Add(s)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return tp.save(p, fmt.Sprintf("run_%s_trails.png", shortID(runID)), tp.width, tp.height)
}

// PlotActivity draws observations and active tracks per frame.
func (tp *TrailPlotter) PlotActivity(runID string, stats []sqlite.FrameStats) (string, error) {
	if len(stats) == 0 {
		return "", fmt.Errorf("run %s has no frame stats", runID)
	}

	obs := make(plotter.XYs, len(stats))
	active := make(plotter.XYs, len(stats))
	for i, s := range stats {
		obs[i] = plotter.XY{X: float64(s.Frame), Y: float64(s.Observations)}
		active[i] = plotter.XY{X: float64(s.Frame), Y: float64(s.ActiveTracks)}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run %s - Activity", shortID(runID))
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Count"

	for i, series := range []struct {
		label string
		xys   plotter.XYs
	}{
		{"observations", obs},
		{"active tracks", active},
	} {
		line, err := plotter.NewLine(series.xys)
		if err != nil {
			return "", fmt.Errorf("%s: %w", series.label, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(series.label, line)
	}
	p.Legend.Top = true

	return tp.save(p, fmt.Sprintf("run_%s_activity.png", shortID(runID)), 14*vg.Inch, 6*vg.Inch)
}

func (tp *TrailPlotter) save(p *plot.Plot, name string, w, h vg.Length) (string, error) {
	if err := os.MkdirAll(tp.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	file := filepath.Join(tp.outputDir, name)
	if err := p.Save(w, h, file); err != nil {
		return "", fmt.Errorf("save %s: %w", file, err)
	}
	return file, nil
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
