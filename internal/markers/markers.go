// Package markers turns tracker output into one visualisation marker per
// track, expressed in the configured output frame.
package markers

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/cluster-tracker/internal/geom"
	"github.com/banshee-data/cluster-tracker/internal/monitoring"
	"github.com/banshee-data/cluster-tracker/internal/tracking"
)

var logf = monitoring.Scoped("markers")

// DefaultScale is the marker edge length in output-frame units.
const DefaultScale = 0.2

// Color is an RGBA colour with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// Marker is one track drawn at its observed (or predicted) position.
type Marker struct {
	ID       int64
	Position r3.Vec
	Scale    float64
	Color    Color
}

// Options controls marker construction.
type Options struct {
	Transformer geom.Transformer
	ScanFrame   string
	TargetFrame string
	Scale       float64
}

// ColorFor returns the palette entry for the i-th marker of a frame.
func ColorFor(i int) Color {
	return Color{
		R: flag(i%2 != 0),
		G: flag(i%3 != 0),
		B: flag(i%4 != 0),
		A: 1,
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Build places one marker per track in result. A matched track is drawn at
// its observation, an unmatched one at its prediction. Points are moved
// into TargetFrame only when it differs from ScanFrame; a track whose
// point cannot be transformed is logged and left out.
func Build(result tracking.FrameResult, observations []r3.Vec, opts Options) []Marker {
	scale := opts.Scale
	if scale <= 0 {
		scale = DefaultScale
	}
	transform := opts.Transformer != nil && opts.ScanFrame != opts.TargetFrame

	out := make([]Marker, 0, len(result.Tracks))
	for i, tr := range result.Tracks {
		pos := tr.Predicted
		if j, ok := tr.Match.Observation(); ok && j < len(observations) {
			pos = observations[j]
		}
		if transform {
			p, err := opts.Transformer.Transform(pos, opts.ScanFrame, opts.TargetFrame)
			if err != nil {
				logf("frame %d: track %d skipped: %v", result.Frame, tr.ID, err)
				continue
			}
			pos = p
		}
		out = append(out, Marker{
			ID:       tr.ID,
			Position: pos,
			Scale:    scale,
			Color:    ColorFor(i),
		})
	}
	return out
}
