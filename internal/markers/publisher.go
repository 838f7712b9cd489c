package markers

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/banshee-data/cluster-tracker/internal/ingest"
	"github.com/banshee-data/cluster-tracker/internal/tracking"
)

// Publisher writes each frame's markers as one JSON line.
type Publisher struct {
	opts Options

	mu  sync.Mutex
	enc *json.Encoder
}

type markerLine struct {
	Frame   uint64    `json:"frame"`
	FrameID string    `json:"frame_id"`
	Markers []wireDot `json:"markers"`
}

type wireDot struct {
	ID    int64      `json:"id"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	Z     float64    `json:"z"`
	Scale float64    `json:"scale"`
	RGBA  [4]float64 `json:"rgba"`
}

// NewPublisher returns a Publisher writing to w.
func NewPublisher(w io.Writer, opts Options) *Publisher {
	return &Publisher{opts: opts, enc: json.NewEncoder(w)}
}

// HandleFrame builds and writes the markers for result.
func (p *Publisher) HandleFrame(f ingest.Frame, result tracking.FrameResult) error {
	ms := Build(result, f.Observations, p.opts)
	line := markerLine{
		Frame:   result.Frame,
		FrameID: p.outputFrame(),
		Markers: make([]wireDot, len(ms)),
	}
	for i, m := range ms {
		line.Markers[i] = wireDot{
			ID:    m.ID,
			X:     m.Position.X,
			Y:     m.Position.Y,
			Z:     m.Position.Z,
			Scale: m.Scale,
			RGBA:  [4]float64{m.Color.R, m.Color.G, m.Color.B, m.Color.A},
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(line); err != nil {
		return fmt.Errorf("write markers for frame %d: %w", result.Frame, err)
	}
	return nil
}

func (p *Publisher) outputFrame() string {
	if p.opts.TargetFrame != "" {
		return p.opts.TargetFrame
	}
	return p.opts.ScanFrame
}
