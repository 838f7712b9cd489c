// Package geom provides coordinate-frame transforms for tracker output.
package geom

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoTransform is returned when no transform is known between two frames.
var ErrNoTransform = errors.New("no transform between frames")

// Transformer maps a point from one reference frame to another.
type Transformer interface {
	Transform(p r3.Vec, from, to string) (r3.Vec, error)
}

// Rigid is a rotation by Angle radians about Axis followed by Translation.
type Rigid struct {
	Axis        r3.Vec
	Angle       float64
	Translation r3.Vec
}

// Identity returns the transform that leaves points unchanged.
func Identity() Rigid { return Rigid{} }

// Apply transforms p.
func (t Rigid) Apply(p r3.Vec) r3.Vec {
	return r3.Add(t.rotate(p, t.Angle), t.Translation)
}

// Inverse returns the transform that undoes t:
// R⁻¹(q − T) = R⁻¹q − R⁻¹T.
func (t Rigid) Inverse() Rigid {
	return Rigid{
		Axis:        t.Axis,
		Angle:       -t.Angle,
		Translation: r3.Scale(-1, t.rotate(t.Translation, -t.Angle)),
	}
}

func (t Rigid) rotate(p r3.Vec, angle float64) r3.Vec {
	if angle == 0 {
		return p
	}
	return r3.NewRotation(angle, t.Axis).Rotate(p)
}

func (t Rigid) validate() error {
	if t.Angle != 0 && r3.Norm(t.Axis) == 0 {
		return fmt.Errorf("rotation of %g rad needs a non-zero axis", t.Angle)
	}
	return nil
}

type edge struct{ from, to string }

// StaticTransforms is a registry of fixed rigid transforms between named
// frames. Lookups fall back to inverting the reverse edge. It is safe for
// concurrent use.
type StaticTransforms struct {
	mu    sync.RWMutex
	edges map[edge]Rigid
}

// NewStaticTransforms returns an empty registry.
func NewStaticTransforms() *StaticTransforms {
	return &StaticTransforms{edges: make(map[edge]Rigid)}
}

// Set registers the transform taking points in from to points in to.
func (s *StaticTransforms) Set(from, to string, t Rigid) error {
	if from == "" || to == "" {
		return fmt.Errorf("frame names must be non-empty (from=%q, to=%q)", from, to)
	}
	if err := t.validate(); err != nil {
		return fmt.Errorf("transform %s->%s: %w", from, to, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[edge{from, to}] = t
	return nil
}

// Lookup returns the transform from one frame to another.
func (s *StaticTransforms) Lookup(from, to string) (Rigid, error) {
	if from == to {
		return Identity(), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.edges[edge{from, to}]; ok {
		return t, nil
	}
	if t, ok := s.edges[edge{to, from}]; ok {
		return t.Inverse(), nil
	}
	return Rigid{}, fmt.Errorf("%w: %s -> %s", ErrNoTransform, from, to)
}

// Transform maps p from one frame to another.
func (s *StaticTransforms) Transform(p r3.Vec, from, to string) (r3.Vec, error) {
	t, err := s.Lookup(from, to)
	if err != nil {
		return r3.Vec{}, err
	}
	return t.Apply(p), nil
}
