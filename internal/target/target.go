// Package target provides the cost sources the controller steers the rod
// with. A Source turns a rod pose into lab-frame cost gradients with respect
// to element positions and directors, split into a running (continuous) part
// and a terminal (discrete) part.
package target

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/san-kum/octoarm/internal/kernels"
	"github.com/san-kum/octoarm/internal/rod"
)

// ErrShape indicates a pose or gradient whose element count does not match.
var ErrShape = errors.New("target: shape mismatch")

// Pose is the read-only view of a rod a Source needs.
type Pose struct {
	Position []r3.Vector    // n+1
	Director []kernels.Mat3 // n
	Radius   []float64      // n
}

// PoseOf borrows the pose fields of r without copying.
func PoseOf(r *rod.StaticRod) Pose {
	return Pose{Position: r.Position, Director: r.Director, Radius: r.Radius}
}

// NElements returns the element count of the pose.
func (p Pose) NElements() int { return len(p.Director) }

func (p Pose) check(n int) error {
	if len(p.Director) != n || len(p.Radius) != n || len(p.Position) != n+1 {
		return errors.Wrapf(ErrShape, "pose has %d/%d/%d entries, want %d elements",
			len(p.Position), len(p.Director), len(p.Radius), n)
	}
	return nil
}

// centre returns the midpoint of element k.
func (p Pose) centre(k int) r3.Vector {
	return p.Position[k].Add(p.Position[k+1]).Mul(0.5)
}

// WRTPose holds one gradient per element.
type WRTPose struct {
	Position []r3.Vector
	Director []r3.Vector
}

func newWRTPose(n int) WRTPose {
	return WRTPose{Position: make([]r3.Vector, n), Director: make([]r3.Vector, n)}
}

func (w WRTPose) reset() {
	kernels.Zero(w.Position)
	kernels.Zero(w.Director)
}

func (w WRTPose) add(o WRTPose) {
	for k := range w.Position {
		w.Position[k] = w.Position[k].Add(o.Position[k])
		w.Director[k] = w.Director[k].Add(o.Director[k])
	}
}

// Gradient is the cost gradient over n elements. Discrete entries are
// point-wise terminal sub-gradients; continuous entries are densities of the
// running cost.
type Gradient struct {
	Continuous WRTPose
	Discrete   WRTPose
}

// NewGradient allocates a zero gradient for n elements.
func NewGradient(n int) *Gradient {
	return &Gradient{Continuous: newWRTPose(n), Discrete: newWRTPose(n)}
}

// NElements returns the element count of g.
func (g *Gradient) NElements() int { return len(g.Continuous.Position) }

// Reset zeroes every entry.
func (g *Gradient) Reset() {
	g.Continuous.reset()
	g.Discrete.reset()
}

// Add accumulates o into g.
func (g *Gradient) Add(o *Gradient) {
	g.Continuous.add(o.Continuous)
	g.Discrete.add(o.Discrete)
}

// Source evaluates a cost gradient. Gradient overwrites every entry of g.
type Source interface {
	Gradient(p Pose, g *Gradient) error
}

// Coster is implemented by sources that can also report the cost value.
type Coster interface {
	Cost(p Pose) (float64, error)
}

// Weights scale the position and director parts of a cost.
type Weights struct {
	Position float64 `yaml:"position"`
	Director float64 `yaml:"director"`
}

// misalignment returns vec(D·T̂ᵀ - T̂·Dᵀ), the axial vector of the skew part
// of the relative rotation between a director and its target.
func misalignment(d, target kernels.Mat3) r3.Vector {
	s := d.MulT(target).Add(target.MulT(d).Scale(-1))
	return r3.Vector{X: s[1][2], Y: -s[0][2], Z: s[0][1]}
}

// alignmentCost is ½‖D - T̂‖²_F for orthonormal frames.
func alignmentCost(d, target kernels.Mat3) float64 {
	return 3 - d.MulT(target).Trace()
}
