package rod

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/san-kum/octoarm/internal/kernels"
)

// Snapshot is the reference pose and constitutive data handed over by the
// dynamic rod simulation. A StaticRod deep-copies it once at construction.
type Snapshot struct {
	Position    []r3.Vector    // n+1 nodes
	Director    []kernels.Mat3 // n elements
	Radius      []float64      // n elements
	ShearMatrix []kernels.Mat3 // n elements
	BendMatrix  []kernels.Mat3 // n-1 Voronoi regions
}

// NElements returns the number of elements described by the snapshot.
func (s Snapshot) NElements() int {
	return len(s.Radius)
}

func (s Snapshot) validate() error {
	n := s.NElements()
	if n < 1 {
		return errors.Wrap(ErrDimensionMismatch, "snapshot has no elements")
	}
	switch {
	case len(s.Position) != n+1:
		return errors.Wrapf(ErrDimensionMismatch, "position has %d nodes, want %d", len(s.Position), n+1)
	case len(s.Director) != n:
		return errors.Wrapf(ErrDimensionMismatch, "director has %d elements, want %d", len(s.Director), n)
	case len(s.ShearMatrix) != n:
		return errors.Wrapf(ErrDimensionMismatch, "shear matrix has %d elements, want %d", len(s.ShearMatrix), n)
	case len(s.BendMatrix) != n-1:
		return errors.Wrapf(ErrDimensionMismatch, "bend matrix has %d entries, want %d", len(s.BendMatrix), n-1)
	}
	return nil
}

// StraightRodParams describes a straight, possibly tapered, isotropic rod.
type StraightRodParams struct {
	NElements    int
	Start        r3.Vector
	Direction    r3.Vector // tangent, material d3
	Normal       r3.Vector // material d1
	BaseLength   float64
	BaseRadius   float64
	TipRadius    float64
	YoungModulus float64
	ShearModulus float64 // 0 means E / (2(1+ν)) with ν = 0.5
}

// shearCorrection is the Timoshenko shear coefficient of a circular section.
const shearCorrection = 4.0 / 3.0

// StraightRod builds the snapshot of a straight rod at rest. The radius tapers
// linearly from BaseRadius to TipRadius at the nodes and is averaged onto the
// elements.
func StraightRod(p StraightRodParams) (Snapshot, error) {
	n := p.NElements
	if n < 1 {
		return Snapshot{}, errors.Errorf("rod: n_elements must be positive, got %d", n)
	}
	if p.BaseLength <= 0 {
		return Snapshot{}, errors.Errorf("rod: base length must be positive, got %g", p.BaseLength)
	}
	if p.Direction.Norm() == 0 || p.Normal.Norm() == 0 {
		return Snapshot{}, errors.New("rod: direction and normal must be non-zero")
	}
	d3 := p.Direction.Normalize()
	d1 := p.Normal.Normalize()
	if math.Abs(d1.Dot(d3)) > 1e-12 {
		return Snapshot{}, errors.New("rod: normal must be perpendicular to direction")
	}
	d2 := d3.Cross(d1)

	g := p.ShearModulus
	if g == 0 {
		g = p.YoungModulus / (2 * (1 + 0.5))
	}

	ds := p.BaseLength / float64(n)
	snap := Snapshot{
		Position:    make([]r3.Vector, n+1),
		Director:    make([]kernels.Mat3, n),
		Radius:      make([]float64, n),
		ShearMatrix: make([]kernels.Mat3, n),
		BendMatrix:  make([]kernels.Mat3, n-1),
	}

	for i := 0; i <= n; i++ {
		snap.Position[i] = p.Start.Add(d3.Mul(ds * float64(i)))
	}

	frame := kernels.FromRows(d1, d2, d3)
	bend := make([]kernels.Mat3, n)
	for k := 0; k < n; k++ {
		s0 := float64(k) / float64(n)
		s1 := float64(k+1) / float64(n)
		r0 := p.BaseRadius + (p.TipRadius-p.BaseRadius)*s0
		r1 := p.BaseRadius + (p.TipRadius-p.BaseRadius)*s1
		r := (r0 + r1) / 2

		area := math.Pi * r * r
		inertia := area * r * r / 4

		snap.Director[k] = frame
		snap.Radius[k] = r
		snap.ShearMatrix[k] = kernels.Diag(shearCorrection*g*area, shearCorrection*g*area, p.YoungModulus*area)
		bend[k] = kernels.Diag(p.YoungModulus*inertia, p.YoungModulus*inertia, g*2*inertia)
	}

	// Voronoi bend stiffness is the length-weighted average of the neighbours.
	for k := 0; k < n-1; k++ {
		snap.BendMatrix[k] = bend[k].Scale(ds).Add(bend[k+1].Scale(ds)).Scale(1 / (2 * ds))
	}

	return snap, nil
}
