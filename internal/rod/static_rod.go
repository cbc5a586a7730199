// Package rod holds the quasi-static Cosserat rod: one consistent rod
// configuration and the transforms between its strain representation
// (sigma, kappa) and its pose (positions, directors).
package rod

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/san-kum/octoarm/internal/kernels"
)

// StaticRod is the quasi-static rod state. Fields are exported for read
// access by muscle and cost collaborators; UpdateFromStrain is the only
// mutator and the Rest* and constitutive fields never change after New.
type StaticRod struct {
	NElements int

	Position []r3.Vector    // n+1
	Director []kernels.Mat3 // n

	Radius  []float64   // n
	Length  []float64   // n
	Tangent []r3.Vector // n

	Dilatation        []float64 // n
	VoronoiDilatation []float64 // n-1

	Sigma []r3.Vector // n
	Kappa []r3.Vector // n-1

	RestLength        []float64   // n
	RestVoronoiLength []float64   // n-1
	RestRadius        []float64   // n
	RestSigma         []r3.Vector // n
	RestKappa         []r3.Vector // n-1

	ShearMatrix []kernels.Mat3 // n
	BendMatrix  []kernels.Mat3 // n-1

	// Inverses of the constitutive matrices, factored once at construction.
	ShearInverse []kernels.Mat3 // n
	BendInverse  []kernels.Mat3 // n-1

	shear         []r3.Vector
	positionDiff  []r3.Vector
	voronoiLength []float64
}

// New builds a StaticRod from a deep copy of the snapshot. The rest strain is
// measured on the snapshot itself, so any natural curvature or shear present
// at construction is preserved.
func New(snap Snapshot) (*StaticRod, error) {
	if err := snap.validate(); err != nil {
		return nil, err
	}
	n := snap.NElements()

	r := &StaticRod{
		NElements:         n,
		Position:          kernels.Clone(snap.Position),
		Director:          append([]kernels.Mat3(nil), snap.Director...),
		Radius:            make([]float64, n),
		Length:            make([]float64, n),
		Tangent:           make([]r3.Vector, n),
		Dilatation:        make([]float64, n),
		VoronoiDilatation: make([]float64, n-1),
		Sigma:             make([]r3.Vector, n),
		Kappa:             make([]r3.Vector, n-1),
		RestLength:        make([]float64, n),
		RestVoronoiLength: make([]float64, n-1),
		RestRadius:        append([]float64(nil), snap.Radius...),
		ShearMatrix:       append([]kernels.Mat3(nil), snap.ShearMatrix...),
		BendMatrix:        append([]kernels.Mat3(nil), snap.BendMatrix...),
		ShearInverse:      make([]kernels.Mat3, n),
		BendInverse:       make([]kernels.Mat3, n-1),
		shear:             make([]r3.Vector, n),
		positionDiff:      make([]r3.Vector, n),
		voronoiLength:     make([]float64, n-1),
	}

	kernels.Difference(r.Position, r.positionDiff)
	for k, d := range r.positionDiff {
		r.RestLength[k] = d.Norm()
		if !validLength(r.RestLength[k]) {
			return nil, &ElementError{Element: k, Op: "rest length", Wrapped: ErrDegenerateGeometry}
		}
	}
	kernels.AverageScalar(r.RestLength, r.RestVoronoiLength)

	for k, m := range r.ShearMatrix {
		inv, err := m.Inverse()
		if err != nil {
			return nil, &ElementError{Element: k, Op: "shear matrix", Wrapped: errors.Wrap(ErrSingularConstitutiveMatrix, err.Error())}
		}
		r.ShearInverse[k] = inv
	}
	for k, m := range r.BendMatrix {
		inv, err := m.Inverse()
		if err != nil {
			return nil, &ElementError{Element: k, Op: "bend matrix", Wrapped: errors.Wrap(ErrSingularConstitutiveMatrix, err.Error())}
		}
		r.BendInverse[k] = inv
	}

	if err := r.computeGeometryFromState(); err != nil {
		return nil, err
	}
	r.computeAllDilatations()
	r.StrainFromGeometry(r.Sigma, r.Kappa)

	r.RestSigma = kernels.Clone(r.Sigma)
	r.RestKappa = kernels.Clone(r.Kappa)
	return r, nil
}

func validLength(l float64) bool {
	return l > 0 && !math.IsInf(l, 0) && !math.IsNaN(l)
}

// UpdateFromStrain sets the strain fields and rebuilds the pose from them.
// Afterwards Position, Director, Length, Tangent, Radius, Dilatation and
// VoronoiDilatation are all consistent with sigma and kappa. The base node
// and base director stay fixed.
func (r *StaticRod) UpdateFromStrain(sigma, kappa []r3.Vector) error {
	if len(sigma) != r.NElements || len(kappa) != r.NElements-1 {
		return errors.Wrapf(ErrDimensionMismatch, "strain has %d/%d entries, want %d/%d",
			len(sigma), len(kappa), r.NElements, r.NElements-1)
	}
	copy(r.Sigma, sigma)
	copy(r.Kappa, kappa)

	r.poseEvolution()
	if err := r.computeGeometryFromState(); err != nil {
		return err
	}
	r.computeAllDilatations()
	return nil
}

// poseEvolution integrates the pose from base to tip. Element k+1 depends on
// every element before it, so the scan is strictly sequential.
func (r *StaticRod) poseEvolution() {
	kernels.ShearFromSigma(r.Sigma, r.shear)
	last := r.NElements - 1
	for k := 0; k < last; k++ {
		r.Position[k+1] = r.Position[k].Add(r.Director[k].TMulVec(r.shear[k].Mul(r.RestLength[k])))
		rot := kernels.RotationFromVector(r.Kappa[k].Mul(r.RestVoronoiLength[k]))
		r.Director[k+1] = rot.Mul(r.Director[k])
	}
	r.Position[last+1] = r.Position[last].Add(r.Director[last].TMulVec(r.shear[last].Mul(r.RestLength[last])))
}

// computeGeometryFromState refreshes lengths, tangents and the
// volume-conserving radius from the node positions.
func (r *StaticRod) computeGeometryFromState() error {
	kernels.Difference(r.Position, r.positionDiff)
	for k, d := range r.positionDiff {
		l := d.Norm()
		if !validLength(l) {
			return &ElementError{Element: k, Op: "geometry", Wrapped: ErrDegenerateGeometry}
		}
		r.Length[k] = l
		r.Tangent[k] = d.Mul(1 / l)
		r.Radius[k] = r.RestRadius[k] * math.Sqrt(r.RestLength[k]/l)
	}
	return nil
}

func (r *StaticRod) computeAllDilatations() {
	for k := range r.Length {
		r.Dilatation[k] = r.Length[k] / r.RestLength[k]
	}
	kernels.AverageScalar(r.Length, r.voronoiLength)
	for k := range r.voronoiLength {
		r.VoronoiDilatation[k] = r.voronoiLength[k] / r.RestVoronoiLength[k]
	}
}

// StrainFromGeometry measures the strain of the current pose into the given
// buffers (len n and n-1).
//
// sigma = ε·(D·t) - e3, since an unsheared element maps its tangent exactly
// onto the local z axis. kappa = -log(D[k+1]·D[k]ᵀ) / ℓ̂ᵥ[k].
func (r *StaticRod) StrainFromGeometry(sigma, kappa []r3.Vector) {
	for k := range sigma {
		sigma[k] = r.Director[k].MulVec(r.Tangent[k]).Mul(r.Dilatation[k]).Sub(r3.Vector{Z: 1})
	}
	kernels.RelativeRotationLog(r.Director, kappa)
	for k := range kappa {
		kappa[k] = kappa[k].Mul(1 / r.RestVoronoiLength[k])
	}
}

// TotalRestLength returns the sum of element rest lengths.
func (r *StaticRod) TotalRestLength() float64 {
	total := 0.0
	for _, l := range r.RestLength {
		total += l
	}
	return total
}

// ArcLength returns the normalized rest arc-length coordinate of every node,
// running from 0 at the base to 1 at the tip.
func (r *StaticRod) ArcLength() []float64 {
	s := make([]float64, r.NElements+1)
	total := r.TotalRestLength()
	for k, l := range r.RestLength {
		s[k+1] = s[k] + l/total
	}
	return s
}

// Tip returns the tip node position.
func (r *StaticRod) Tip() r3.Vector {
	return r.Position[r.NElements]
}

// ElementCentres returns the midpoint of every element.
func (r *StaticRod) ElementCentres() []r3.Vector {
	out := make([]r3.Vector, r.NElements)
	kernels.Average(r.Position, out)
	return out
}
