package muscle

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/san-kum/octoarm/internal/kernels"
	"github.com/san-kum/octoarm/internal/rod"
)

// Kind identifies the fibre arrangement of a Force muscle.
type Kind string

const (
	Longitudinal Kind = "LM"
	Transverse   Kind = "TM"
	Oblique      Kind = "OM"
)

// Params are the fibre properties shared by every Force muscle.
type Params struct {
	RestArea  []float64 // per element cross-section at rest
	MaxStress float64
	Weight    WeightFunc // nil means Unit
}

// Force is a fibre muscle running parallel to the centreline at an
// off-centre position expressed as a multiple of the local rod radius.
//
// A Force owns its working buffers; it is not safe to evaluate the same
// muscle from more than one goroutine.
type Force struct {
	kind      Kind
	index     int
	n         int
	ratio     []r3.Vector // material-frame position / radius
	restArea  []float64
	maxStress float64
	weight    WeightFunc
	length    func(strain r3.Vector) float64

	activation []float64
	restLength []float64

	area             []float64
	position         []r3.Vector
	strain           []r3.Vector
	tangent          []r3.Vector
	muscleLength     []float64
	normalizedLength []float64
	magnitude        []float64
	internalForce    []r3.Vector
	internalCouple   []r3.Vector

	shear        []r3.Vector
	avgPosition  []r3.Vector
	diffPosition []r3.Vector
	avgForce     []r3.Vector
	bendTerm     []r3.Vector
	quad         []r3.Vector
}

func newForce(kind Kind, p Params, ratio []r3.Vector) *Force {
	n := len(p.RestArea)
	w := p.Weight
	if w == nil {
		w = Unit
	}
	f := &Force{
		kind:             kind,
		n:                n,
		ratio:            ratio,
		restArea:         append([]float64(nil), p.RestArea...),
		maxStress:        p.MaxStress,
		weight:           w,
		length:           r3.Vector.Norm,
		activation:       make([]float64, n),
		restLength:       make([]float64, n),
		area:             make([]float64, n),
		position:         make([]r3.Vector, n),
		strain:           make([]r3.Vector, n),
		tangent:          make([]r3.Vector, n),
		muscleLength:     make([]float64, n),
		normalizedLength: make([]float64, n),
		magnitude:        make([]float64, n),
		internalForce:    make([]r3.Vector, n),
		internalCouple:   make([]r3.Vector, max(n-1, 0)),
		shear:            make([]r3.Vector, n),
		avgPosition:      make([]r3.Vector, max(n-1, 0)),
		diffPosition:     make([]r3.Vector, max(n-1, 0)),
		avgForce:         make([]r3.Vector, max(n-1, 0)),
		bendTerm:         make([]r3.Vector, max(n-1, 0)),
		quad:             make([]r3.Vector, n),
	}
	for k := range f.restLength {
		f.restLength[k] = 1
	}
	return f
}

// NewLongitudinal builds a straight fibre at angle (radians, from material d1
// towards d2) and distance ratio·radius from the centreline.
func NewLongitudinal(p Params, angle, ratio float64) *Force {
	n := len(p.RestArea)
	pos := make([]r3.Vector, n)
	for k := range pos {
		pos[k] = r3.Vector{X: ratio * math.Cos(angle), Y: ratio * math.Sin(angle)}
	}
	return newForce(Longitudinal, p, pos)
}

// NewTransverse builds a centred, radially contracting muscle. Contraction
// thins the section and so stretches the rod, hence the negative stress, and
// its fibre length follows the volume-conserving |strain|^(-1/2) law.
func NewTransverse(p Params) *Force {
	p.MaxStress = -p.MaxStress
	f := newForce(Transverse, p, make([]r3.Vector, len(p.RestArea)))
	f.length = func(s r3.Vector) float64 {
		return 1 / math.Sqrt(s.Norm())
	}
	return f
}

// NewOblique builds a helical fibre that winds rotationNumber times around
// the centreline over the rod length; a negative rotationNumber reverses the
// handedness.
func NewOblique(p Params, angle, ratio, rotationNumber float64) *Force {
	n := len(p.RestArea)
	pos := make([]r3.Vector, n)
	for k := range pos {
		s := (float64(k) + 0.5) / float64(n)
		theta := angle + 2*math.Pi*rotationNumber*s
		pos[k] = r3.Vector{X: ratio * math.Cos(theta), Y: ratio * math.Sin(theta)}
	}
	return newForce(Oblique, p, pos)
}

func (f *Force) Name() string   { return fmt.Sprintf("%d_%s", f.index, f.kind) }
func (f *Force) Kind() Kind     { return f.kind }
func (f *Force) NElements() int { return f.n }

// Activation returns the live activation array.
func (f *Force) Activation() []float64 { return f.activation }

// ApplyActivation copies a into the muscle's activation.
func (f *Force) ApplyActivation(a []float64) error {
	if len(a) != f.n {
		return errors.Wrapf(ErrActivationShape, "%s: got %d values, want %d", f.Name(), len(a), f.n)
	}
	copy(f.activation, a)
	return nil
}

// SetCurrentLengthAsRestLength makes the fibre length of the rod's current
// pose the rest length, so the force-length weight peaks there.
func (f *Force) SetCurrentLengthAsRestLength(r *rod.StaticRod) error {
	if err := f.kinematics(r); err != nil {
		return err
	}
	copy(f.restLength, f.muscleLength)
	return nil
}

// Evaluate writes the material-frame internal force (n) and couple (n-1)
// the muscle generates on the rod's current pose at its current activation.
func (f *Force) Evaluate(r *rod.StaticRod, force, couple []r3.Vector) error {
	if err := f.kinematics(r); err != nil {
		return err
	}
	for k := 0; k < f.n; k++ {
		f.normalizedLength[k] = f.muscleLength[k] / f.restLength[k]
		f.magnitude[k] = f.activation[k] * f.maxStress * f.weight(f.normalizedLength[k]) * f.area[k]
		f.internalForce[k] = f.tangent[k].Mul(f.magnitude[k])
	}
	forceInducedCouple(f.position, f.internalForce, f.internalCouple, f.avgPosition, f.avgForce)

	copy(force, f.internalForce)
	copy(couple, f.internalCouple)
	return nil
}

// ExternalLoads converts the loads of the last Evaluate into nodal forces
// (n+1) and element couples (n).
func (f *Force) ExternalLoads(r *rod.StaticRod, force, couple []r3.Vector) {
	InternalToExternal(r, f.internalForce, f.internalCouple, force, couple)
}

// NormalizedLength returns the fibre length relative to rest from the last
// Evaluate.
func (f *Force) NormalizedLength() []float64 { return f.normalizedLength }

// kinematics refreshes area, fibre position, strain, tangent and length:
//
//	strain = shear + Q(κ × avg(p) + Δp / (ℓ̂ᵥ·εᵥ))
func (f *Force) kinematics(r *rod.StaticRod) error {
	if r.NElements != f.n {
		return errors.Wrapf(ErrRodMismatch, "%s: rod has %d elements, want %d", f.Name(), r.NElements, f.n)
	}
	for k := 0; k < f.n; k++ {
		f.area[k] = f.restArea[k] / r.Dilatation[k]
		f.position[k] = f.ratio[k].Mul(r.Radius[k])
	}

	kernels.ShearFromSigma(r.Sigma, f.shear)
	kernels.Average(f.position, f.avgPosition)
	kernels.Difference(f.position, f.diffPosition)
	for k := range f.bendTerm {
		d := f.diffPosition[k].Mul(1 / (r.RestVoronoiLength[k] * r.VoronoiDilatation[k]))
		f.bendTerm[k] = r.Kappa[k].Cross(f.avgPosition[k]).Add(d)
	}
	kernels.QuadratureKernel(f.bendTerm, f.quad)

	for k := 0; k < f.n; k++ {
		s := f.shear[k].Add(f.quad[k])
		norm := s.Norm()
		if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
			return &rod.ElementError{Element: k, Op: f.Name(), Wrapped: ErrDegenerateStrain}
		}
		f.strain[k] = s
		f.tangent[k] = s.Mul(1 / norm)
		f.muscleLength[k] = f.length(s)
	}
	return nil
}
