package control_test

import (
	"errors"

	"github.com/golang/geo/r3"

	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/rod"
	"github.com/san-kum/octoarm/internal/target"
)

// axialMuscle pulls every element along its own d3 axis with a·f0 and
// produces no couple.
type axialMuscle struct {
	f0 float64
	a  []float64
}

func newAxialMuscle(n int, f0 float64) *axialMuscle {
	return &axialMuscle{f0: f0, a: make([]float64, n)}
}

func (m *axialMuscle) Name() string                      { return "axial" }
func (m *axialMuscle) NElements() int                    { return len(m.a) }
func (m *axialMuscle) Activation() []float64             { return m.a }
func (m *axialMuscle) ApplyActivation(a []float64) error { copy(m.a, a); return nil }

func (m *axialMuscle) Evaluate(r *rod.StaticRod, force, couple []r3.Vector) error {
	for k := range force {
		force[k] = r3.Vector{Z: m.a[k] * m.f0}
	}
	for k := range couple {
		couple[k] = r3.Vector{}
	}
	return nil
}

// bendingMuscle applies a·force to every element and a·couple to every
// Voronoi region, both in the material frame.
type bendingMuscle struct {
	force, couple r3.Vector
	a             []float64
}

func newBendingMuscle(n int, force, couple r3.Vector) *bendingMuscle {
	return &bendingMuscle{force: force, couple: couple, a: make([]float64, n)}
}

func (m *bendingMuscle) Name() string                      { return "bending" }
func (m *bendingMuscle) NElements() int                    { return len(m.a) }
func (m *bendingMuscle) Activation() []float64             { return m.a }
func (m *bendingMuscle) ApplyActivation(a []float64) error { copy(m.a, a); return nil }

func (m *bendingMuscle) Evaluate(r *rod.StaticRod, force, couple []r3.Vector) error {
	for k := range force {
		force[k] = m.force.Mul(m.a[k])
	}
	for k := range couple {
		couple[k] = m.couple.Mul(0.5 * (m.a[k] + m.a[k+1]))
	}
	return nil
}

var errPartialActivation = errors.New("activation must be 0 or 1")

// onOffMuscle is an axialMuscle that only accepts fully off or fully on
// activations.
type onOffMuscle struct {
	*axialMuscle
}

func (m onOffMuscle) Name() string { return "on_off" }

func (m onOffMuscle) ApplyActivation(a []float64) error {
	for _, v := range a {
		if v != 0 && v != 1 {
			return errPartialActivation
		}
	}
	return m.axialMuscle.ApplyActivation(a)
}

// tipPull is a terminal cost with a constant gradient at the tip element.
type tipPull struct {
	grad r3.Vector
}

func (s tipPull) Gradient(p target.Pose, g *target.Gradient) error {
	g.Reset()
	g.Discrete.Position[g.NElements()-1] = s.grad
	return nil
}

func straightRod(n int) *rod.StaticRod {
	snap, err := rod.StraightRod(rod.StraightRodParams{
		NElements:    n,
		Direction:    r3.Vector{Z: 1},
		Normal:       r3.Vector{X: 1},
		BaseLength:   1,
		BaseRadius:   0.01,
		TipRadius:    0.01,
		YoungModulus: 1e3,
	})
	if err != nil {
		panic(err)
	}
	r, err := rod.New(snap)
	if err != nil {
		panic(err)
	}
	return r
}

// recorder keeps every iteration it observes.
type recorder struct {
	diffs       []float64
	activations [][]float64
	onIteration func(control.Iteration)
}

func (r *recorder) OnIteration(it control.Iteration) {
	r.diffs = append(r.diffs, it.ActivationDiff)
	for _, a := range it.Activations {
		r.activations = append(r.activations, append([]float64(nil), a...))
	}
	if r.onIteration != nil {
		r.onIteration(it)
	}
}

// countMetric counts observed iterations.
type countMetric struct{ n int }

func (c *countMetric) Name() string                 { return "count" }
func (c *countMetric) Observe(it control.Iteration) { c.n++ }
func (c *countMetric) Value() float64               { return float64(c.n) }
func (c *countMetric) Reset()                       { c.n = 0 }
