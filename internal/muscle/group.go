package muscle

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/san-kum/octoarm/internal/kernels"
	"github.com/san-kum/octoarm/internal/rod"
)

// Model is a muscle actuator as seen by the optimal-control driver.
//
// Evaluate writes (not adds) the material-frame internal force on the n
// elements and internal couple on the n-1 Voronoi regions into caller-owned
// buffers.
type Model interface {
	Name() string
	NElements() int
	Activation() []float64
	ApplyActivation(a []float64) error
	Evaluate(r *rod.StaticRod, force, couple []r3.Vector) error
}

// Group drives several Force muscles with one shared activation and reports
// the sum of their loads.
type Group struct {
	kind    Kind
	index   int
	muscles []*Force

	activation []float64
	force      []r3.Vector
	couple     []r3.Vector
	sumForce   []r3.Vector
	sumCouple  []r3.Vector
}

// NewGroup builds a group; members are renumbered in order.
func NewGroup(kind Kind, index int, muscles ...*Force) (*Group, error) {
	if len(muscles) == 0 {
		return nil, ErrEmptyGroup
	}
	n := muscles[0].NElements()
	for i, m := range muscles {
		if m.NElements() != n {
			return nil, errors.Wrapf(ErrActivationShape, "member %d has %d elements, want %d", i, m.NElements(), n)
		}
		m.index = i
	}
	return &Group{
		kind:       kind,
		index:      index,
		muscles:    muscles,
		activation: make([]float64, n),
		force:      make([]r3.Vector, n),
		couple:     make([]r3.Vector, max(n-1, 0)),
		sumForce:   make([]r3.Vector, n),
		sumCouple:  make([]r3.Vector, max(n-1, 0)),
	}, nil
}

func (g *Group) Name() string          { return fmt.Sprintf("%d_%s", g.index, g.kind) }
func (g *Group) NElements() int        { return len(g.activation) }
func (g *Group) Activation() []float64 { return g.activation }
func (g *Group) Muscles() []*Force     { return g.muscles }

// ApplyActivation sets the same activation on every member.
func (g *Group) ApplyActivation(a []float64) error {
	if len(a) != len(g.activation) {
		return errors.Wrapf(ErrActivationShape, "%s: got %d values, want %d", g.Name(), len(a), len(g.activation))
	}
	copy(g.activation, a)
	for _, m := range g.muscles {
		if err := m.ApplyActivation(g.activation); err != nil {
			return err
		}
	}
	return nil
}

// SetCurrentLengthAsRestLength applies Force.SetCurrentLengthAsRestLength to
// every member.
func (g *Group) SetCurrentLengthAsRestLength(r *rod.StaticRod) error {
	for _, m := range g.muscles {
		if err := m.SetCurrentLengthAsRestLength(r); err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) Evaluate(r *rod.StaticRod, force, couple []r3.Vector) error {
	kernels.Zero(g.sumForce)
	kernels.Zero(g.sumCouple)
	for _, m := range g.muscles {
		if err := m.Evaluate(r, g.force, g.couple); err != nil {
			return errors.Wrap(err, g.Name())
		}
		for k := range g.force {
			g.sumForce[k] = g.sumForce[k].Add(g.force[k])
		}
		for k := range g.couple {
			g.sumCouple[k] = g.sumCouple[k].Add(g.couple[k])
		}
	}
	copy(force, g.sumForce)
	copy(couple, g.sumCouple)
	return nil
}

// ExternalLoads converts the summed loads of the last Evaluate into nodal
// forces (n+1) and element couples (n).
func (g *Group) ExternalLoads(r *rod.StaticRod, force, couple []r3.Vector) {
	InternalToExternal(r, g.sumForce, g.sumCouple, force, couple)
}
