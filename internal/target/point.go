package target

import (
	"github.com/golang/geo/r3"

	"github.com/san-kum/octoarm/internal/kernels"
)

// PointTarget pulls the centre of the last element onto a point and, when
// DirectorCost is set, its frame onto Director.
type PointTarget struct {
	Position     r3.Vector
	Director     kernels.Mat3
	Weight       Weights
	DirectorCost bool
}

// NewPointTarget returns a point target with an identity target frame.
func NewPointTarget(position r3.Vector, w Weights) *PointTarget {
	return &PointTarget{Position: position, Director: kernels.Identity(), Weight: w}
}

func (t *PointTarget) Gradient(p Pose, g *Gradient) error {
	n := g.NElements()
	if err := p.check(n); err != nil {
		return err
	}
	g.Reset()

	tip := n - 1
	g.Discrete.Position[tip] = p.centre(tip).Sub(t.Position).Mul(t.Weight.Position)
	if t.DirectorCost {
		d := p.Director[tip]
		g.Discrete.Director[tip] = d.TMulVec(misalignment(d, t.Director)).Mul(t.Weight.Director)
	}
	return nil
}

func (t *PointTarget) Cost(p Pose) (float64, error) {
	n := p.NElements()
	if err := p.check(n); err != nil {
		return 0, err
	}
	d := p.centre(n - 1).Sub(t.Position)
	cost := 0.5 * t.Weight.Position * d.Dot(d)
	if t.DirectorCost {
		cost += 0.5 * t.Weight.Director * alignmentCost(p.Director[n-1], t.Director)
	}
	return cost, nil
}

// AlignReachDirector orients the target frame so that its d3 axis continues
// the tip-to-target direction and d2 is normal to the plane spanned by the
// base-to-target and tip-to-target directions. It is a no-op when the two
// directions are parallel.
func (t *PointTarget) AlignReachDirector(base, tip r3.Vector) {
	baseTo := t.Position.Sub(base)
	tipTo := t.Position.Sub(tip)
	if baseTo.Norm() == 0 || tipTo.Norm() == 0 {
		return
	}
	d2 := baseTo.Normalize().Cross(tipTo.Normalize())
	if d2.Norm() == 0 {
		return
	}
	d2 = d2.Normalize()
	d1 := d2.Cross(tipTo.Normalize())
	d3 := d1.Cross(d2)
	t.Director = kernels.FromRows(d1, d2, d3)
}
