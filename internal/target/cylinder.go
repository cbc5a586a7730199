package target

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/san-kum/octoarm/internal/kernels"
)

// Cylinder is a finite obstacle whose axis is the d3 row of Director. It
// pushes element centres that penetrate its surface, inflated by the local
// rod radius, back out radially.
type Cylinder struct {
	Position r3.Vector
	Director kernels.Mat3
	Radius   float64
	Length   float64
	Weight   Weights
}

// penetration returns the radial offset of centre from the axis and the
// signed fraction of it needed to clear the surface; ratio is zero when
// the point is clear or beyond the caps.
func (c *Cylinder) penetration(centre r3.Vector, radius float64) (horizontal r3.Vector, ratio float64) {
	axis := c.Director.Row(2)
	diff := centre.Sub(c.Position)
	vertical := diff.Dot(axis)
	horizontal = diff.Sub(axis.Mul(vertical))
	dist := horizontal.Norm()
	if dist == 0 || math.Abs(vertical) > c.Length/2 {
		return horizontal, 0
	}
	ratio = (dist - (radius + c.Radius)) / dist
	if ratio > 0 {
		ratio = 0
	}
	return horizontal, ratio
}

func (c *Cylinder) Gradient(p Pose, g *Gradient) error {
	if err := p.check(g.NElements()); err != nil {
		return err
	}
	g.Reset()
	c.addObstacle(p, g)
	return nil
}

func (c *Cylinder) addObstacle(p Pose, g *Gradient) {
	for k := range g.Continuous.Position {
		h, ratio := c.penetration(p.centre(k), p.Radius[k])
		g.Continuous.Position[k] = g.Continuous.Position[k].Add(h.Mul(c.Weight.Position * ratio))
	}
}

func (c *Cylinder) Cost(p Pose) (float64, error) {
	n := p.NElements()
	if err := p.check(n); err != nil {
		return 0, err
	}
	return c.obstacleCost(p), nil
}

func (c *Cylinder) obstacleCost(p Pose) float64 {
	cost := 0.0
	for k := 0; k < p.NElements(); k++ {
		h, ratio := c.penetration(p.centre(k), p.Radius[k])
		d := h.Mul(ratio)
		cost += 0.5 * c.Weight.Position * d.Dot(d)
	}
	return cost
}

// CylinderTarget is a Cylinder the arm should wrap around: element centres
// are attracted onto its surface and element frames are turned so d1 faces
// the cylinder and d3 runs perpendicular to its axis. Attraction weights are
// per element, so grasping can be restricted to the distal part of the arm.
type CylinderTarget struct {
	Cylinder
	PositionWeight []float64
	DirectorWeight []float64
	DirectorCost   bool
}

// TanhProfile returns n weights rising smoothly from 0 to scale around the
// normalized arc length onset.
func TanhProfile(n int, scale, onset, sharpness float64) []float64 {
	w := make([]float64, n)
	for k := range w {
		s := 0.0
		if n > 1 {
			s = float64(k) / float64(n-1)
		}
		w[k] = scale * 0.5 * (1 + math.Tanh((s-onset)*sharpness))
	}
	return w
}

func (t *CylinderTarget) Gradient(p Pose, g *Gradient) error {
	n := g.NElements()
	if err := p.check(n); err != nil {
		return err
	}
	if len(t.PositionWeight) != n || len(t.DirectorWeight) != n {
		return ErrShape
	}
	g.Reset()
	t.addObstacle(p, g)

	axis := t.Director.Row(2)
	facing := t.Director.Row(0)
	for k := 0; k < n; k++ {
		c := p.centre(k)
		diff := c.Sub(t.Position)
		if dist := diff.Norm(); dist > 0 {
			ratio := math.Max((dist-(p.Radius[k]+t.Radius))/dist, 0)
			g.Continuous.Position[k] = g.Continuous.Position[k].Add(diff.Mul(t.PositionWeight[k] * ratio))
		}

		if !t.DirectorCost {
			continue
		}
		d := p.Director[k]
		d1, d2, d3 := d.Row(0), d.Row(1), d.Row(2)

		v := r3.Vector{Y: -d3.Dot(axis), Z: d2.Dot(axis)}
		grad := d.TMulVec(v).Mul(t.DirectorWeight[k] * d1.Dot(axis))

		toward := t.Position.Sub(c)
		if toward.Norm() > 0 {
			u := toward.Normalize()
			v = r3.Vector{Y: -d3.Dot(u), Z: d2.Dot(u)}
			grad = grad.Add(d.TMulVec(v).Mul(t.DirectorWeight[k] * math.Min(facing.Dot(u), 0)))
		}
		g.Continuous.Director[k] = grad
	}
	return nil
}

func (t *CylinderTarget) Cost(p Pose) (float64, error) {
	n := p.NElements()
	if err := p.check(n); err != nil {
		return 0, err
	}
	if len(t.PositionWeight) != n {
		return 0, ErrShape
	}
	cost := t.obstacleCost(p)
	for k := 0; k < n; k++ {
		dist := p.centre(k).Sub(t.Position).Norm()
		gap := math.Max(dist-(p.Radius[k]+t.Radius), 0)
		cost += 0.5 * t.PositionWeight[k] * gap * gap
	}
	return cost, nil
}
