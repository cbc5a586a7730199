package target

import (
	"github.com/pkg/errors"

	"github.com/san-kum/octoarm/internal/kernels"
)

// DirectorConstraint holds every element frame near a prescribed frame. Its
// gradient is point-wise, so it is reported in the discrete part.
type DirectorConstraint struct {
	Director []kernels.Mat3
	Weight   float64
}

// UniformDirectorConstraint constrains all n elements to the same frame.
func UniformDirectorConstraint(n int, d kernels.Mat3, weight float64) *DirectorConstraint {
	ds := make([]kernels.Mat3, n)
	for k := range ds {
		ds[k] = d
	}
	return &DirectorConstraint{Director: ds, Weight: weight}
}

func (c *DirectorConstraint) Gradient(p Pose, g *Gradient) error {
	n := g.NElements()
	if err := p.check(n); err != nil {
		return err
	}
	if len(c.Director) != n {
		return errors.Wrapf(ErrShape, "constraint has %d frames, want %d", len(c.Director), n)
	}
	g.Reset()
	for k, d := range p.Director {
		g.Discrete.Director[k] = d.TMulVec(misalignment(d, c.Director[k])).Mul(c.Weight)
	}
	return nil
}

func (c *DirectorConstraint) Cost(p Pose) (float64, error) {
	n := p.NElements()
	if err := p.check(n); err != nil {
		return 0, err
	}
	if len(c.Director) != n {
		return 0, errors.Wrapf(ErrShape, "constraint has %d frames, want %d", len(c.Director), n)
	}
	cost := 0.0
	for k, d := range p.Director {
		cost += 0.5 * c.Weight * alignmentCost(d, c.Director[k])
	}
	return cost, nil
}
