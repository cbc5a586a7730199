package control

import (
	"github.com/golang/geo/r3"

	"github.com/san-kum/octoarm/internal/kernels"
	"github.com/san-kum/octoarm/internal/rod"
	"github.com/san-kum/octoarm/internal/target"
)

// Costate holds the adjoint fields conjugate to the rod strains.
type Costate struct {
	// Material frame, conjugate to sigma (n) and kappa (n-1).
	InternalForce  []r3.Vector
	InternalCouple []r3.Vector

	// Lab frame, n entries each.
	InternalForceDiscreteJump  []r3.Vector
	InternalCoupleDiscreteJump []r3.Vector
	InternalForceDerivative    []r3.Vector
	InternalCoupleDerivative   []r3.Vector

	forceLab     []r3.Vector
	coupleLab    []r3.Vector
	coupleMat    []r3.Vector
	coupleSource []r3.Vector
	forceAvg     []r3.Vector
	coupleAvg    []r3.Vector
	shear        []r3.Vector
	shearLab     []r3.Vector
}

func NewCostate(n int) *Costate {
	vec := func(m int) []r3.Vector { return make([]r3.Vector, max(m, 0)) }
	return &Costate{
		InternalForce:              vec(n),
		InternalCouple:             vec(n - 1),
		InternalForceDiscreteJump:  vec(n),
		InternalCoupleDiscreteJump: vec(n),
		InternalForceDerivative:    vec(n),
		InternalCoupleDerivative:   vec(n),
		forceLab:                   vec(n),
		coupleLab:                  vec(n),
		coupleMat:                  vec(n),
		coupleSource:               vec(n),
		forceAvg:                   vec(n - 1),
		coupleAvg:                  vec(n - 1),
		shear:                      vec(n),
		shearLab:                   vec(n),
	}
}

// Reset zeroes every field.
func (c *Costate) Reset() {
	for _, v := range [][]r3.Vector{
		c.InternalForce, c.InternalCouple,
		c.InternalForceDiscreteJump, c.InternalCoupleDiscreteJump,
		c.InternalForceDerivative, c.InternalCoupleDerivative,
	} {
		kernels.Zero(v)
	}
}

// SetBoundary loads the cost gradient: the negated terminal gradient becomes
// the jump at the tip element and the running gradient becomes the source.
//
// Only the tip jump is taken. Discrete gradients at interior elements are
// ignored.
func (c *Costate) SetBoundary(g *target.Gradient) {
	tip := len(c.InternalForceDiscreteJump) - 1
	c.InternalForceDiscreteJump[tip] = g.Discrete.Position[tip].Mul(-1)
	c.InternalCoupleDiscreteJump[tip] = g.Discrete.Director[tip].Mul(-1)
	copy(c.InternalForceDerivative, g.Continuous.Position)
	copy(c.InternalCoupleDerivative, g.Continuous.Director)
}

// BackwardEvolution integrates the adjoint balance laws from tip to base,
//
//	n_s = f
//	m_s = -r_s × n + c
//
// and stores the result in the material frame, with the couple averaged
// onto the Voronoi regions.
func (c *Costate) BackwardEvolution(r *rod.StaticRod) {
	n := r.NElements
	tip := n - 1

	kernels.Average(c.InternalForceDerivative, c.forceAvg)
	c.forceLab[tip] = c.InternalForceDiscreteJump[tip]
	for k := tip - 1; k >= 0; k-- {
		c.forceLab[k] = c.forceLab[k+1].Sub(c.forceAvg[k].Mul(r.RestLength[k] * r.Dilatation[k]))
	}
	kernels.LabToMaterial(r.Director, c.forceLab, c.InternalForce)

	kernels.ShearFromSigma(r.Sigma, c.shear)
	kernels.MaterialToLab(r.Director, c.shear, c.shearLab)
	for k := range c.coupleSource {
		c.coupleSource[k] = c.InternalCoupleDerivative[k].Sub(c.shearLab[k].Cross(c.forceLab[k]))
	}
	kernels.Average(c.coupleSource, c.coupleAvg)
	c.coupleLab[tip] = c.InternalCoupleDiscreteJump[tip]
	for k := tip - 1; k >= 0; k-- {
		c.coupleLab[k] = c.coupleLab[k+1].Sub(c.coupleAvg[k].Mul(r.RestLength[k] * r.Dilatation[k]))
	}
	kernels.LabToMaterial(r.Director, c.coupleLab, c.coupleMat)
	kernels.Average(c.coupleMat, c.InternalCouple)
}
