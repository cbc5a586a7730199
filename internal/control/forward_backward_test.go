package control_test

import (
	"context"
	"errors"
	"math"

	"github.com/golang/geo/r3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/kernels"
	"github.com/san-kum/octoarm/internal/muscle"
	"github.com/san-kum/octoarm/internal/target"
)

var _ = Describe("Config", func() {
	It("accepts the defaults", func() {
		Expect(control.DefaultConfig().Validate()).To(Succeed())
	})

	It("reports every invalid field", func() {
		cfg := control.Config{Stepsize: -1, ActivationDiffTolerance: 0, MaxIterNumber: 0, Workers: 0}
		err := cfg.Validate()
		Expect(multierr.Errors(err)).To(HaveLen(4))
		Expect(errors.Is(err, control.ErrInvalidConfig)).To(BeTrue())
	})

	It("names every status", func() {
		Expect(control.Initializing.String()).To(Equal("initializing"))
		Expect(control.Iterating.String()).To(Equal("iterating"))
		Expect(control.Converged.String()).To(Equal("converged"))
		Expect(control.MaxIterReached.String()).To(Equal("max_iter_reached"))
	})
})

var _ = Describe("New", func() {
	var cfg control.Config

	BeforeEach(func() {
		cfg = control.DefaultConfig()
	})

	It("requires muscles", func() {
		_, err := control.New(straightRod(4), nil, tipPull{}, cfg)
		Expect(err).To(MatchError(control.ErrNoMuscles))
	})

	It("requires a cost source", func() {
		_, err := control.New(straightRod(4), []muscle.Model{newAxialMuscle(4, 1)}, nil, cfg)
		Expect(err).To(MatchError(control.ErrNoSource))
	})

	It("rejects muscles sized for another rod", func() {
		_, err := control.New(straightRod(4), []muscle.Model{newAxialMuscle(5, 1)}, tipPull{}, cfg)
		Expect(errors.Is(err, control.ErrShape)).To(BeTrue())
	})

	It("rejects an invalid config", func() {
		cfg.Stepsize = 0
		_, err := control.New(straightRod(4), []muscle.Model{newAxialMuscle(4, 1)}, tipPull{}, cfg)
		Expect(errors.Is(err, control.ErrInvalidConfig)).To(BeTrue())
	})

	It("starts initializing with zero activations", func() {
		d, err := control.New(straightRod(4), []muscle.Model{newAxialMuscle(4, 1)}, tipPull{}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Status()).To(Equal(control.Initializing))
		Expect(d.Activations()[0]).To(Equal([]float64{0, 0, 0, 0}))
		Expect(math.IsInf(d.ActivationDiff(), 1)).To(BeTrue())
	})

	It("clips activations and checks their shape", func() {
		d, err := control.New(straightRod(3), []muscle.Model{newAxialMuscle(3, 1)}, tipPull{}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.SetActivations([][]float64{{-1, 0.5, 2}})).To(Succeed())
		Expect(d.Activations()[0]).To(Equal([]float64{0, 0.5, 1}))
		Expect(errors.Is(d.SetActivations([][]float64{{1, 2}}), control.ErrShape)).To(BeTrue())
		Expect(errors.Is(d.SetActivations(nil), control.ErrShape)).To(BeTrue())
	})
})

var _ = Describe("Costate", func() {
	const n = 6

	It("carries a tip jump unchanged to the base", func() {
		r := straightRod(n)
		cs := control.NewCostate(n)
		g := target.NewGradient(n)
		g.Discrete.Position[n-1] = r3.Vector{X: 1, Y: -2, Z: 3}
		g.Discrete.Position[2] = r3.Vector{X: 100}

		cs.SetBoundary(g)
		cs.BackwardEvolution(r)

		for k := 0; k < n; k++ {
			Expect(cs.InternalForce[k].X).To(BeNumerically("~", -1, 1e-15))
			Expect(cs.InternalForce[k].Y).To(BeNumerically("~", 2, 1e-15))
			Expect(cs.InternalForce[k].Z).To(BeNumerically("~", -3, 1e-15))
		}
	})

	It("integrates a running force gradient", func() {
		const c = 2.0
		r := straightRod(n)
		rl := r.RestLength[0]
		cs := control.NewCostate(n)
		g := target.NewGradient(n)
		for k := range g.Continuous.Position {
			g.Continuous.Position[k] = r3.Vector{X: c}
		}

		cs.SetBoundary(g)
		cs.BackwardEvolution(r)

		for k := 0; k < n; k++ {
			Expect(cs.InternalForce[k].X).To(BeNumerically("~", -float64(n-1-k)*c*rl, 1e-12))
		}
		// m_s = -r_s × n gives the first couple step behind the tip.
		Expect(cs.InternalCouple[n-2].Y).To(BeNumerically("~", -0.25*c*rl*rl, 1e-12))
		Expect(cs.InternalCouple[n-2].X).To(BeNumerically("~", 0, 1e-15))
	})

	It("resets every field", func() {
		cs := control.NewCostate(n)
		cs.InternalForce[1] = r3.Vector{X: 1}
		cs.InternalCoupleDerivative[3] = r3.Vector{Y: 1}
		cs.Reset()
		Expect(cs.InternalForce[1].Norm()).To(BeZero())
		Expect(cs.InternalCoupleDerivative[3].Norm()).To(BeZero())
	})
})

var _ = Describe("ForwardBackward", func() {
	const n = 10

	var (
		cfg control.Config
		rec *recorder
	)

	BeforeEach(func() {
		cfg = control.Config{
			Stepsize:                0.1,
			ActivationDiffTolerance: 1e-10,
			MaxIterNumber:           500,
			Workers:                 1,
		}
		rec = &recorder{}
	})

	newDriver := func(gz float64) (*control.ForwardBackward, *axialMuscle) {
		r := straightRod(n)
		m := newAxialMuscle(n, 1e-3*r.ShearMatrix[0][2][2])
		d, err := control.New(r, []muscle.Model{m}, tipPull{grad: r3.Vector{Z: gz}}, cfg)
		Expect(err).NotTo(HaveOccurred())
		d.SetLogger(zap.NewNop())
		d.AddObserver(rec)
		return d, m
	}

	It("converges monotonically for a constant tip pull", func() {
		d, _ := newDriver(500)
		metric := &countMetric{}
		d.AddMetric(metric)

		res, err := d.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Status).To(Equal(control.Converged))
		Expect(res.Iterations).To(BeNumerically("<", 500))
		Expect(res.ActivationDiff).To(BeNumerically("<", 1e-10))
		Expect(res.Metrics).To(HaveKeyWithValue("count", float64(res.Iterations)))

		for i := 1; i < len(rec.diffs); i++ {
			Expect(rec.diffs[i]).To(BeNumerically("<=", rec.diffs[i-1]))
		}
		for _, a := range res.Activations[0] {
			Expect(a).To(BeNumerically("~", 0.5, 1e-3))
		}
	})

	It("keeps activations within [0, 1]", func() {
		for _, gz := range []float64{5000, -500} {
			rec = &recorder{}
			cfg.Stepsize = 0.5
			d, _ := newDriver(gz)

			res, err := d.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(control.Converged))
			for _, a := range rec.activations {
				for _, v := range a {
					Expect(v).To(BeNumerically(">=", 0))
					Expect(v).To(BeNumerically("<=", 1))
				}
			}
			want := 1.0
			if gz < 0 {
				want = 0
			}
			Expect(res.Activations[0]).To(HaveEach(want))
		}
	})

	It("leaves the rod at rest while activations are zero", func() {
		r := straightRod(n)
		rest := kernels.Clone(r.Position)
		groups, err := muscle.LongitudinalLayout(r, muscle.DefaultLayoutParams())
		Expect(err).NotTo(HaveOccurred())
		models := make([]muscle.Model, len(groups))
		for i, g := range groups {
			models[i] = g
		}

		d, err := control.New(r, models, tipPull{grad: r3.Vector{X: 1}}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Step()).To(Succeed())

		for k := range r.Sigma {
			Expect(r.Sigma[k].Norm()).To(BeZero())
		}
		for k := range r.Kappa {
			Expect(r.Kappa[k].Norm()).To(BeZero())
		}
		for k := range rest {
			Expect(r.Position[k].Sub(rest[k]).Norm()).To(BeNumerically("<", 1e-14))
		}
	})

	It("reports MaxIterReached without an error", func() {
		cfg.Stepsize = 1e-6
		cfg.ActivationDiffTolerance = 1e-300
		cfg.MaxIterNumber = 5
		d, _ := newDriver(500)

		res, err := d.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Status).To(Equal(control.MaxIterReached))
		Expect(res.Iterations).To(Equal(5))
		Expect(rec.diffs).To(HaveLen(5))
	})

	It("stops between iterations when cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rec.onIteration = func(it control.Iteration) {
			if it.Index == 3 {
				cancel()
			}
		}
		cfg.ActivationDiffTolerance = 1e-300
		d, _ := newDriver(500)

		res, err := d.Run(ctx)
		Expect(err).To(MatchError(context.Canceled))
		Expect(res.Iterations).To(Equal(3))
		Expect(res.Status).To(Equal(control.Iterating))
	})

	It("gives identical results with concurrent workers", func() {
		run := func(workers int) [][]float64 {
			r := straightRod(n)
			s33 := r.ShearMatrix[0][2][2]
			models := []muscle.Model{
				newAxialMuscle(n, 1e-3*s33),
				newAxialMuscle(n, 2e-3*s33),
				newAxialMuscle(n, -5e-4*s33),
			}
			c := cfg
			c.MaxIterNumber = 20
			c.Workers = workers
			d, err := control.New(r, models, tipPull{grad: r3.Vector{Z: 300}}, c)
			Expect(err).NotTo(HaveOccurred())
			res, err := d.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			return res.Activations
		}

		Expect(run(4)).To(Equal(run(1)))
	})
})

var _ = Describe("target activation", func() {
	const (
		n = 6
		g = 2.0
	)

	// A straight rod at rest pulled sideways at the tip has a constant
	// material force adjoint (-g, 0, 0) and a couple adjoint along d2 that
	// grows linearly from the tip: m[j] = -(2n-3-2j)/2 · g · ℓ.
	It("pairs each element with the couple adjoint at its own and the next region", func() {
		r := straightRod(n)
		rl := r.RestLength[0]
		s11, s33 := r.ShearMatrix[0][0][0], r.ShearMatrix[0][2][2]
		b22 := r.BendMatrix[0][1][1]

		force := r3.Vector{X: 1e-3 * s11, Z: 1e-3 * s33}
		couple := r3.Vector{X: 1e-3 * r.BendMatrix[0][0][0], Y: 1e-3 * b22}
		m := newBendingMuscle(n, force, couple)
		d, err := control.New(r, []muscle.Model{m}, tipPull{grad: r3.Vector{X: g}}, control.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Step()).To(Succeed())

		cs := d.Costate()
		inner := make([]float64, n-1)
		for j := range inner {
			mj := -float64(2*n-3-2*j) / 2 * g * rl
			Expect(cs.InternalCouple[j].Y).To(BeNumerically("~", mj, 1e-12))
			Expect(cs.InternalCouple[j].X).To(BeNumerically("~", 0, 1e-12))
			inner[j] = mj * couple.Y / b22
		}

		got := d.TargetActivations()[0]
		forceTerm := g * force.X / s11
		for k := 0; k < n; k++ {
			c := 0.0
			if k < n-1 {
				c += inner[k]
			}
			if k+1 < n-1 {
				c += inner[k+1]
			}
			Expect(got[k]).To(BeNumerically("~", forceTerm-0.5*c, 1e-12), "element %d", k)
		}

		// Boundary elements: the base sees the first two regions, the tip none.
		Expect(got[0]).To(BeNumerically("~", forceTerm-0.5*(inner[0]+inner[1]), 1e-12))
		Expect(got[n-2]).To(BeNumerically("~", forceTerm-0.5*inner[n-2], 1e-12))
		Expect(got[n-1]).To(BeNumerically("~", forceTerm, 1e-12))
	})

	It("leaves every activation untouched when a muscle rejects its update", func() {
		r := straightRod(n)
		f0 := 1e-3 * r.ShearMatrix[0][2][2]
		free := newAxialMuscle(n, f0)
		picky := onOffMuscle{newAxialMuscle(n, f0)}
		cfg := control.DefaultConfig()
		cfg.Stepsize = 0.1
		d, err := control.New(r, []muscle.Model{free, picky}, tipPull{grad: r3.Vector{Z: 500}}, cfg)
		Expect(err).NotTo(HaveOccurred())

		err = d.Step()
		Expect(errors.Is(err, errPartialActivation)).To(BeTrue())
		Expect(d.Iterations()).To(BeZero())
		Expect(d.TargetActivations()[1][0]).To(BeNumerically(">", 0))
		for m := range d.Activations() {
			Expect(d.Activations()[m]).To(HaveEach(0.0))
		}
		Expect(free.Activation()).To(HaveEach(0.0))
		Expect(picky.Activation()).To(HaveEach(0.0))
	})
})
