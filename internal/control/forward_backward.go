// Package control implements the forward-backward optimal-control iteration
// that searches for muscle activations steering a quasi-static rod towards a
// cost source.
//
// Each iteration solves the rod equilibrium for the current activations
// (forward), integrates the costate from tip to base (backward), and moves
// every activation towards the value that cancels its adjoint-weighted
// strain response.
package control

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/octoarm/internal/kernels"
	"github.com/san-kum/octoarm/internal/muscle"
	"github.com/san-kum/octoarm/internal/rod"
	"github.com/san-kum/octoarm/internal/target"
)

// minElementChunk is the smallest element range handed to one goroutine.
const minElementChunk = 32

// ForwardBackward owns the rod, the activations and every working buffer for
// the lifetime of a run. It is not safe for concurrent use.
type ForwardBackward struct {
	rod     *rod.StaticRod
	muscles []muscle.Model
	source  target.Source
	cfg     Config
	log     *zap.Logger

	costate  *Costate
	gradient *target.Gradient

	activations     [][]float64
	prevActivations [][]float64
	nextActivations [][]float64
	targets         [][]float64
	unit            []float64

	muscleForce  [][]r3.Vector
	muscleCouple [][]r3.Vector
	coupleInner  [][]float64
	totalForce   []r3.Vector
	totalCouple  []r3.Vector
	sigma        []r3.Vector
	kappa        []r3.Vector

	iteration int
	status    Status
	diff      float64

	metrics   []Metric
	observers []Observer
}

// New wires a driver. Activations start at zero.
func New(r *rod.StaticRod, muscles []muscle.Model, source target.Source, cfg Config) (*ForwardBackward, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errors.Wrap(ErrShape, "nil rod")
	}
	if len(muscles) == 0 {
		return nil, ErrNoMuscles
	}
	if source == nil {
		return nil, ErrNoSource
	}

	n := r.NElements
	var err error
	for _, m := range muscles {
		if m.NElements() != n {
			err = multierr.Append(err, errors.Wrapf(ErrShape, "muscle %s has %d elements, rod has %d", m.Name(), m.NElements(), n))
		}
	}
	if err != nil {
		return nil, err
	}

	d := &ForwardBackward{
		rod:         r,
		muscles:     muscles,
		source:      source,
		cfg:         cfg,
		log:         zap.NewNop(),
		costate:     NewCostate(n),
		gradient:    target.NewGradient(n),
		unit:        make([]float64, n),
		totalForce:  make([]r3.Vector, n),
		totalCouple: make([]r3.Vector, n-1),
		sigma:       make([]r3.Vector, n),
		kappa:       make([]r3.Vector, n-1),
		status:      Initializing,
		diff:        math.Inf(1),
		metrics:     make([]Metric, 0),
		observers:   make([]Observer, 0),
	}
	for k := range d.unit {
		d.unit[k] = 1
	}
	for range muscles {
		d.activations = append(d.activations, make([]float64, n))
		d.prevActivations = append(d.prevActivations, make([]float64, n))
		d.nextActivations = append(d.nextActivations, make([]float64, n))
		d.targets = append(d.targets, make([]float64, n))
		d.muscleForce = append(d.muscleForce, make([]r3.Vector, n))
		d.muscleCouple = append(d.muscleCouple, make([]r3.Vector, n-1))
		d.coupleInner = append(d.coupleInner, make([]float64, n-1))
	}
	return d, nil
}

func (d *ForwardBackward) SetLogger(l *zap.Logger) { d.log = l }
func (d *ForwardBackward) AddMetric(m Metric)      { d.metrics = append(d.metrics, m) }
func (d *ForwardBackward) AddObserver(o Observer)  { d.observers = append(d.observers, o) }

func (d *ForwardBackward) Rod() *rod.StaticRod            { return d.rod }
func (d *ForwardBackward) Muscles() []muscle.Model        { return d.muscles }
func (d *ForwardBackward) Source() target.Source          { return d.source }
func (d *ForwardBackward) Costate() *Costate              { return d.costate }
func (d *ForwardBackward) Gradient() *target.Gradient     { return d.gradient }
func (d *ForwardBackward) Config() Config                 { return d.cfg }
func (d *ForwardBackward) Status() Status                 { return d.status }
func (d *ForwardBackward) Iterations() int                { return d.iteration }
func (d *ForwardBackward) ActivationDiff() float64        { return d.diff }
func (d *ForwardBackward) Activations() [][]float64       { return d.activations }
func (d *ForwardBackward) TargetActivations() [][]float64 { return d.targets }

// SetActivations replaces the activations, one slice per muscle, clipped to
// [0, 1].
func (d *ForwardBackward) SetActivations(a [][]float64) error {
	if len(a) != len(d.activations) {
		return errors.Wrapf(ErrShape, "got %d activation arrays, want %d", len(a), len(d.activations))
	}
	for m := range a {
		if len(a[m]) != len(d.activations[m]) {
			return errors.Wrapf(ErrShape, "muscle %s: got %d activations, want %d", d.muscles[m].Name(), len(a[m]), len(d.activations[m]))
		}
	}
	for m := range a {
		for k, v := range a[m] {
			d.activations[m][k] = clip(v)
		}
	}
	return nil
}

// Run iterates until the activations converge, MaxIterNumber iterations
// have been completed in total, or ctx is cancelled. Cancellation is only
// observed between iterations.
func (d *ForwardBackward) Run(ctx context.Context) (*Result, error) {
	for _, m := range d.metrics {
		m.Reset()
	}
	d.log.Info("starting forward-backward iteration",
		zap.Int("muscles", len(d.muscles)),
		zap.Int("elements", d.rod.NElements),
		zap.Float64("stepsize", d.cfg.Stepsize),
		zap.Float64("tolerance", d.cfg.ActivationDiffTolerance),
	)

	for d.status != Converged && d.iteration < d.cfg.MaxIterNumber {
		select {
		case <-ctx.Done():
			return d.result(), ctx.Err()
		default:
		}
		if err := d.Step(); err != nil {
			return d.result(), err
		}
	}
	if d.status != Converged {
		d.status = MaxIterReached
	}

	d.log.Info("forward-backward iteration finished",
		zap.Stringer("status", d.status),
		zap.Int("iterations", d.iteration),
		zap.Float64("activation_diff", d.diff),
	)
	return d.result(), nil
}

func (d *ForwardBackward) result() *Result {
	res := &Result{
		Status:         d.status,
		Iterations:     d.iteration,
		ActivationDiff: d.diff,
		Activations:    make([][]float64, len(d.activations)),
		Metrics:        make(map[string]float64),
	}
	for m, a := range d.activations {
		res.Activations[m] = append([]float64(nil), a...)
	}
	for _, m := range d.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	return res
}

// Step performs one complete iteration. On error the rod may hold a
// partially updated pose; the activations, and those held by the muscles,
// are left unchanged.
func (d *ForwardBackward) Step() error {
	for m := range d.activations {
		copy(d.prevActivations[m], d.activations[m])
	}

	if err := d.accumulateMuscleLoads(); err != nil {
		return errors.Wrap(err, "muscle loads")
	}
	if err := d.findEquilibriumStrain(); err != nil {
		return err
	}
	if err := d.rod.UpdateFromStrain(d.sigma, d.kappa); err != nil {
		return errors.Wrap(err, "forward pass")
	}
	if err := d.source.Gradient(target.PoseOf(d.rod), d.gradient); err != nil {
		return errors.Wrap(err, "cost gradient")
	}

	d.costate.Reset()
	d.costate.SetBoundary(d.gradient)
	d.costate.BackwardEvolution(d.rod)

	if err := d.findTargetActivations(); err != nil {
		return multierr.Append(errors.Wrap(err, "target activation"), d.restoreMuscles())
	}
	if err := d.updateActivations(); err != nil {
		return multierr.Append(errors.Wrap(err, "activation update"), d.restoreMuscles())
	}

	d.iteration++
	d.diff = d.activationDiff()
	d.status = Iterating
	if d.diff < d.cfg.ActivationDiffTolerance {
		d.status = Converged
	}

	d.log.Debug("iteration",
		zap.Int("iteration", d.iteration),
		zap.Float64("activation_diff", d.diff),
	)
	it := Iteration{
		Index:          d.iteration,
		Status:         d.status,
		ActivationDiff: d.diff,
		Rod:            d.rod,
		Activations:    d.activations,
	}
	for _, m := range d.metrics {
		m.Observe(it)
	}
	for _, o := range d.observers {
		o.OnIteration(it)
	}
	return nil
}

// forEachMuscle runs fn for every muscle index, concurrently when more than
// one worker is configured. Each muscle is only touched by one goroutine.
func (d *ForwardBackward) forEachMuscle(fn func(m int) error) error {
	if d.cfg.Workers <= 1 {
		for m := range d.muscles {
			if err := fn(m); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for m := range d.muscles {
		g.Go(func() error { return fn(m) })
	}
	return g.Wait()
}

func (d *ForwardBackward) accumulateMuscleLoads() error {
	err := d.forEachMuscle(func(m int) error {
		mus := d.muscles[m]
		if err := mus.ApplyActivation(d.activations[m]); err != nil {
			return err
		}
		return mus.Evaluate(d.rod, d.muscleForce[m], d.muscleCouple[m])
	})
	if err != nil {
		return err
	}

	// Summed in muscle order so the result does not depend on scheduling.
	kernels.Zero(d.totalForce)
	kernels.Zero(d.totalCouple)
	for m := range d.muscles {
		for k, f := range d.muscleForce[m] {
			d.totalForce[k] = d.totalForce[k].Add(f)
		}
		for k, c := range d.muscleCouple[m] {
			d.totalCouple[k] = d.totalCouple[k].Add(c)
		}
	}
	return nil
}

// findEquilibriumStrain balances the muscle loads with the elastic response
// element by element:
//
//	κ = -(B/εᵥ³)⁻¹·C = -εᵥ³·B⁻¹·C
//	σ = -(S/ε)⁻¹·F   = -ε·S⁻¹·F
func (d *ForwardBackward) findEquilibriumStrain() error {
	r := d.rod
	kernels.ParallelFor(r.NElements, minElementChunk, d.cfg.Workers, func(start, end int) {
		for k := start; k < end; k++ {
			d.sigma[k] = r.ShearInverse[k].MulVec(d.totalForce[k]).Mul(-r.Dilatation[k])
			if k < len(d.kappa) {
				v := r.VoronoiDilatation[k]
				d.kappa[k] = r.BendInverse[k].MulVec(d.totalCouple[k]).Mul(-v * v * v)
			}
		}
	})

	for k, s := range d.sigma {
		if !finite(s) {
			return &rod.ElementError{Element: k, Op: "equilibrium shear strain", Wrapped: ErrNonFinite}
		}
	}
	for k, c := range d.kappa {
		if !finite(c) {
			return &rod.ElementError{Element: k, Op: "equilibrium curvature", Wrapped: ErrNonFinite}
		}
	}
	return nil
}

// findTargetActivations evaluates every muscle alone at full activation and
// projects its unit strain response onto the costate:
//
//	target[k] = -⟨n[k], σ̂[k]⟩ - ½(⟨m[k], κ̂[k]⟩ + ⟨m[k+1], κ̂[k+1]⟩)
//
// with couple terms outside [0, n-2] taken as zero.
func (d *ForwardBackward) findTargetActivations() error {
	r := d.rod
	n := r.NElements
	cs := d.costate

	return d.forEachMuscle(func(m int) error {
		mus := d.muscles[m]
		if err := mus.ApplyActivation(d.unit); err != nil {
			return err
		}
		force, couple := d.muscleForce[m], d.muscleCouple[m]
		if err := mus.Evaluate(r, force, couple); err != nil {
			return err
		}

		inner := d.coupleInner[m]
		for j := range inner {
			v := r.VoronoiDilatation[j]
			kr := r.BendInverse[j].MulVec(couple[j]).Mul(v * v * v)
			inner[j] = cs.InternalCouple[j].Dot(kr)
		}

		t := d.targets[m]
		for k := 0; k < n; k++ {
			sr := r.ShearInverse[k].MulVec(force[k]).Mul(r.Dilatation[k])
			c := 0.0
			if k < n-1 {
				c += inner[k]
			}
			if k+1 < n-1 {
				c += inner[k+1]
			}
			t[k] = -cs.InternalForce[k].Dot(sr) - 0.5*c
			if math.IsNaN(t[k]) || math.IsInf(t[k], 0) {
				return &rod.ElementError{Element: k, Op: mus.Name(), Wrapped: ErrNonFinite}
			}
		}
		return nil
	})
}

// updateActivations applies a ← clip(a - η(a - target)). The new values are
// staged and handed to every muscle before the driver's activations change.
func (d *ForwardBackward) updateActivations() error {
	eta := d.cfg.Stepsize
	for m, a := range d.activations {
		next, t := d.nextActivations[m], d.targets[m]
		for k := range a {
			next[k] = clip(a[k] - eta*(a[k]-t[k]))
		}
		if err := d.muscles[m].ApplyActivation(next); err != nil {
			return err
		}
	}
	for m, a := range d.activations {
		copy(a, d.nextActivations[m])
	}
	return nil
}

// restoreMuscles hands every muscle the driver's activations again.
func (d *ForwardBackward) restoreMuscles() error {
	var err error
	for m, a := range d.activations {
		err = multierr.Append(err, d.muscles[m].ApplyActivation(a))
	}
	return err
}

// activationDiff is the per-element mean squared change, averaged over
// muscles.
func (d *ForwardBackward) activationDiff() float64 {
	total := 0.0
	for m, a := range d.activations {
		dist := floats.Distance(a, d.prevActivations[m], 2)
		total += dist * dist / float64(len(a))
	}
	return total / float64(len(d.activations))
}

func clip(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

func finite(v r3.Vector) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
