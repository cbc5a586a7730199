package metrics

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/rod"
	"github.com/san-kum/octoarm/internal/target"
)

func straightRod(t *testing.T, n int) *rod.StaticRod {
	t.Helper()
	snap, err := rod.StraightRod(rod.StraightRodParams{
		NElements:    n,
		Direction:    r3.Vector{Z: 1},
		Normal:       r3.Vector{X: 1},
		BaseLength:   1,
		BaseRadius:   0.01,
		TipRadius:    0.01,
		YoungModulus: 1e4,
	})
	if err != nil {
		t.Fatal(err)
	}
	r, err := rod.New(snap)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestControlEffort(t *testing.T) {
	m := NewControlEffort()
	if m.Value() != 0 {
		t.Errorf("expected zero effort before observing, got %f", m.Value())
	}

	m.Observe(control.Iteration{Activations: [][]float64{{0, 1}, {0.5, 0.5}}})
	if math.Abs(m.Value()-0.5) > 1e-12 {
		t.Errorf("expected effort 0.5, got %f", m.Value())
	}

	m.Observe(control.Iteration{Activations: [][]float64{{1, 1}, {1, 1}}})
	if math.Abs(m.Value()-0.75) > 1e-12 {
		t.Errorf("expected running mean 0.75, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero effort after reset")
	}
}

func TestElasticEnergy(t *testing.T) {
	r := straightRod(t, 8)
	m := NewElasticEnergy()

	m.Observe(control.Iteration{Rod: r})
	if m.Value() != 0 {
		t.Errorf("expected zero energy at rest, got %g", m.Value())
	}

	sigma := make([]r3.Vector, 8)
	kappa := make([]r3.Vector, 7)
	for k := range sigma {
		sigma[k] = r3.Vector{Z: 0.01}
	}
	if err := r.UpdateFromStrain(sigma, kappa); err != nil {
		t.Fatal(err)
	}
	m.Observe(control.Iteration{Rod: r})

	expected := 0.0
	for k := range sigma {
		expected += 0.5 * 1e-4 * r.ShearMatrix[k][2][2] * r.RestLength[k]
	}
	if math.Abs(m.Value()-expected) > 1e-12*expected {
		t.Errorf("expected energy %g, got %g", expected, m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestStability(t *testing.T) {
	m := NewStability(1.0)
	for _, d := range []float64{1, 0.5, 0.25, 0.5, 0.1} {
		m.Observe(control.Iteration{ActivationDiff: d})
	}
	if math.Abs(m.Value()-0.75) > 1e-12 {
		t.Errorf("expected stability 0.75, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 1.0 {
		t.Errorf("expected stability 1 after reset, got %f", m.Value())
	}
}

func TestTipDistance(t *testing.T) {
	r := straightRod(t, 4)
	m := NewTipDistance(r3.Vector{X: 3, Z: 1})
	m.Observe(control.Iteration{Rod: r})
	if math.Abs(m.Value()-3) > 1e-12 {
		t.Errorf("expected tip distance 3, got %f", m.Value())
	}
}

func TestCost(t *testing.T) {
	r := straightRod(t, 4)
	src := target.NewPointTarget(r3.Vector{X: 1, Z: 0.875}, target.Weights{Position: 2})
	m := NewCost(src, nil)
	m.Observe(control.Iteration{Rod: r})
	if math.Abs(m.Value()-1) > 1e-12 {
		t.Errorf("expected cost 1, got %f", m.Value())
	}
}

func TestActivationDiff(t *testing.T) {
	m := NewActivationDiff()
	m.Observe(control.Iteration{ActivationDiff: 0.3})
	m.Observe(control.Iteration{ActivationDiff: 0.1})
	if m.Value() != 0.1 {
		t.Errorf("expected latest diff 0.1, got %f", m.Value())
	}
	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero after reset")
	}
}
