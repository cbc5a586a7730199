package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/octoarm/internal/config"
	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/experiment"
)

func builder(t *testing.T) func(map[string]float64) (*experiment.Experiment, error) {
	t.Helper()
	base := config.GetPreset("straight")
	base.Algorithm.MaxIterNumber = 20
	return func(params map[string]float64) (*experiment.Experiment, error) {
		cfg, err := Apply(base, params)
		if err != nil {
			return nil, err
		}
		return experiment.New(cfg, nil)
	}
}

func TestGridSearch(t *testing.T) {
	g := NewGridSearch([]string{"stepsize"}, [][]float64{{1e-6, 1e-4, 1e-2}})
	best, val, err := g.Search(context.Background(), builder(t), "control_effort")
	if err != nil {
		t.Fatal(err)
	}
	// Activations start at zero and grow with the stepsize.
	if best["stepsize"] != 1e-6 {
		t.Errorf("expected smallest stepsize to minimise effort, got %v", best)
	}
	if val < 0 {
		t.Errorf("expected non-negative effort, got %f", val)
	}
}

func TestGridSearch_EnumeratesProduct(t *testing.T) {
	build := builder(t)
	seen := make(map[[2]float64]int)
	counting := func(params map[string]float64) (*experiment.Experiment, error) {
		seen[[2]float64{params["stepsize"], params["max_iter_number"]}]++
		return build(params)
	}

	g := NewGridSearch(
		[]string{"stepsize", "max_iter_number"},
		[][]float64{{1e-6, 1e-4}, {2, 3, 4}},
	)
	if _, _, err := g.Search(context.Background(), counting, "control_effort"); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 6 {
		t.Fatalf("expected 6 combinations, got %d: %v", len(seen), seen)
	}
	for k, n := range seen {
		if n != 1 {
			t.Errorf("combination %v built %d times", k, n)
		}
	}
}

func TestGridSearch_EmptyRange(t *testing.T) {
	g := NewGridSearch([]string{"stepsize"}, [][]float64{{}})
	if _, _, err := g.Search(context.Background(), builder(t), "tip_distance"); err == nil {
		t.Error("expected error for an empty range")
	}
}

func TestGridSearch_SkipsFailures(t *testing.T) {
	g := NewGridSearch([]string{"stepsize"}, [][]float64{{-1, 1e-6}})
	best, _, err := g.Search(context.Background(), builder(t), "tip_distance")
	if err != nil {
		t.Fatal(err)
	}
	if best["stepsize"] != 1e-6 {
		t.Errorf("expected the valid stepsize, got %v", best)
	}
}

func TestGridSearch_NoResult(t *testing.T) {
	g := NewGridSearch([]string{"stepsize"}, [][]float64{{-1, 2}})
	_, _, err := g.Search(context.Background(), builder(t), "tip_distance")
	if !errors.Is(err, ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}
	if !errors.Is(err, control.ErrInvalidConfig) {
		t.Errorf("expected the build failures to be reported, got %v", err)
	}
}

func TestGridSearch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewGridSearch([]string{"stepsize"}, [][]float64{{1e-6}})
	if _, _, err := g.Search(ctx, builder(t), "tip_distance"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestApply(t *testing.T) {
	base := config.DefaultConfig()
	cfg, err := Apply(base, map[string]float64{"stepsize": 0.5, "max_iter_number": 7})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Algorithm.Stepsize != 0.5 || cfg.Algorithm.MaxIterNumber != 7 {
		t.Errorf("parameters not applied: %+v", cfg.Algorithm)
	}
	if base.Algorithm.Stepsize == 0.5 {
		t.Error("Apply modified its input")
	}
	if _, err := Apply(base, map[string]float64{"gravity": 1}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
