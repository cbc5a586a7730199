package control

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/san-kum/octoarm/internal/rod"
)

// Config holds the descent parameters of the forward-backward iteration.
type Config struct {
	// Stepsize is the rate η of a ← a - η(a - target).
	Stepsize float64 `yaml:"stepsize"`
	// ActivationDiffTolerance bounds the mean squared activation change of
	// one iteration below which the run has converged.
	ActivationDiffTolerance float64 `yaml:"activation_diff_tolerance"`
	MaxIterNumber           int     `yaml:"max_iter_number"`
	// Workers bounds concurrent muscle evaluation and element solves; 1 runs
	// everything on the calling goroutine.
	Workers int `yaml:"workers"`
}

func DefaultConfig() Config {
	return Config{
		Stepsize:                1e-8,
		ActivationDiffTolerance: 1e-12,
		MaxIterNumber:           100_000,
		Workers:                 1,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var err error
	if !(c.Stepsize > 0) || c.Stepsize > 1 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidConfig, "stepsize must be in (0, 1], got %g", c.Stepsize))
	}
	if !(c.ActivationDiffTolerance > 0) {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidConfig, "activation_diff_tolerance must be positive, got %g", c.ActivationDiffTolerance))
	}
	if c.MaxIterNumber <= 0 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidConfig, "max_iter_number must be positive, got %d", c.MaxIterNumber))
	}
	if c.Workers < 1 {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidConfig, "workers must be at least 1, got %d", c.Workers))
	}
	return err
}

type Status int

const (
	Initializing Status = iota
	Iterating
	Converged
	MaxIterReached
)

func (s Status) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxIterReached:
		return "max_iter_reached"
	default:
		return "unknown"
	}
}

// Iteration is the state handed to metrics and observers after each
// completed iteration. Slices are borrowed from the driver and must not be
// retained or modified.
type Iteration struct {
	Index          int
	Status         Status
	ActivationDiff float64
	Rod            *rod.StaticRod
	Activations    [][]float64
}

type Metric interface {
	Name() string
	Observe(it Iteration)
	Value() float64
	Reset()
}

type Observer interface {
	OnIteration(it Iteration)
}

// Result summarises a run. Reaching MaxIterNumber is reported through
// Status, not as an error.
type Result struct {
	Status         Status
	Iterations     int
	ActivationDiff float64
	Activations    [][]float64
	Metrics        map[string]float64
}
