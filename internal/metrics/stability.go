package metrics

import (
	"github.com/san-kum/octoarm/internal/control"
)

// Stability is the fraction of iterations whose activation change did not
// grow past threshold times the previous one. A descent that oscillates
// scores below 1.
type Stability struct {
	name       string
	threshold  float64
	previous   float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(it control.Iteration) {
	if s.samples > 0 && it.ActivationDiff > s.threshold*s.previous {
		s.violations++
	}
	s.previous = it.ActivationDiff
	s.samples++
}

func (s *Stability) Value() float64 {
	if s.samples < 2 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples-1)
}

func (s *Stability) Reset() {
	s.previous = 0
	s.violations = 0
	s.samples = 0
}

// ActivationDiff reports the activation change of the latest iteration.
type ActivationDiff struct {
	name string
	diff float64
}

func NewActivationDiff() *ActivationDiff {
	return &ActivationDiff{name: "activation_diff"}
}

func (a *ActivationDiff) Name() string                 { return a.name }
func (a *ActivationDiff) Observe(it control.Iteration) { a.diff = it.ActivationDiff }
func (a *ActivationDiff) Value() float64               { return a.diff }
func (a *ActivationDiff) Reset()                       { a.diff = 0 }
