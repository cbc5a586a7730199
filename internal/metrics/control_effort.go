package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/octoarm/internal/control"
)

// ControlEffort is the mean activation over every muscle and element,
// averaged over the observed iterations.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(it control.Iteration) {
	total, count := 0.0, 0
	for _, a := range it.Activations {
		total += floats.Sum(a)
		count += len(a)
	}
	if count == 0 {
		return
	}
	c.sum += total / float64(count)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
