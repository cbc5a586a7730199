package metrics

import (
	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/target"
)

// TipDistance is the distance from the rod tip to a fixed point after the
// latest iteration.
type TipDistance struct {
	name     string
	point    r3.Vector
	distance float64
}

func NewTipDistance(point r3.Vector) *TipDistance {
	return &TipDistance{name: "tip_distance", point: point}
}

func (d *TipDistance) Name() string { return d.name }

func (d *TipDistance) Observe(it control.Iteration) {
	if it.Rod == nil {
		return
	}
	d.distance = it.Rod.Tip().Sub(d.point).Norm()
}

func (d *TipDistance) Value() float64 { return d.distance }
func (d *TipDistance) Reset()         { d.distance = 0 }

// Cost tracks the value of a cost source on the latest pose. Evaluation
// errors are logged and leave the value unchanged.
type Cost struct {
	name   string
	source target.Coster
	log    *zap.Logger
	cost   float64
}

func NewCost(source target.Coster, log *zap.Logger) *Cost {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cost{name: "cost", source: source, log: log}
}

func (c *Cost) Name() string { return c.name }

func (c *Cost) Observe(it control.Iteration) {
	if it.Rod == nil {
		return
	}
	v, err := c.source.Cost(target.PoseOf(it.Rod))
	if err != nil {
		c.log.Warn("cost evaluation failed", zap.Int("iteration", it.Index), zap.Error(err))
		return
	}
	c.cost = v
}

func (c *Cost) Value() float64 { return c.cost }
func (c *Cost) Reset()         { c.cost = 0 }
