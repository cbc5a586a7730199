package experiment

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/san-kum/octoarm/internal/config"
	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/kernels"
	"github.com/san-kum/octoarm/internal/metrics"
	"github.com/san-kum/octoarm/internal/muscle"
	"github.com/san-kum/octoarm/internal/rod"
	"github.com/san-kum/octoarm/internal/target"
)

var ErrUnknown = errors.New("unknown name")

type (
	weightFactory func(config.MuscleConfig) muscle.WeightFunc
	layoutFactory func(*rod.StaticRod, muscle.LayoutParams) ([]*muscle.Group, error)
	targetFactory func(config.TargetConfig, *rod.StaticRod) (target.Source, error)
)

type Registry struct {
	weights map[string]weightFactory
	layouts map[string]layoutFactory
	targets map[string]targetFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		weights: make(map[string]weightFactory),
		layouts: make(map[string]layoutFactory),
		targets: make(map[string]targetFactory),
	}

	r.weights["unit"] = func(config.MuscleConfig) muscle.WeightFunc { return muscle.Unit }
	r.weights["gaussian"] = func(c config.MuscleConfig) muscle.WeightFunc { return muscle.Gaussian(c.GaussianWidth) }
	r.weights["poly"] = func(config.MuscleConfig) muscle.WeightFunc { return muscle.Poly(muscle.DefaultPolyCoefficients...) }

	r.layouts["octopus"] = muscle.OctopusLayout
	r.layouts["longitudinal"] = muscle.LongitudinalLayout
	r.layouts["single"] = muscle.SingleLayout

	r.targets["point"] = pointTarget
	r.targets["cylinder"] = cylinderTarget
	r.targets["director"] = directorTarget

	return r
}

func (r *Registry) GetWeight(c config.MuscleConfig) (muscle.WeightFunc, error) {
	fn, ok := r.weights[c.ForceLengthWeight]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "force-length weight %q", c.ForceLengthWeight)
	}
	return fn(c), nil
}

// GetLayout builds the named muscle layout on r. Fibre rest lengths are
// taken from the current pose of r.
func (r *Registry) GetLayout(c config.MuscleConfig, sr *rod.StaticRod) ([]*muscle.Group, error) {
	fn, ok := r.layouts[c.Layout]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "muscle layout %q", c.Layout)
	}
	w, err := r.GetWeight(c)
	if err != nil {
		return nil, err
	}
	p := muscle.DefaultLayoutParams()
	p.Weight = w
	p.TransverseStress = c.TransverseStress
	p.LongitudinalStress = c.LongitudinalStress
	p.ObliqueStress = c.ObliqueStress
	p.LongitudinalPosition = c.LongitudinalPosition
	p.ObliquePosition = c.ObliquePosition
	p.ObliqueRotations = c.ObliqueRotations
	return fn(sr, p)
}

func (r *Registry) GetTarget(c config.TargetConfig, sr *rod.StaticRod) (target.Source, error) {
	fn, ok := r.targets[c.Kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "target %q", c.Kind)
	}
	return fn(c, sr)
}

func (r *Registry) ListWeights() []string { return sortedKeys(r.weights) }
func (r *Registry) ListLayouts() []string { return sortedKeys(r.layouts) }
func (r *Registry) ListTargets() []string { return sortedKeys(r.targets) }

// DefaultMetrics observes the distance of the tip to the target point, the
// cost when the source can report it, and the convergence of the
// activations.
func (r *Registry) DefaultMetrics(c config.TargetConfig, source target.Source) []control.Metric {
	point := c.Position
	if c.Kind == "cylinder" {
		point = c.Cylinder.Position
	}
	ms := []control.Metric{
		metrics.NewTipDistance(point),
		metrics.NewControlEffort(),
		metrics.NewActivationDiff(),
		metrics.NewElasticEnergy(),
		metrics.NewStability(1.0),
	}
	if coster, ok := source.(target.Coster); ok {
		ms = append(ms, metrics.NewCost(coster, nil))
	}
	return ms
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// frame returns the orthonormal director with d3 along axis and d1 along the
// part of normal perpendicular to it.
func frame(axis, normal r3.Vector) (kernels.Mat3, error) {
	if axis.Norm() == 0 {
		return kernels.Mat3{}, errors.New("zero frame axis")
	}
	d3 := axis.Normalize()
	d1 := normal.Sub(d3.Mul(normal.Dot(d3)))
	if d1.Norm() == 0 {
		return kernels.Mat3{}, errors.Errorf("frame normal %v is parallel to axis %v", normal, axis)
	}
	d1 = d1.Normalize()
	return kernels.FromRows(d1, d3.Cross(d1), d3), nil
}

func obstacle(c config.CylinderConfig, w target.Weights) (*target.Cylinder, error) {
	facing := c.Facing
	if facing.Norm() == 0 {
		facing = c.Axis.Ortho()
	}
	d, err := frame(c.Axis, facing)
	if err != nil {
		return nil, errors.Wrap(err, "cylinder")
	}
	return &target.Cylinder{Position: c.Position, Director: d, Radius: c.Radius, Length: c.Length, Weight: w}, nil
}

func pointTarget(c config.TargetConfig, sr *rod.StaticRod) (target.Source, error) {
	t := target.NewPointTarget(c.Position, c.Weights)
	t.DirectorCost = c.DirectorCost
	if c.AlignReach {
		t.AlignReachDirector(sr.Position[0], sr.Tip())
	}
	if !c.Cylinder.Obstacle {
		return t, nil
	}
	cyl, err := obstacle(c.Cylinder, c.Weights)
	if err != nil {
		return nil, err
	}
	return target.NewObjects(t, cyl), nil
}

func cylinderTarget(c config.TargetConfig, sr *rod.StaticRod) (target.Source, error) {
	cyl, err := obstacle(c.Cylinder, c.Weights)
	if err != nil {
		return nil, err
	}
	n := sr.NElements
	return &target.CylinderTarget{
		Cylinder:       *cyl,
		PositionWeight: target.TanhProfile(n, c.Weights.Position, c.Cylinder.GraspOnset, c.Cylinder.GraspSharpness),
		DirectorWeight: target.TanhProfile(n, c.Weights.Director, c.Cylinder.GraspOnset, c.Cylinder.GraspSharpness),
		DirectorCost:   c.DirectorCost,
	}, nil
}

func directorTarget(c config.TargetConfig, sr *rod.StaticRod) (target.Source, error) {
	d, err := frame(c.Direction, c.Normal)
	if err != nil {
		return nil, errors.Wrap(err, "director target")
	}
	return target.UniformDirectorConstraint(sr.NElements, d, c.Weights.Director), nil
}
