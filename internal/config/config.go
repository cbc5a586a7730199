package config

import (
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/target"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	DefaultElements      = 100
	DefaultBaseLength    = 0.2
	DefaultBaseRadius    = 0.012
	DefaultTipRadius     = 0.0012
	DefaultYoungsModulus = 1e4
	DefaultLogLevel      = "info"
)

// Config describes one optimal-control problem: the arm, its muscles, the
// target and the iteration parameters.
type Config struct {
	Rod       RodConfig      `yaml:"rod"`
	Muscles   MuscleConfig   `yaml:"muscles"`
	Target    TargetConfig   `yaml:"target"`
	Algorithm control.Config `yaml:"algorithm"`
	LogLevel  string         `yaml:"log_level"`
}

// RodConfig describes a straight, linearly tapered rest rod.
type RodConfig struct {
	NElements     int       `yaml:"n_elements"`
	BaseLength    float64   `yaml:"base_length"`
	BaseRadius    float64   `yaml:"base_radius"`
	TipRadius     float64   `yaml:"tip_radius"`
	YoungsModulus float64   `yaml:"youngs_modulus"`
	ShearModulus  float64   `yaml:"shear_modulus"`
	Start         r3.Vector `yaml:"start"`
	Direction     r3.Vector `yaml:"direction"`
	Normal        r3.Vector `yaml:"normal"`
}

// MuscleConfig selects a muscle layout. Positions are ratios of the local
// rod radius; stresses are peak stresses in Pa.
type MuscleConfig struct {
	Layout               string  `yaml:"layout"`
	ForceLengthWeight    string  `yaml:"force_length_weight"`
	GaussianWidth        float64 `yaml:"gaussian_width"`
	TransverseStress     float64 `yaml:"transverse_stress"`
	LongitudinalStress   float64 `yaml:"longitudinal_stress"`
	ObliqueStress        float64 `yaml:"oblique_stress"`
	LongitudinalPosition float64 `yaml:"longitudinal_position"`
	ObliquePosition      float64 `yaml:"oblique_position"`
	ObliqueRotations     float64 `yaml:"oblique_rotations"`
}

type TargetConfig struct {
	Kind     string         `yaml:"kind"`
	Position r3.Vector      `yaml:"position"`
	Weights  target.Weights `yaml:"weights"`
	// DirectorCost enables the frame-alignment terms of point and cylinder
	// targets.
	DirectorCost bool `yaml:"director_cost"`
	// AlignReach orients a point target's frame along the reach direction.
	AlignReach bool `yaml:"align_reach"`
	// Direction and Normal give the d3 and d1 axes of the frame held by a
	// director constraint.
	Direction r3.Vector      `yaml:"direction"`
	Normal    r3.Vector      `yaml:"normal"`
	Cylinder  CylinderConfig `yaml:"cylinder"`
}

type CylinderConfig struct {
	Position r3.Vector `yaml:"position"`
	Axis     r3.Vector `yaml:"axis"`
	Facing   r3.Vector `yaml:"facing"`
	Radius   float64   `yaml:"radius"`
	Length   float64   `yaml:"length"`
	// Obstacle adds a cylinder that only repels the arm next to a point
	// target.
	Obstacle bool `yaml:"obstacle"`
	// GraspOnset is the normalized arc length beyond which a cylinder
	// target attracts the arm.
	GraspOnset     float64 `yaml:"grasp_onset"`
	GraspSharpness float64 `yaml:"grasp_sharpness"`
}

func DefaultConfig() *Config {
	return &Config{
		Rod: RodConfig{
			NElements:     DefaultElements,
			BaseLength:    DefaultBaseLength,
			BaseRadius:    DefaultBaseRadius,
			TipRadius:     DefaultTipRadius,
			YoungsModulus: DefaultYoungsModulus,
			Direction:     r3.Vector{X: 1},
			Normal:        r3.Vector{Y: 1},
		},
		Muscles: MuscleConfig{
			Layout:               "octopus",
			ForceLengthWeight:    "poly",
			GaussianWidth:        0.25,
			TransverseStress:     15_000,
			LongitudinalStress:   10_000,
			ObliqueStress:        100_000,
			LongitudinalPosition: 0.625,
			ObliquePosition:      0.9375,
			ObliqueRotations:     6,
		},
		Target: TargetConfig{
			Kind:      "point",
			Position:  r3.Vector{X: 0.15, Y: 0.05},
			Weights:   target.Weights{Position: 1, Director: 1},
			Direction: r3.Vector{X: 1},
			Normal:    r3.Vector{Y: 1},
			Cylinder: CylinderConfig{
				Axis:           r3.Vector{Z: 1},
				Facing:         r3.Vector{X: 1},
				GraspOnset:     0.5,
				GraspSharpness: 10,
			},
		},
		Algorithm: control.DefaultConfig(),
		LogLevel:  DefaultLogLevel,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every out-of-range field. Layout, weight and target names
// are resolved later by the experiment registry.
func (c *Config) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, errors.Wrapf(ErrInvalidConfig, format, args...))
	}

	if c.Rod.NElements < 2 {
		invalid("rod.n_elements must be at least 2, got %d", c.Rod.NElements)
	}
	if !(c.Rod.BaseLength > 0) {
		invalid("rod.base_length must be positive, got %g", c.Rod.BaseLength)
	}
	if !(c.Rod.BaseRadius > 0) || !(c.Rod.TipRadius > 0) {
		invalid("rod radii must be positive, got %g and %g", c.Rod.BaseRadius, c.Rod.TipRadius)
	}
	if !(c.Rod.YoungsModulus > 0) {
		invalid("rod.youngs_modulus must be positive, got %g", c.Rod.YoungsModulus)
	}
	if c.Rod.ShearModulus < 0 {
		invalid("rod.shear_modulus must not be negative, got %g", c.Rod.ShearModulus)
	}
	if c.Rod.Direction.Norm() == 0 || c.Rod.Normal.Norm() == 0 {
		invalid("rod.direction and rod.normal must be non-zero")
	}
	if c.Muscles.ForceLengthWeight == "gaussian" && !(c.Muscles.GaussianWidth > 0) {
		invalid("muscles.gaussian_width must be positive, got %g", c.Muscles.GaussianWidth)
	}
	if c.Target.Weights.Position < 0 || c.Target.Weights.Director < 0 {
		invalid("target weights must not be negative")
	}
	if c.Target.Kind == "cylinder" || c.Target.Cylinder.Obstacle {
		if !(c.Target.Cylinder.Radius > 0) || !(c.Target.Cylinder.Length > 0) {
			invalid("target.cylinder radius and length must be positive")
		}
		if c.Target.Cylinder.Axis.Norm() == 0 {
			invalid("target.cylinder.axis must be non-zero")
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return multierr.Append(err, c.Algorithm.Validate())
}
