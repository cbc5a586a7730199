package config

import (
	"sort"

	"github.com/golang/geo/r3"

	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/target"
)

var Presets = map[string]*Config{
	"reach": DefaultConfig(),
	"straight": {
		Rod: RodConfig{
			NElements: 10, BaseLength: 1, BaseRadius: 0.001, TipRadius: 0.001, YoungsModulus: 1,
			Direction: r3.Vector{Z: 1}, Normal: r3.Vector{X: 1},
		},
		Muscles: MuscleConfig{
			Layout: "longitudinal", ForceLengthWeight: "unit",
			TransverseStress: 1, LongitudinalStress: 1, ObliqueStress: 1,
			LongitudinalPosition: 0.625, ObliquePosition: 0.9375, ObliqueRotations: 6,
		},
		Target: TargetConfig{
			Kind: "point", Position: r3.Vector{X: 0.05, Z: 1}, Weights: target.Weights{Position: 1},
		},
		Algorithm: control.Config{Stepsize: 1e-6, ActivationDiffTolerance: 1e-10, MaxIterNumber: 100_000, Workers: 1},
		LogLevel:  DefaultLogLevel,
	},
	"grasp": {
		Rod: RodConfig{
			NElements: DefaultElements, BaseLength: DefaultBaseLength, BaseRadius: DefaultBaseRadius,
			TipRadius: DefaultTipRadius, YoungsModulus: DefaultYoungsModulus,
			Direction: r3.Vector{X: 1}, Normal: r3.Vector{Y: 1},
		},
		Muscles: MuscleConfig{
			Layout: "octopus", ForceLengthWeight: "poly",
			TransverseStress: 15_000, LongitudinalStress: 10_000, ObliqueStress: 100_000,
			LongitudinalPosition: 0.625, ObliquePosition: 0.9375, ObliqueRotations: 6,
		},
		Target: TargetConfig{
			Kind: "cylinder", Weights: target.Weights{Position: 10, Director: 1}, DirectorCost: true,
			Cylinder: CylinderConfig{
				Position: r3.Vector{X: 0.12, Y: 0.04}, Axis: r3.Vector{Z: 1}, Facing: r3.Vector{Y: -1},
				Radius: 0.02, Length: 0.2, GraspOnset: 0.5, GraspSharpness: 10,
			},
		},
		Algorithm: control.Config{Stepsize: 1e-8, ActivationDiffTolerance: 1e-12, MaxIterNumber: 100_000, Workers: 4},
		LogLevel:  DefaultLogLevel,
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
