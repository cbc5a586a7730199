package config

import (
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"

	"github.com/san-kum/octoarm/internal/control"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Rod.NElements != DefaultElements {
		t.Errorf("expected %d elements, got %d", DefaultElements, cfg.Rod.NElements)
	}
	if cfg.Algorithm != control.DefaultConfig() {
		t.Errorf("expected default algorithm parameters, got %+v", cfg.Algorithm)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range ListPresets() {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("straight")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Rod.NElements != 10 {
		t.Errorf("expected 10 elements, got %d", cfg.Rod.NElements)
	}
	if cfg.Algorithm.Stepsize != 1e-6 || cfg.Algorithm.ActivationDiffTolerance != 1e-10 {
		t.Errorf("unexpected algorithm parameters %+v", cfg.Algorithm)
	}

	cfg.Rod.NElements = 3
	if GetPreset("straight").Rod.NElements != 10 {
		t.Error("modifying a returned preset changed the registry")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	expected := []string{"grasp", "reach", "straight"}
	if len(presets) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, presets)
	}
	for i := range expected {
		if presets[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, presets)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arm.yaml")
	cfg := GetPreset("grasp")
	cfg.LogLevel = "debug"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip changed config:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errors int
	}{
		{"valid", func(*Config) {}, 0},
		{"one element", func(c *Config) { c.Rod.NElements = 1 }, 1},
		{"zero radius", func(c *Config) { c.Rod.TipRadius = 0 }, 1},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, 1},
		{"cylinder without size", func(c *Config) { c.Target.Kind = "cylinder" }, 1},
		{"gaussian without width", func(c *Config) {
			c.Muscles.ForceLengthWeight = "gaussian"
			c.Muscles.GaussianWidth = 0
		}, 1},
		{"several", func(c *Config) {
			c.Rod.YoungsModulus = -1
			c.Algorithm.Stepsize = 2
			c.Algorithm.Workers = 0
		}, 3},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.modify(cfg)
		err := cfg.Validate()
		if got := len(multierr.Errors(err)); got != tt.errors {
			t.Errorf("%s: expected %d errors, got %d (%v)", tt.name, tt.errors, got, err)
		}
		if tt.errors > 0 && !errors.Is(err, ErrInvalidConfig) && !errors.Is(err, control.ErrInvalidConfig) {
			t.Errorf("%s: expected an invalid config error, got %v", tt.name, err)
		}
	}
}
