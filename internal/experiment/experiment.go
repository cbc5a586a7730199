package experiment

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/octoarm/internal/config"
	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/muscle"
	"github.com/san-kum/octoarm/internal/rod"
	"github.com/san-kum/octoarm/internal/target"
)

// Experiment is one configured problem: a rest rod, its muscles, a cost
// source and the driver that iterates on them.
type Experiment struct {
	cfg    *config.Config
	rod    *rod.StaticRod
	groups []*muscle.Group
	source target.Source
	driver *control.ForwardBackward
	log    *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) (*Experiment, error) {
	return NewWithRegistry(cfg, NewRegistry(), log)
}

func NewWithRegistry(cfg *config.Config, reg *Registry, log *zap.Logger) (*Experiment, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	snap, err := rod.StraightRod(rod.StraightRodParams{
		NElements:    cfg.Rod.NElements,
		Start:        cfg.Rod.Start,
		Direction:    cfg.Rod.Direction,
		Normal:       cfg.Rod.Normal,
		BaseLength:   cfg.Rod.BaseLength,
		BaseRadius:   cfg.Rod.BaseRadius,
		TipRadius:    cfg.Rod.TipRadius,
		YoungModulus: cfg.Rod.YoungsModulus,
		ShearModulus: cfg.Rod.ShearModulus,
	})
	if err != nil {
		return nil, errors.Wrap(err, "rod snapshot")
	}
	sr, err := rod.New(snap)
	if err != nil {
		return nil, errors.Wrap(err, "static rod")
	}

	groups, err := reg.GetLayout(cfg.Muscles, sr)
	if err != nil {
		return nil, errors.Wrap(err, "muscles")
	}
	source, err := reg.GetTarget(cfg.Target, sr)
	if err != nil {
		return nil, errors.Wrap(err, "target")
	}

	models := make([]muscle.Model, len(groups))
	for i, g := range groups {
		models[i] = g
	}
	driver, err := control.New(sr, models, source, cfg.Algorithm)
	if err != nil {
		return nil, errors.Wrap(err, "driver")
	}
	driver.SetLogger(log)
	for _, m := range reg.DefaultMetrics(cfg.Target, source) {
		driver.AddMetric(m)
	}

	log.Debug("experiment ready",
		zap.Int("elements", sr.NElements),
		zap.String("layout", cfg.Muscles.Layout),
		zap.Int("muscles", len(groups)),
		zap.String("target", cfg.Target.Kind),
	)
	return &Experiment{cfg: cfg, rod: sr, groups: groups, source: source, driver: driver, log: log}, nil
}

// Run iterates the driver to termination. The result carries the value of
// every registered metric.
func (e *Experiment) Run(ctx context.Context) (*control.Result, error) {
	return e.driver.Run(ctx)
}

func (e *Experiment) Config() *config.Config           { return e.cfg }
func (e *Experiment) Rod() *rod.StaticRod              { return e.rod }
func (e *Experiment) Groups() []*muscle.Group          { return e.groups }
func (e *Experiment) Source() target.Source            { return e.source }
func (e *Experiment) Driver() *control.ForwardBackward { return e.driver }
