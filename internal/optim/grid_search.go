package optim

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/san-kum/octoarm/internal/config"
	"github.com/san-kum/octoarm/internal/experiment"
)

var ErrNoResult = errors.New("no parameter combination completed")

// GridSearch runs one experiment per combination of parameter values and
// keeps the combination with the lowest metric value.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Search returns the best combination and its metric value. Combinations
// that fail to build or run are skipped; their errors are returned only when
// no combination completed.
func (g *GridSearch) Search(
	ctx context.Context,
	build func(params map[string]float64) (*experiment.Experiment, error),
	metric string,
) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, errors.Errorf("%d parameter names for %d ranges", len(g.paramNames), len(g.ranges))
	}
	for i, r := range g.ranges {
		if len(r) == 0 {
			return nil, 0, errors.Errorf("parameter %q has no values", g.paramNames[i])
		}
	}

	var (
		best     = math.Inf(1)
		winner   map[string]float64
		failures error
	)
	// idx is an odometer over the ranges, last parameter fastest.
	idx := make([]int, len(g.ranges))
	for {
		if err := ctx.Err(); err != nil {
			return winner, best, err
		}

		point := g.point(idx)
		v, err := g.evaluate(ctx, point, build, metric)
		switch {
		case ctx.Err() != nil:
			return winner, best, ctx.Err()
		case err != nil:
			failures = multierr.Append(failures, err)
		case v < best:
			best, winner = v, point
		}

		if !g.advance(idx) {
			break
		}
	}

	if winner == nil {
		return nil, best, multierr.Append(ErrNoResult, failures)
	}
	return winner, best, nil
}

func (g *GridSearch) point(idx []int) map[string]float64 {
	p := make(map[string]float64, len(idx))
	for i, j := range idx {
		p[g.paramNames[i]] = g.ranges[i][j]
	}
	return p
}

func (g *GridSearch) advance(idx []int) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < len(g.ranges[i]) {
			return true
		}
		idx[i] = 0
	}
	return false
}

func (g *GridSearch) evaluate(
	ctx context.Context,
	point map[string]float64,
	build func(map[string]float64) (*experiment.Experiment, error),
	metric string,
) (float64, error) {
	exp, err := build(point)
	if err != nil {
		return 0, errors.Wrapf(err, "build %v", point)
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "run %v", point)
	}
	v, ok := result.Metrics[metric]
	if !ok {
		return 0, errors.Errorf("run %v: no metric %q", point, metric)
	}
	return v, nil
}

// Apply returns a copy of cfg with the named algorithm parameters replaced.
func Apply(cfg *config.Config, params map[string]float64) (*config.Config, error) {
	c := *cfg
	for name, v := range params {
		switch name {
		case "stepsize":
			c.Algorithm.Stepsize = v
		case "activation_diff_tolerance":
			c.Algorithm.ActivationDiffTolerance = v
		case "max_iter_number":
			c.Algorithm.MaxIterNumber = int(v)
		case "workers":
			c.Algorithm.Workers = int(v)
		default:
			return nil, errors.Errorf("unknown parameter %q", name)
		}
	}
	return &c, nil
}
