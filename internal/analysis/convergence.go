package analysis

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

var ErrShortHistory = errors.New("not enough positive activation differences")

// logFit fits ln d against the iteration index over the last window entries
// of diffs, skipping non-positive and non-finite values.
func logFit(diffs []float64, window int) (alpha, beta float64, err error) {
	if window <= 0 || window > len(diffs) {
		window = len(diffs)
	}
	start := len(diffs) - window

	xs := make([]float64, 0, window)
	ys := make([]float64, 0, window)
	for i := start; i < len(diffs); i++ {
		d := diffs[i]
		if d <= 0 || math.IsInf(d, 0) || math.IsNaN(d) {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, math.Log(d))
	}
	if len(xs) < 2 {
		return 0, 0, errors.Wrapf(ErrShortHistory, "%d usable of %d", len(xs), window)
	}
	alpha, beta = stat.LinearRegression(xs, ys, nil, false)
	return alpha, beta, nil
}

// ContractionRate estimates the factor by which the activation error shrinks
// per iteration. Values below 1 mean the iteration is converging.
func ContractionRate(diffs []float64, window int) (float64, error) {
	_, beta, err := logFit(diffs, window)
	if err != nil {
		return 0, err
	}
	return math.Exp(beta / 2), nil
}

// IterationsToTolerance extrapolates the fitted decay to the number of
// further iterations needed for the difference to fall below tol. It
// returns +Inf when the fit is not decreasing and 0 when the last difference
// is already below tol.
func IterationsToTolerance(diffs []float64, tol float64, window int) (float64, error) {
	alpha, beta, err := logFit(diffs, window)
	if err != nil {
		return 0, err
	}
	last := float64(len(diffs) - 1)
	current := alpha + beta*last
	target := math.Log(tol)
	if current <= target {
		return 0, nil
	}
	if beta >= 0 {
		return math.Inf(1), nil
	}
	return math.Ceil((target - current) / beta), nil
}
