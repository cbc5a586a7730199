package muscle

import "math"

// WeightFunc maps a normalized muscle length (current / rest) onto the
// fraction of peak stress the fibre can develop.
type WeightFunc func(normalizedLength float64) float64

// Unit ignores the fibre length.
func Unit(float64) float64 { return 1 }

// Gaussian returns a bell-shaped force-length curve centred at the rest length.
func Gaussian(sigma float64) WeightFunc {
	return func(l float64) float64 {
		d := (l - 1) / sigma
		return math.Exp(-0.5 * d * d)
	}
}

// DefaultGaussianWidth is the width used by the "gaussian" weight.
const DefaultGaussianWidth = 0.25

// DefaultPolyCoefficients are the ascending-power coefficients of the cubic
// force-length fit 3.06x³ - 13.64x² + 18.01x - 6.44.
var DefaultPolyCoefficients = []float64{-6.44, 18.01, -13.64, 3.06}

// Poly returns a polynomial force-length curve with ascending-power
// coefficients. Negative values and lengths beyond twice the rest length
// produce no force.
func Poly(coefficients ...float64) WeightFunc {
	c := append([]float64(nil), coefficients...)
	return func(l float64) float64 {
		if l > 2 {
			return 0
		}
		w := 0.0
		for i := len(c) - 1; i >= 0; i-- {
			w = w*l + c[i]
		}
		if w < 0 {
			return 0
		}
		return w
	}
}
