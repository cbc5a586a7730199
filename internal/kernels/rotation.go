package kernels

import (
	"math"

	"github.com/golang/geo/r3"
)

// RotationFromVector returns exp(-[v]ₓ), the finite rotation that carries a
// director across a curvature-scaled segment v = κ·ℓ:
//
//	R = I - sin(θ)·K + (1 - cos(θ))·K²,  θ = |v|, K = [v/θ]ₓ
func RotationFromVector(v r3.Vector) Mat3 {
	theta := v.Norm()
	if theta == 0 {
		return Identity()
	}
	k := Skew(v.Mul(1 / theta))
	k2 := k.Mul(k)
	return Identity().Add(k.Scale(-math.Sin(theta))).Add(k2.Scale(1 - math.Cos(theta)))
}

// nearPi is the sin(θ) threshold below which the axis of a rotation with a
// negative cosine is recovered from its symmetric part.
const nearPi = 1e-6

// RotationLog returns ω such that q = exp([ω]ₓ), with |ω| in [0, π].
func RotationLog(q Mat3) r3.Vector {
	a := r3.Vector{
		X: q[2][1] - q[1][2],
		Y: q[0][2] - q[2][0],
		Z: q[1][0] - q[0][1],
	}
	s := a.Norm() / 2
	c := (q.Trace() - 1) / 2
	theta := math.Atan2(s, c)
	if s == 0 && c >= 0 {
		return r3.Vector{}
	}
	if s < nearPi && c < 0 {
		return piAxis(q, a).Mul(theta)
	}
	return a.Mul(theta / (2 * s))
}

// piAxis recovers the unit rotation axis of a rotation close to π from
// (q + qᵀ)/2 + I ≈ 2·u·uᵀ, using the antisymmetric part only to fix the sign.
func piAxis(q Mat3, a r3.Vector) r3.Vector {
	i := 0
	for j := 1; j < 3; j++ {
		if q[j][j] > q[i][i] {
			i = j
		}
	}
	var col [3]float64
	for j := 0; j < 3; j++ {
		col[j] = (q[i][j] + q[j][i]) / 2
	}
	col[i] += 1
	u := r3.Vector{X: col[0], Y: col[1], Z: col[2]}.Normalize()
	if u.Dot(a) < 0 {
		u = u.Mul(-1)
	}
	return u
}

// RelativeRotationLog writes out[k] = -log(D[k+1]·D[k]ᵀ), i.e. the rotation
// vector v with D[k+1] = exp(-[v]ₓ)·D[k]; len(out) must be len(director)-1.
func RelativeRotationLog(director []Mat3, out []r3.Vector) {
	for k := range out {
		out[k] = RotationLog(director[k+1].MulT(director[k])).Mul(-1)
	}
}
