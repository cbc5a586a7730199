package kernels

import "github.com/golang/geo/r3"

var unitZ = r3.Vector{Z: 1}

// Difference writes out[k] = v[k+1] - v[k]; len(out) must be len(v)-1.
func Difference(v, out []r3.Vector) {
	for k := range out {
		out[k] = v[k+1].Sub(v[k])
	}
}

// Average writes out[k] = (v[k] + v[k+1]) / 2; len(out) must be len(v)-1.
func Average(v, out []r3.Vector) {
	for k := range out {
		out[k] = v[k].Add(v[k+1]).Mul(0.5)
	}
}

// AverageScalar is Average for scalar fields.
func AverageScalar(v, out []float64) {
	for k := range out {
		out[k] = (v[k] + v[k+1]) / 2
	}
}

// DifferenceKernel maps an n-field onto n+1 nodes with zero ghosts at both
// ends: out[0] = v[0], out[k] = v[k] - v[k-1], out[n] = -v[n-1].
func DifferenceKernel(v, out []r3.Vector) {
	n := len(v)
	if n == 0 {
		out[0] = r3.Vector{}
		return
	}
	out[0] = v[0]
	for k := 1; k < n; k++ {
		out[k] = v[k].Sub(v[k-1])
	}
	out[n] = v[n-1].Mul(-1)
}

// QuadratureKernel maps an (n-1)-field onto n elements with zero ghosts:
// out[k] = (v[k-1] + v[k]) / 2.
func QuadratureKernel(v, out []r3.Vector) {
	n := len(out)
	for k := 0; k < n; k++ {
		var sum r3.Vector
		if k > 0 {
			sum = sum.Add(v[k-1])
		}
		if k < n-1 {
			sum = sum.Add(v[k])
		}
		out[k] = sum.Mul(0.5)
	}
}

// ShearFromSigma writes shear = (σx, σy, σz+1); an unstrained element has unit
// stretch along its local tangent axis.
func ShearFromSigma(sigma, shear []r3.Vector) {
	for k := range sigma {
		shear[k] = sigma[k].Add(unitZ)
	}
}

// DilatationFromShear writes the per-element stretch |shear| and its Voronoi
// average.
func DilatationFromShear(shear []r3.Vector, dilatation, voronoi []float64) {
	for k := range shear {
		dilatation[k] = shear[k].Norm()
	}
	AverageScalar(dilatation, voronoi)
}

// LabToMaterial writes out[k] = D[k]·v[k].
func LabToMaterial(director []Mat3, v, out []r3.Vector) {
	for k := range out {
		out[k] = director[k].MulVec(v[k])
	}
}

// MaterialToLab writes out[k] = D[k]ᵀ·v[k].
func MaterialToLab(director []Mat3, v, out []r3.Vector) {
	for k := range out {
		out[k] = director[k].TMulVec(v[k])
	}
}

// BatchMatVec writes out[k] = m[k]·v[k].
func BatchMatVec(m []Mat3, v, out []r3.Vector) {
	for k := range out {
		out[k] = m[k].MulVec(v[k])
	}
}

// BatchCross writes out[k] = a[k] × b[k].
func BatchCross(a, b, out []r3.Vector) {
	for k := range out {
		out[k] = a[k].Cross(b[k])
	}
}

// Zero resets every vector in v.
func Zero(v []r3.Vector) {
	for k := range v {
		v[k] = r3.Vector{}
	}
}

// Clone returns a deep copy of v.
func Clone(v []r3.Vector) []r3.Vector {
	out := make([]r3.Vector, len(v))
	copy(out, v)
	return out
}
