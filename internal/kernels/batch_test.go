package kernels

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/golang/geo/r3"
)

func TestDifferenceAverage(t *testing.T) {
	v := []r3.Vector{{X: 0}, {X: 1, Y: 2}, {X: 3, Y: 2, Z: 1}}
	diff := make([]r3.Vector, 2)
	avg := make([]r3.Vector, 2)

	Difference(v, diff)
	Average(v, avg)

	if diff[0] != (r3.Vector{X: 1, Y: 2}) || diff[1] != (r3.Vector{X: 2, Z: 1}) {
		t.Errorf("Difference = %v", diff)
	}
	if avg[0] != (r3.Vector{X: 0.5, Y: 1}) || avg[1] != (r3.Vector{X: 2, Y: 2, Z: 0.5}) {
		t.Errorf("Average = %v", avg)
	}
}

func TestGhostKernels(t *testing.T) {
	v := []r3.Vector{{X: 1}, {X: 3}, {X: 6}}

	nodes := make([]r3.Vector, 4)
	DifferenceKernel(v, nodes)
	want := []float64{1, 2, 3, -6}
	for i, w := range want {
		if nodes[i].X != w {
			t.Errorf("DifferenceKernel[%d] = %v, want %v", i, nodes[i].X, w)
		}
	}

	elems := make([]r3.Vector, 4)
	QuadratureKernel(v, elems)
	want = []float64{0.5, 2, 4.5, 3}
	for i, w := range want {
		if elems[i].X != w {
			t.Errorf("QuadratureKernel[%d] = %v, want %v", i, elems[i].X, w)
		}
	}
}

func TestDilatationFromShear(t *testing.T) {
	sigma := []r3.Vector{{}, {Z: 1}, {X: 3, Z: 3}}
	shear := make([]r3.Vector, 3)
	ShearFromSigma(sigma, shear)

	dil := make([]float64, 3)
	vdil := make([]float64, 2)
	DilatationFromShear(shear, dil, vdil)

	wantDil := []float64{1, 2, 5}
	for i, w := range wantDil {
		if math.Abs(dil[i]-w) > 1e-15 {
			t.Errorf("dilatation[%d] = %v, want %v", i, dil[i], w)
		}
	}
	if vdil[0] != 1.5 || vdil[1] != 3.5 {
		t.Errorf("voronoi dilatation = %v", vdil)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	director := []Mat3{
		RotationFromVector(r3.Vector{X: 0.3, Y: -0.2, Z: 0.9}),
		RotationFromVector(r3.Vector{Y: 1.2}),
	}
	v := []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -1, Y: 0.5}}
	lab := make([]r3.Vector, 2)
	back := make([]r3.Vector, 2)

	MaterialToLab(director, v, lab)
	LabToMaterial(director, lab, back)

	for k := range v {
		if back[k].Sub(v[k]).Norm() > 1e-14 {
			t.Errorf("element %d: got %v, want %v", k, back[k], v[k])
		}
	}
}

func TestParallelForCoversRange(t *testing.T) {
	for _, workers := range []int{1, 2, 4, 7} {
		var visited [103]int32
		ParallelFor(len(visited), 4, workers, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&visited[i], 1)
			}
		})
		for i, v := range visited {
			if v != 1 {
				t.Fatalf("workers=%d: index %d visited %d times", workers, i, v)
			}
		}
	}
}
