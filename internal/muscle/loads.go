package muscle

import (
	"github.com/golang/geo/r3"

	"github.com/san-kum/octoarm/internal/kernels"
	"github.com/san-kum/octoarm/internal/rod"
)

// forceInducedCouple writes couple[k] = avg(position)[k] × avg(force)[k], the
// moment an off-centre fibre force exerts about the centreline at each
// Voronoi region.
func forceInducedCouple(position, force, couple, avgPosition, avgForce []r3.Vector) {
	kernels.Average(position, avgPosition)
	kernels.Average(force, avgForce)
	kernels.BatchCross(avgPosition, avgForce, couple)
}

// InternalToExternal converts material-frame internal loads (force on n
// elements, couple on n-1 Voronoi regions) into the equivalent lab-frame
// nodal forces (n+1) and material-frame element couples (n) the dynamic
// rod would receive.
func InternalToExternal(r *rod.StaticRod, internalForce, internalCouple, externalForce, externalCouple []r3.Vector) {
	n := r.NElements

	stress := make([]r3.Vector, n)
	for k := range stress {
		stress[k] = r.Director[k].TMulVec(internalForce[k].Mul(1 / r.Dilatation[k]))
	}
	kernels.DifferenceKernel(stress, externalForce)

	bend := make([]r3.Vector, n-1)
	twist := make([]r3.Vector, n-1)
	for k := range bend {
		v3 := r.VoronoiDilatation[k] * r.VoronoiDilatation[k] * r.VoronoiDilatation[k]
		bend[k] = internalCouple[k].Mul(1 / v3)
		twist[k] = r.Kappa[k].Cross(internalCouple[k]).Mul(r.RestVoronoiLength[k] / v3)
	}
	kernels.DifferenceKernel(bend, externalCouple)

	quad := make([]r3.Vector, n)
	kernels.QuadratureKernel(twist, quad)
	for k := 0; k < n; k++ {
		shearCouple := r.Director[k].MulVec(r.Tangent[k]).Cross(internalForce[k]).Mul(r.RestLength[k])
		externalCouple[k] = externalCouple[k].Add(quad[k]).Add(shearCouple)
	}
}
