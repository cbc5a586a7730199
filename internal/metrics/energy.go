package metrics

import (
	"github.com/san-kum/octoarm/internal/control"
	"github.com/san-kum/octoarm/internal/rod"
)

// ElasticEnergy reports the strain energy stored in the rod after the latest
// iteration,
//
//	½ Σ (σ-σ⁰)·S(σ-σ⁰) l⁰ + ½ Σ (κ-κ⁰)·B(κ-κ⁰) D⁰
type ElasticEnergy struct {
	name   string
	energy float64
}

func NewElasticEnergy() *ElasticEnergy {
	return &ElasticEnergy{
		name: "elastic_energy",
	}
}

func (e *ElasticEnergy) Name() string { return e.name }

func (e *ElasticEnergy) Observe(it control.Iteration) {
	if it.Rod == nil {
		return
	}
	e.energy = StrainEnergy(it.Rod)
}

func (e *ElasticEnergy) Value() float64 { return e.energy }

func (e *ElasticEnergy) Reset() { e.energy = 0 }

func StrainEnergy(r *rod.StaticRod) float64 {
	total := 0.0
	for k, s := range r.Sigma {
		d := s.Sub(r.RestSigma[k])
		total += 0.5 * d.Dot(r.ShearMatrix[k].MulVec(d)) * r.RestLength[k]
	}
	for k, c := range r.Kappa {
		d := c.Sub(r.RestKappa[k])
		total += 0.5 * d.Dot(r.BendMatrix[k].MulVec(d)) * r.RestVoronoiLength[k]
	}
	return total
}
