package muscle

import (
	"math"

	"github.com/san-kum/octoarm/internal/rod"
)

// LayoutParams sizes a muscle layout. Positions and radii are ratios of the
// local rod radius; stresses are in Pa.
type LayoutParams struct {
	Weight WeightFunc

	TransverseStress   float64
	LongitudinalStress float64
	ObliqueStress      float64

	LongitudinalPosition float64
	ObliquePosition      float64
	AxialNerveRadius     float64
	TransverseRadius     float64
	LongitudinalRadius   float64
	ObliqueRadius        float64
	ObliqueRotations     float64
}

// DefaultLayoutParams are the octopus arm proportions for a 12 mm base radius.
func DefaultLayoutParams() LayoutParams {
	const base = 0.012
	return LayoutParams{
		Weight:               Poly(DefaultPolyCoefficients...),
		TransverseStress:     15_000,
		LongitudinalStress:   10_000,
		ObliqueStress:        100_000,
		LongitudinalPosition: 0.0075 / base,
		ObliquePosition:      0.01125 / base,
		AxialNerveRadius:     0.002 / base,
		TransverseRadius:     0.0045 / base,
		LongitudinalRadius:   0.003 / base,
		ObliqueRadius:        0.00075 / base,
		ObliqueRotations:     6,
	}
}

// restArea returns the rod's rest cross-section scaled by ratio².
func restArea(r *rod.StaticRod, ratio2 float64) []float64 {
	area := make([]float64, r.NElements)
	for k, rad := range r.RestRadius {
		area[k] = math.Pi * rad * rad * ratio2
	}
	return area
}

// OctopusLayout builds one transverse group, four longitudinal groups at
// quarter turns, and a clockwise and a counter-clockwise oblique group of four
// fibres each. Fibre rest lengths are taken from the rod's current pose.
func OctopusLayout(r *rod.StaticRod, p LayoutParams) ([]*Group, error) {
	tmArea := restArea(r, p.TransverseRadius*p.TransverseRadius-p.AxialNerveRadius*p.AxialNerveRadius)
	lmArea := restArea(r, p.LongitudinalRadius*p.LongitudinalRadius)
	omArea := restArea(r, p.ObliqueRadius*p.ObliqueRadius)

	var groups []*Group
	add := func(kind Kind, muscles ...*Force) error {
		g, err := NewGroup(kind, len(groups), muscles...)
		if err != nil {
			return err
		}
		groups = append(groups, g)
		return nil
	}

	if err := add(Transverse, NewTransverse(Params{RestArea: tmArea, MaxStress: p.TransverseStress, Weight: p.Weight})); err != nil {
		return nil, err
	}
	for k := 0; k < 4; k++ {
		lm := NewLongitudinal(Params{RestArea: lmArea, MaxStress: p.LongitudinalStress, Weight: p.Weight}, math.Pi/2*float64(k), p.LongitudinalPosition)
		if err := add(Longitudinal, lm); err != nil {
			return nil, err
		}
	}
	for _, turns := range []float64{p.ObliqueRotations, -p.ObliqueRotations} {
		oms := make([]*Force, 4)
		for m := range oms {
			oms[m] = NewOblique(Params{RestArea: omArea, MaxStress: p.ObliqueStress, Weight: p.Weight}, math.Pi/2*float64(m), p.ObliquePosition, turns)
		}
		if err := add(Oblique, oms...); err != nil {
			return nil, err
		}
	}

	if err := setRestLengths(r, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// LongitudinalLayout builds the four longitudinal groups only.
func LongitudinalLayout(r *rod.StaticRod, p LayoutParams) ([]*Group, error) {
	lmArea := restArea(r, p.LongitudinalRadius*p.LongitudinalRadius)
	groups := make([]*Group, 4)
	for k := range groups {
		lm := NewLongitudinal(Params{RestArea: lmArea, MaxStress: p.LongitudinalStress, Weight: p.Weight}, math.Pi/2*float64(k), p.LongitudinalPosition)
		g, err := NewGroup(Longitudinal, k, lm)
		if err != nil {
			return nil, err
		}
		groups[k] = g
	}
	if err := setRestLengths(r, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// SingleLayout builds one longitudinal muscle on the material d1 side.
func SingleLayout(r *rod.StaticRod, p LayoutParams) ([]*Group, error) {
	lmArea := restArea(r, p.LongitudinalRadius*p.LongitudinalRadius)
	lm := NewLongitudinal(Params{RestArea: lmArea, MaxStress: p.LongitudinalStress, Weight: p.Weight}, 0, p.LongitudinalPosition)
	g, err := NewGroup(Longitudinal, 0, lm)
	if err != nil {
		return nil, err
	}
	groups := []*Group{g}
	if err := setRestLengths(r, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func setRestLengths(r *rod.StaticRod, groups []*Group) error {
	for _, g := range groups {
		if err := g.SetCurrentLengthAsRestLength(r); err != nil {
			return err
		}
	}
	return nil
}
