// Package analysis characterizes the convergence of an activation iteration
// from its history of activation differences.
//
// Near the fixed point the difference decays geometrically, d_k ≈ C·ρ^(2k),
// so a least-squares line through ln d_k over a trailing window gives the
// per-iteration contraction factor ρ of the activations:
//
//	rate, err := analysis.ContractionRate(diffs, 50)
//	if rate < 1 {
//	    // converging
//	}
package analysis
