// Package kernels provides the stateless numeric kernels of the static rod
// model. Every kernel works on fixed-shape slices indexed by element, node or
// Voronoi region and writes into caller-supplied output buffers:
//
//   - [Difference], [Average]: node/element fields to element/Voronoi fields
//   - [DifferenceKernel], [QuadratureKernel]: ghost-padded inverses of the above
//   - [DilatationFromShear], [ShearFromSigma]: strain conversions
//   - [MaterialToLab], [LabToMaterial]: batch frame rotations
//   - [RotationFromVector], [RotationLog]: finite rotations between directors
//
// A director is stored as a [Mat3] whose rows are the material axes expressed
// in the lab frame, so D·v maps a lab vector into the material frame and
// Dᵀ·v maps it back.
package kernels
