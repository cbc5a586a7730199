package muscle

import "github.com/pkg/errors"

var (
	// ErrActivationShape indicates an activation array that does not match the
	// muscle's element count.
	ErrActivationShape = errors.New("muscle: activation shape mismatch")

	// ErrRodMismatch indicates a rod whose element count differs from the muscle's.
	ErrRodMismatch = errors.New("muscle: rod element count mismatch")

	// ErrDegenerateStrain indicates a muscle fibre with zero or non-finite stretch.
	ErrDegenerateStrain = errors.New("muscle: degenerate muscle strain")

	// ErrEmptyGroup indicates a group built without members.
	ErrEmptyGroup = errors.New("muscle: group has no muscles")
)
