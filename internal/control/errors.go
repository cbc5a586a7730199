package control

import "github.com/pkg/errors"

var (
	ErrNoMuscles     = errors.New("control: no muscles")
	ErrNoSource      = errors.New("control: no cost source")
	ErrInvalidConfig = errors.New("control: invalid config")
	ErrShape         = errors.New("control: shape mismatch")

	// ErrNonFinite indicates a NaN or Inf produced by an element solve.
	ErrNonFinite = errors.New("control: non-finite value")
)
