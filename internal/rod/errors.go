package rod

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrDegenerateGeometry indicates a zero-length (or non-finite) element.
	ErrDegenerateGeometry = errors.New("rod: degenerate geometry (zero-length element)")

	// ErrSingularConstitutiveMatrix indicates a non-invertible shear or bend matrix.
	ErrSingularConstitutiveMatrix = errors.New("rod: singular constitutive matrix")

	// ErrDimensionMismatch indicates snapshot or strain arrays of inconsistent length.
	ErrDimensionMismatch = errors.New("rod: dimension mismatch")
)

// ElementError wraps an error with the index of the element it was detected at.
type ElementError struct {
	Element int
	Op      string
	Wrapped error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("%s: element %d: %v", e.Op, e.Element, e.Wrapped)
}

func (e *ElementError) Unwrap() error {
	return e.Wrapped
}
