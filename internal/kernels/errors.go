package kernels

import "github.com/pkg/errors"

// ErrSingularMatrix indicates a 3x3 matrix with a zero determinant.
var ErrSingularMatrix = errors.New("kernels: singular matrix")
