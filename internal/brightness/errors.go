package brightness

import "errors"

// These sentinels belong to this package. orientation has its own
// ErrInvalidParameter; errors.Is against one does not match the other.
var (
	// ErrInvalidParameter reports a non-positive block size or an empty image.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrDimensionMismatch reports grids, or an image and a grid, whose
	// shapes do not line up.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)
