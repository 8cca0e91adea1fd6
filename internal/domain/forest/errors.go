package forest

import "errors"

// Package-specific errors.
var (
	// ErrNotFitted is returned when predicting with a forest that has no trees.
	ErrNotFitted = errors.New("forest: not fitted")
)
