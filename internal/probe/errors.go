package probe

import "errors"

// Sentinel errors for probe runs.
var (
	ErrUnhealthy = errors.New("service is not healthy")
	ErrMismatch  = errors.New("service disagrees with the offline score table")
	ErrNoRows    = errors.New("no checkable rows")
)
