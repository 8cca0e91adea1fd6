package repository

import "errors"

// Sentinel kinds for prediction store errors.
var (
	ErrNotFound           = errors.New("prediction not found")
	ErrInvalidCombination = errors.New("invalid feature combination")
	ErrDuplicateID        = errors.New("duplicate prediction id")
	ErrIdentifier         = errors.New("invalid sql identifier")
)
