package objectstore

import "errors"

// Sentinel kinds for object store errors.
var (
	ErrNoFiles = errors.New("no files to transfer")
)
