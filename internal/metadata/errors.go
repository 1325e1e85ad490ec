package metadata

import "errors"

var (
	// ErrFileNotFound signals that no file record matched.
	ErrFileNotFound = errors.New("file record not found")
	// ErrInvalidRecord is returned when a required field is missing.
	ErrInvalidRecord = errors.New("invalid metadata record")
)
