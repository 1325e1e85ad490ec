package staging

import "errors"

var (
	// ErrInvalidName is returned when an upload id or file name would escape the staging root.
	ErrInvalidName = errors.New("invalid staging name")
	// ErrStaging wraps I/O failures while writing or removing staged bytes.
	ErrStaging = errors.New("staging failed")
)
