package repohost

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the host reports a missing project or file.
var ErrNotFound = errors.New("not found on repository host")

// UpstreamError is any other failure reported by the repository host.
type UpstreamError struct {
	Op      string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
}

// Rejected reports whether the host refused the request as invalid rather
// than failing to process it.
func (e *UpstreamError) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// ErrInvalidName is returned for an empty repository name.
var ErrInvalidName = errors.New("repository name required")
