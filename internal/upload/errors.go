package upload

import "errors"

var (
	// ErrInvalidChunk is returned for a chunk whose fields cannot be processed.
	ErrInvalidChunk = errors.New("invalid chunk")
	// ErrProjectNotFound is returned when the target repository does not exist.
	ErrProjectNotFound = errors.New("project not found")
	// ErrSessionNotFound is returned when nothing is known about an upload id.
	ErrSessionNotFound = errors.New("upload session not found")
)
