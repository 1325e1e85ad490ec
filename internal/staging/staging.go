package staging

import (
	"context"
	"fmt"
	"strings"
)

// Handle identifies one staged chunk.
type Handle struct {
	UploadID string
	// Name is the chunk name, {filename}.partNNNN.
	Name string
	// Location is the filesystem path or object key holding the bytes.
	Location string
	Size     int64
}

// Area holds chunk bytes between receipt and commit to the repository host.
type Area interface {
	Stage(ctx context.Context, uploadID, filename string, chunkNumber int, data []byte) (Handle, error)
	Unstage(ctx context.Context, h Handle) error
	List(ctx context.Context, uploadID string) ([]string, error)
}

// ChunkName returns the name a chunk is staged and committed under.
func ChunkName(filename string, chunkNumber int) string {
	return fmt.Sprintf("%s.part%04d", filename, chunkNumber)
}

// ValidSegment reports whether s can be used as a single path segment.
func ValidSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && !strings.ContainsRune(s, 0)
}

func checkNames(uploadID, filename string) error {
	if !ValidSegment(uploadID) {
		return fmt.Errorf("%w: upload id %q", ErrInvalidName, uploadID)
	}
	if !ValidSegment(filename) {
		return fmt.Errorf("%w: file name %q", ErrInvalidName, filename)
	}
	return nil
}
