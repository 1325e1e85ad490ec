package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const tempMarker = ".tmp-"

// LocalArea stages chunks under {root}/{upload_id}/{filename}.partNNNN.
type LocalArea struct {
	root string
	log  *zap.Logger
}

// NewLocalArea ensures root exists and returns an area rooted there.
func NewLocalArea(root string, log *zap.Logger) (*LocalArea, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	log.Info("local staging area ready", zap.String("root", root))
	return &LocalArea{root: root, log: log}, nil
}

// Root returns the staging root directory.
func (a *LocalArea) Root() string {
	return a.root
}

// Stage writes data to a temp file in the upload directory and renames it into
// place, replacing any earlier copy of the same chunk.
func (a *LocalArea) Stage(ctx context.Context, uploadID, filename string, chunkNumber int, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	if err := checkNames(uploadID, filename); err != nil {
		return Handle{}, err
	}

	dir := filepath.Join(a.root, uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Handle{}, fmt.Errorf("%w: create upload dir: %v", ErrStaging, err)
	}

	name := ChunkName(filename, chunkNumber)
	target := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+tempMarker+"*")
	if err != nil {
		return Handle{}, fmt.Errorf("%w: create temp file: %v", ErrStaging, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return Handle{}, fmt.Errorf("%w: write chunk: %v", ErrStaging, err)
	}
	if err := tmp.Sync(); err != nil {
		return Handle{}, fmt.Errorf("%w: sync chunk: %v", ErrStaging, err)
	}
	if err := tmp.Close(); err != nil {
		return Handle{}, fmt.Errorf("%w: close chunk: %v", ErrStaging, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return Handle{}, fmt.Errorf("%w: move chunk into place: %v", ErrStaging, err)
	}
	committed = true

	a.log.Debug("chunk staged",
		zap.String("upload_id", uploadID),
		zap.String("chunk", name),
		zap.Int("bytes", len(data)),
	)

	return Handle{
		UploadID: uploadID,
		Name:     name,
		Location: target,
		Size:     int64(len(data)),
	}, nil
}

// Unstage removes a staged chunk. A chunk that is already gone is not an error.
// The upload directory is left in place for concurrent chunks of the same upload.
func (a *LocalArea) Unstage(_ context.Context, h Handle) error {
	if err := os.Remove(h.Location); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove chunk: %v", ErrStaging, err)
	}
	a.log.Debug("chunk unstaged", zap.String("upload_id", h.UploadID), zap.String("chunk", h.Name))
	return nil
}

// List returns the names of chunks staged but not yet unstaged for an upload,
// in lexical order. In-flight temp files are skipped.
func (a *LocalArea) List(ctx context.Context, uploadID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidSegment(uploadID) {
		return nil, fmt.Errorf("%w: upload id %q", ErrInvalidName, uploadID)
	}

	entries, err := os.ReadDir(filepath.Join(a.root, uploadID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: list upload dir: %v", ErrStaging, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.Contains(entry.Name(), tempMarker) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
