package upload

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/abduss/chunkrelay/internal/metadata"
	"github.com/abduss/chunkrelay/internal/staging"
)

// Session reconstructs an upload's state from what the metadata store and
// the staging area currently hold.
func (c *Coordinator) Session(ctx context.Context, uploadID string) (SessionView, error) {
	if !staging.ValidSegment(uploadID) {
		return SessionView{}, fmt.Errorf("%w: upload_id %q", ErrInvalidChunk, uploadID)
	}

	ctx, span := c.tracer.Start(ctx, "upload.Session")
	defer span.End()

	chunks, err := c.store.ListChunks(ctx, uploadID)
	if err != nil {
		fail(span, err)
		return SessionView{}, fmt.Errorf("list chunks: %w", err)
	}

	file, err := c.store.FindFileByUpload(ctx, uploadID)
	hasFile := err == nil
	if err != nil && !errors.Is(err, metadata.ErrFileNotFound) {
		fail(span, err)
		return SessionView{}, fmt.Errorf("find file record: %w", err)
	}

	staged, err := c.staging.List(ctx, uploadID)
	if err != nil {
		fail(span, err)
		return SessionView{}, fmt.Errorf("list staged chunks: %w", err)
	}

	if len(chunks) == 0 && !hasFile && len(staged) == 0 {
		return SessionView{}, ErrSessionNotFound
	}

	view := SessionView{
		UploadID:       uploadID,
		State:          StateAwaitingChunks,
		DeclaredTotals: []int{},
		ChunksSeen:     []int{},
		MissingChunks:  []int{},
		ChunkRows:      len(chunks),
		StagedChunks:   staged,
	}

	seen := map[int]struct{}{}
	totals := map[int]struct{}{}
	for _, chunk := range chunks {
		view.RecordedBytes += chunk.ChunkSize
		view.OriginalFilename = chunk.OriginalFilename
		view.RemoteRepoID = chunk.RemoteRepoID
		seen[chunk.ChunkNumber] = struct{}{}
		if chunk.TotalChunks > 0 {
			totals[chunk.TotalChunks] = struct{}{}
		}
	}
	view.ChunksSeen = sortedKeys(seen)
	view.DeclaredTotals = sortedKeys(totals)

	// gaps are only meaningful when every chunk agreed on the count
	if len(view.DeclaredTotals) == 1 {
		for n := 0; n < view.DeclaredTotals[0]; n++ {
			if _, ok := seen[n]; !ok {
				view.MissingChunks = append(view.MissingChunks, n)
			}
		}
	}

	if hasFile {
		id := file.ID
		completedAt := file.UploadTimestamp
		view.State = StateCompleted
		view.FileID = &id
		view.CompletedAt = &completedAt
		view.OriginalFilename = file.OriginalFilename
		view.RemoteRepoID = file.RemoteRepoID
	}

	return view, nil
}

func sortedKeys(set map[int]struct{}) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
