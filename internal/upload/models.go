package upload

import (
	"fmt"
	"time"
)

const defaultContentType = "application/octet-stream"

// Session states.
const (
	StateAwaitingChunks = "awaiting_chunks"
	StateCompleted      = "completed"
)

// Degradation steps.
const (
	StepRecordChunk = "record_chunk"
	StepSumSizes    = "sum_chunk_sizes"
	StepRecordFile  = "record_file"
)

// ChunkInput is one uploaded chunk as received from the client.
type ChunkInput struct {
	ProjectID   int
	Data        []byte
	ContentType string
	ChunkNumber int
	TotalChunks int
	FileName    string
	UploadID    string
}

// IsLast reports whether the chunk is the final one by its declared count.
func (in ChunkInput) IsLast() bool {
	return in.ChunkNumber+1 == in.TotalChunks
}

// Degradation is a metadata step that failed after the chunk was committed.
type Degradation struct {
	Step string
	Err  error
}

// ChunkResult describes the outcome of one chunk upload.
type ChunkResult struct {
	ChunkNumber   int
	TotalChunks   int
	RemotePath    string
	Created       bool
	Completed     bool
	FileID        *string
	FileSize      int64
	SizeEstimated bool
	Degradations  []Degradation
}

// Degraded reports whether any metadata step failed.
func (r ChunkResult) Degraded() bool {
	return len(r.Degradations) > 0
}

// Message is the human readable progress line.
func (r ChunkResult) Message() string {
	return fmt.Sprintf("Chunk %d/%d uploaded to GitLab", r.ChunkNumber+1, r.TotalChunks)
}

// SessionView is the state of an upload derived from chunk rows, the file
// record and the staging area.
type SessionView struct {
	UploadID         string     `json:"upload_id"`
	State            string     `json:"state"`
	OriginalFilename string     `json:"original_filename,omitempty"`
	RemoteRepoID     int        `json:"gitlab_repo_id,omitempty"`
	DeclaredTotals   []int      `json:"declared_total_chunks"`
	ChunksSeen       []int      `json:"chunks_seen"`
	MissingChunks    []int      `json:"missing_chunks"`
	ChunkRows        int        `json:"chunk_rows"`
	RecordedBytes    int64      `json:"recorded_bytes"`
	StagedChunks     []string   `json:"staged_chunks"`
	FileID           *string    `json:"postgres_doc_id"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
