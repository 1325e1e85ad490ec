package metadata

import "time"

// StatusCompleted is the only status written by the relay.
const StatusCompleted = "completed"

// FileRecord is one completed upload.
type FileRecord struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	ChunkCount       int       `json:"chunk_count"`
	RemoteRepoID     int       `json:"gitlab_repo_id"`
	RemoteRepoName   string    `json:"gitlab_repo_name"`
	RemoteFilePath   string    `json:"gitlab_file_path"`
	UploadTimestamp  time.Time `json:"upload_timestamp"`
	Status           string    `json:"status"`
	ContentType      *string   `json:"content_type"`
	// UploadID links the record back to its chunks. Not part of the public shape.
	UploadID string `json:"-"`
}

// ChunkRecord is one committed chunk. Retries of the same chunk number add
// further rows.
type ChunkRecord struct {
	ID               int64     `json:"id"`
	UploadID         string    `json:"upload_id"`
	OriginalFilename string    `json:"original_filename"`
	ChunkNumber      int       `json:"chunk_number"`
	ChunkSize        int64     `json:"chunk_size"`
	TotalChunks      int       `json:"total_chunks"`
	RemoteRepoID     int       `json:"gitlab_repo_id"`
	RemoteRepoName   string    `json:"gitlab_repo_name"`
	RemoteChunkPath  string    `json:"gitlab_chunk_path"`
	UploadTimestamp  time.Time `json:"upload_timestamp"`
	Status           string    `json:"status"`
	ContentType      *string   `json:"content_type"`
}
