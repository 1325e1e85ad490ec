package repohost

import "time"

// Project is a repository hosted under the configured parent group.
type Project struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	WebURL    string     `json:"url"`
	CloneURL  string     `json:"clone_url,omitempty"`
	CreatedAt *time.Time `json:"created_at"`
}

// FileHandle points at a file that exists on a branch.
type FileHandle struct {
	ProjectID    int
	Path         string
	Ref          string
	BlobID       string
	LastCommitID string
}

// UpsertResult reports how a file was written.
type UpsertResult struct {
	Path    string
	Created bool
}
