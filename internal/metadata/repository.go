package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const repoTimeout = 5 * time.Second

// querier is the subset of *pgxpool.Pool the repository uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides access to file and chunk metadata. Every method is a
// single statement; nothing spans a transaction.
type Repository struct {
	db  querier
	now func() time.Time
}

// NewRepository builds a metadata repository over a pgx pool.
func NewRepository(db querier) *Repository {
	return &Repository{db: db, now: time.Now}
}

// InitSchema creates the metadata tables when absent. It is idempotent.
func (r *Repository) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := r.exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (r *Repository) exec(ctx context.Context, stmt string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, stmt, args...)
	return err
}

// RecordFile inserts one file record, generating the id and timestamp when
// they are not set.
func (r *Repository) RecordFile(ctx context.Context, rec FileRecord) (FileRecord, error) {
	if strings.TrimSpace(rec.OriginalFilename) == "" || rec.RemoteRepoName == "" || rec.RemoteFilePath == "" {
		return FileRecord{}, ErrInvalidRecord
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.UploadTimestamp.IsZero() {
		rec.UploadTimestamp = r.now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusCompleted
	}

	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO file_metadata
    (id, original_filename, file_size, chunk_count, gitlab_repo_id,
     gitlab_repo_name, gitlab_file_path, upload_timestamp, status, content_type, upload_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, upload_timestamp;`

	row := r.db.QueryRow(ctx, query,
		rec.ID,
		rec.OriginalFilename,
		rec.FileSize,
		rec.ChunkCount,
		rec.RemoteRepoID,
		rec.RemoteRepoName,
		rec.RemoteFilePath,
		rec.UploadTimestamp,
		rec.Status,
		rec.ContentType,
		nullIfEmpty(rec.UploadID),
	)
	if err := row.Scan(&rec.ID, &rec.UploadTimestamp); err != nil {
		return FileRecord{}, fmt.Errorf("record file metadata: %w", err)
	}
	return rec, nil
}

// RecordChunk inserts one chunk record. It is not idempotent: recording the
// same chunk twice yields two rows.
func (r *Repository) RecordChunk(ctx context.Context, rec ChunkRecord) (ChunkRecord, error) {
	if rec.UploadID == "" || rec.OriginalFilename == "" || rec.RemoteChunkPath == "" {
		return ChunkRecord{}, ErrInvalidRecord
	}
	if rec.UploadTimestamp.IsZero() {
		rec.UploadTimestamp = r.now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusCompleted
	}

	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO chunk_metadata
    (upload_id, original_filename, chunk_number, chunk_size, gitlab_repo_id,
     gitlab_repo_name, gitlab_chunk_path, upload_timestamp, status, content_type, total_chunks)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, upload_timestamp;`

	row := r.db.QueryRow(ctx, query,
		rec.UploadID,
		rec.OriginalFilename,
		rec.ChunkNumber,
		rec.ChunkSize,
		rec.RemoteRepoID,
		rec.RemoteRepoName,
		rec.RemoteChunkPath,
		rec.UploadTimestamp,
		rec.Status,
		rec.ContentType,
		rec.TotalChunks,
	)
	if err := row.Scan(&rec.ID, &rec.UploadTimestamp); err != nil {
		return ChunkRecord{}, fmt.Errorf("record chunk metadata: %w", err)
	}
	return rec, nil
}

// SumChunkSizes totals chunk_size over every row of the upload. Duplicate
// rows from retried chunks are counted. Returns 0 when there are no rows.
func (r *Repository) SumChunkSizes(ctx context.Context, uploadID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT COALESCE(SUM(chunk_size), 0)::BIGINT FROM chunk_metadata WHERE upload_id = $1;`

	var total int64
	if err := r.db.QueryRow(ctx, query, uploadID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum chunk sizes: %w", err)
	}
	return total, nil
}

const fileColumns = `id, original_filename, file_size, chunk_count, gitlab_repo_id, gitlab_repo_name,
       gitlab_file_path, upload_timestamp, COALESCE(status, 'completed'), COALESCE(content_type, ''),
       COALESCE(upload_id, '')`

// ListFiles returns every file record, newest first.
func (r *Repository) ListFiles(ctx context.Context) ([]FileRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + fileColumns + `
FROM file_metadata
ORDER BY upload_timestamp DESC, id;`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := make([]FileRecord, 0)
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file metadata: %w", err)
		}
		files = append(files, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}

// FindFileByUpload returns the newest file record created for an upload.
func (r *Repository) FindFileByUpload(ctx context.Context, uploadID string) (FileRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + fileColumns + `
FROM file_metadata
WHERE upload_id = $1
ORDER BY upload_timestamp DESC
LIMIT 1;`

	rec, err := scanFile(r.db.QueryRow(ctx, query, uploadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FileRecord{}, ErrFileNotFound
		}
		return FileRecord{}, fmt.Errorf("find file by upload: %w", err)
	}
	return rec, nil
}

// ListChunks returns every chunk row of an upload ordered by chunk number.
func (r *Repository) ListChunks(ctx context.Context, uploadID string) ([]ChunkRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT id, upload_id, original_filename, chunk_number, chunk_size, COALESCE(total_chunks, 0),
       gitlab_repo_id, gitlab_repo_name, gitlab_chunk_path, upload_timestamp,
       COALESCE(status, 'completed'), COALESCE(content_type, '')
FROM chunk_metadata
WHERE upload_id = $1
ORDER BY chunk_number, id;`

	rows, err := r.db.Query(ctx, query, uploadID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []ChunkRecord
	for rows.Next() {
		var (
			rec         ChunkRecord
			contentType string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.UploadID,
			&rec.OriginalFilename,
			&rec.ChunkNumber,
			&rec.ChunkSize,
			&rec.TotalChunks,
			&rec.RemoteRepoID,
			&rec.RemoteRepoName,
			&rec.RemoteChunkPath,
			&rec.UploadTimestamp,
			&rec.Status,
			&contentType,
		); err != nil {
			return nil, fmt.Errorf("scan chunk metadata: %w", err)
		}
		rec.ContentType = nullIfEmpty(contentType)
		chunks = append(chunks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

func scanFile(row pgx.Row) (FileRecord, error) {
	var (
		rec         FileRecord
		contentType string
	)
	err := row.Scan(
		&rec.ID,
		&rec.OriginalFilename,
		&rec.FileSize,
		&rec.ChunkCount,
		&rec.RemoteRepoID,
		&rec.RemoteRepoName,
		&rec.RemoteFilePath,
		&rec.UploadTimestamp,
		&rec.Status,
		&contentType,
		&rec.UploadID,
	)
	if err != nil {
		return FileRecord{}, err
	}
	rec.ContentType = nullIfEmpty(contentType)
	return rec, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
