package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abduss/chunkrelay/internal/logger"
	"github.com/abduss/chunkrelay/internal/metadata"
	"github.com/abduss/chunkrelay/internal/metrics"
	"github.com/abduss/chunkrelay/internal/repohost"
	"github.com/abduss/chunkrelay/internal/staging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/abduss/chunkrelay/internal/upload"

type metadataStore interface {
	RecordChunk(ctx context.Context, rec metadata.ChunkRecord) (metadata.ChunkRecord, error)
	RecordFile(ctx context.Context, rec metadata.FileRecord) (metadata.FileRecord, error)
	SumChunkSizes(ctx context.Context, uploadID string) (int64, error)
	ListFiles(ctx context.Context) ([]metadata.FileRecord, error)
	ListChunks(ctx context.Context, uploadID string) ([]metadata.ChunkRecord, error)
	FindFileByUpload(ctx context.Context, uploadID string) (metadata.FileRecord, error)
}

type gateway interface {
	GetProject(ctx context.Context, projectID int) (repohost.Project, error)
	UpsertFile(ctx context.Context, projectID int, path string, content []byte) (repohost.UpsertResult, error)
}

// Coordinator drives one chunk through staging, the repository host and the
// metadata store. It keeps no state between requests.
type Coordinator struct {
	staging staging.Area
	remote  gateway
	store   metadataStore
	log     *zap.Logger
	tracer  trace.Tracer
}

// NewCoordinator wires the coordinator's collaborators.
func NewCoordinator(area staging.Area, remote gateway, store metadataStore, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		staging: area,
		remote:  remote,
		store:   store,
		log:     log,
		tracer:  otel.Tracer(tracerName),
	}
}

// UploadChunk stages, commits and records one chunk. Staging and repository
// host failures are returned; metadata failures are reported as degradations
// on an otherwise successful result. Nothing is rolled back.
func (c *Coordinator) UploadChunk(ctx context.Context, in ChunkInput) (ChunkResult, error) {
	if err := validate(in); err != nil {
		return ChunkResult{}, err
	}
	if strings.TrimSpace(in.ContentType) == "" {
		in.ContentType = defaultContentType
	}

	ctx, span := c.tracer.Start(ctx, "upload.UploadChunk", trace.WithAttributes(
		attribute.String("upload.id", in.UploadID),
		attribute.Int("upload.chunk_number", in.ChunkNumber),
		attribute.Int("upload.total_chunks", in.TotalChunks),
		attribute.Int("upload.project_id", in.ProjectID),
	))
	defer span.End()

	log := logger.FromContext(ctx, c.log).With(
		zap.String("upload_id", in.UploadID),
		zap.String("file_name", in.FileName),
		zap.Int("chunk_number", in.ChunkNumber),
		zap.Int("total_chunks", in.TotalChunks),
	)
	log.Info("uploading chunk", zap.Int("bytes", len(in.Data)))

	handle, err := c.stage(ctx, in)
	if err != nil {
		fail(span, err)
		return ChunkResult{}, err
	}

	project, upsert, err := c.commit(ctx, in, handle.Name)
	if err != nil {
		fail(span, err)
		log.Warn("chunk commit failed; staged copy kept", zap.String("staged", handle.Location), zap.Error(err))
		return ChunkResult{}, err
	}
	metrics.ChunkCommitted(upsert.Created, len(in.Data))
	log.Info("chunk committed", zap.String("path", upsert.Path), zap.Bool("created", upsert.Created))

	if err := c.staging.Unstage(ctx, handle); err != nil {
		log.Warn("unstage chunk", zap.Error(err))
	}

	result := ChunkResult{
		ChunkNumber: in.ChunkNumber,
		TotalChunks: in.TotalChunks,
		RemotePath:  upsert.Path,
		Created:     upsert.Created,
		Completed:   in.IsLast(),
	}

	c.recordChunk(ctx, in, project, upsert.Path, &result, log)

	if result.Completed {
		c.completeFile(ctx, in, project, &result, log)
	}

	if result.Degraded() {
		span.SetAttributes(attribute.Bool("upload.metadata_degraded", true))
	}
	return result, nil
}

func validate(in ChunkInput) error {
	switch {
	case in.ChunkNumber < 0:
		return fmt.Errorf("%w: chunk_number must not be negative", ErrInvalidChunk)
	case in.TotalChunks < 1:
		return fmt.Errorf("%w: total_chunks must be at least 1", ErrInvalidChunk)
	case !staging.ValidSegment(in.FileName):
		return fmt.Errorf("%w: file_name %q", ErrInvalidChunk, in.FileName)
	case !staging.ValidSegment(in.UploadID):
		return fmt.Errorf("%w: upload_id %q", ErrInvalidChunk, in.UploadID)
	}
	return nil
}

func (c *Coordinator) stage(ctx context.Context, in ChunkInput) (staging.Handle, error) {
	ctx, span := c.tracer.Start(ctx, "upload.stage")
	defer span.End()

	handle, err := c.staging.Stage(ctx, in.UploadID, in.FileName, in.ChunkNumber, in.Data)
	if err != nil {
		fail(span, err)
		return staging.Handle{}, fmt.Errorf("stage chunk: %w", err)
	}
	return handle, nil
}

func (c *Coordinator) commit(ctx context.Context, in ChunkInput, path string) (repohost.Project, repohost.UpsertResult, error) {
	ctx, span := c.tracer.Start(ctx, "upload.commit", trace.WithAttributes(attribute.String("repo.path", path)))
	defer span.End()

	project, err := c.remote.GetProject(ctx, in.ProjectID)
	if err != nil {
		fail(span, err)
		if errors.Is(err, repohost.ErrNotFound) {
			return repohost.Project{}, repohost.UpsertResult{}, fmt.Errorf("%w: %d", ErrProjectNotFound, in.ProjectID)
		}
		return repohost.Project{}, repohost.UpsertResult{}, fmt.Errorf("resolve project: %w", err)
	}

	upsert, err := c.remote.UpsertFile(ctx, project.ID, path, in.Data)
	if err != nil {
		fail(span, err)
		return repohost.Project{}, repohost.UpsertResult{}, fmt.Errorf("commit chunk: %w", err)
	}
	return project, upsert, nil
}

func (c *Coordinator) recordChunk(ctx context.Context, in ChunkInput, project repohost.Project, path string, result *ChunkResult, log *zap.Logger) {
	ctx, span := c.tracer.Start(ctx, "upload.record_chunk")
	defer span.End()

	_, err := c.store.RecordChunk(ctx, metadata.ChunkRecord{
		UploadID:         in.UploadID,
		OriginalFilename: in.FileName,
		ChunkNumber:      in.ChunkNumber,
		ChunkSize:        int64(len(in.Data)),
		TotalChunks:      in.TotalChunks,
		RemoteRepoID:     project.ID,
		RemoteRepoName:   project.Name,
		RemoteChunkPath:  path,
		ContentType:      &in.ContentType,
	})
	if err != nil {
		fail(span, err)
		c.degrade(result, StepRecordChunk, err, log)
	}
}

// completeFile records the file once the declared last chunk is committed.
// The size is the sum of recorded chunk sizes, or this chunk's size times the
// declared count when the sum is unavailable.
func (c *Coordinator) completeFile(ctx context.Context, in ChunkInput, project repohost.Project, result *ChunkResult, log *zap.Logger) {
	ctx, span := c.tracer.Start(ctx, "upload.complete")
	defer span.End()

	size, err := c.store.SumChunkSizes(ctx, in.UploadID)
	if err != nil {
		c.degrade(result, StepSumSizes, err, log)
	}
	if err != nil || size == 0 {
		size = int64(len(in.Data)) * int64(in.TotalChunks)
		result.SizeEstimated = true
	}
	result.FileSize = size

	rec, err := c.store.RecordFile(ctx, metadata.FileRecord{
		OriginalFilename: in.FileName,
		FileSize:         size,
		ChunkCount:       in.TotalChunks,
		RemoteRepoID:     project.ID,
		RemoteRepoName:   project.Name,
		RemoteFilePath:   in.FileName,
		ContentType:      &in.ContentType,
		UploadID:         in.UploadID,
	})
	if err != nil {
		fail(span, err)
		c.degrade(result, StepRecordFile, err, log)
	} else {
		id := rec.ID
		result.FileID = &id
	}

	metrics.UploadCompleted(result.SizeEstimated)
	log.Info("upload completed",
		zap.Int64("file_size", size),
		zap.Bool("size_estimated", result.SizeEstimated),
		zap.Bool("file_recorded", result.FileID != nil),
	)
}

func (c *Coordinator) degrade(result *ChunkResult, step string, err error, log *zap.Logger) {
	result.Degradations = append(result.Degradations, Degradation{Step: step, Err: err})
	metrics.MetadataDegraded(step)
	log.Error("metadata step failed; chunk upload continues", zap.String("step", step), zap.Error(err))
}

// ListFiles returns every completed upload, newest first.
func (c *Coordinator) ListFiles(ctx context.Context) ([]metadata.FileRecord, error) {
	return c.store.ListFiles(ctx)
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
