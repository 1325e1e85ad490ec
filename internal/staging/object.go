package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const objectTimeout = 30 * time.Second

// objectStore is the part of *minio.Client the object area needs.
type objectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// MinIOArea stages chunks as objects keyed {upload_id}/{filename}.partNNNN.
type MinIOArea struct {
	store  objectStore
	bucket string
	log    *zap.Logger
}

// NewMinIOArea returns an area writing to bucket. The bucket must exist.
func NewMinIOArea(store objectStore, bucket string, log *zap.Logger) *MinIOArea {
	if log == nil {
		log = zap.NewNop()
	}
	return &MinIOArea{store: store, bucket: bucket, log: log}
}

func (a *MinIOArea) Stage(ctx context.Context, uploadID, filename string, chunkNumber int, data []byte) (Handle, error) {
	if err := checkNames(uploadID, filename); err != nil {
		return Handle{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, objectTimeout)
	defer cancel()

	name := ChunkName(filename, chunkNumber)
	key := uploadID + "/" + name

	_, err := a.store.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return Handle{}, fmt.Errorf("%w: put object %s: %v", ErrStaging, key, err)
	}

	a.log.Debug("chunk staged", zap.String("upload_id", uploadID), zap.String("key", key), zap.Int("bytes", len(data)))

	return Handle{
		UploadID: uploadID,
		Name:     name,
		Location: key,
		Size:     int64(len(data)),
	}, nil
}

func (a *MinIOArea) Unstage(ctx context.Context, h Handle) error {
	ctx, cancel := context.WithTimeout(ctx, objectTimeout)
	defer cancel()

	if err := a.store.RemoveObject(ctx, a.bucket, h.Location, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: remove object %s: %v", ErrStaging, h.Location, err)
	}
	return nil
}

func (a *MinIOArea) List(ctx context.Context, uploadID string) ([]string, error) {
	if !ValidSegment(uploadID) {
		return nil, fmt.Errorf("%w: upload id %q", ErrInvalidName, uploadID)
	}

	ctx, cancel := context.WithTimeout(ctx, objectTimeout)
	defer cancel()

	prefix := uploadID + "/"
	names := []string{}
	for obj := range a.store.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("%w: list objects: %v", ErrStaging, obj.Err)
		}
		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(names)
	return names, nil
}
