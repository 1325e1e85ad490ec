package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/chunkrelay/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"go.uber.org/zap"
)

const (
	defaultObjectStoreTimeout = 5 * time.Second
	stagingExpiryRuleID       = "expire-staged-chunks"
)

// bucketAdmin is the subset of *minio.Client used to prepare the staging bucket.
type bucketAdmin interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
}

// NewMinIOClient establishes a MinIO client for the object staging backend.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	endpoint := cfg.Endpoint
	if !strings.Contains(endpoint, ":") {
		endpoint = fmt.Sprintf("%s:9000", endpoint)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return client, nil
}

// EnsureStagingBucket creates the staging bucket when missing and installs an
// expiry rule so chunks stranded by failed commits do not accumulate.
func EnsureStagingBucket(ctx context.Context, client bucketAdmin, cfg config.MinIOConfig, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check staging bucket: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return fmt.Errorf("create staging bucket %q: %w", cfg.Bucket, err)
		}
		log.Info("created staging bucket", zap.String("bucket", cfg.Bucket))
	}

	if cfg.ExpiryDays <= 0 {
		log.Warn("staged chunk expiry disabled; failed commits leave objects behind", zap.String("bucket", cfg.Bucket))
		return nil
	}

	rules := lifecycle.NewConfiguration()
	rules.Rules = []lifecycle.Rule{{
		ID:     stagingExpiryRuleID,
		Status: "Enabled",
		Expiration: lifecycle.Expiration{
			Days: lifecycle.ExpirationDays(cfg.ExpiryDays),
		},
	}}
	if err := client.SetBucketLifecycle(ctx, cfg.Bucket, rules); err != nil {
		return fmt.Errorf("set staging expiry on %q: %w", cfg.Bucket, err)
	}
	log.Info("staged chunk expiry set", zap.String("bucket", cfg.Bucket), zap.Int("days", cfg.ExpiryDays))

	return nil
}
