package repositories

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/shared"
)

// S3Sink publishes documents as JSON objects to an S3-compatible bucket.
//
// The object ETag stands in for the document revision.
type S3Sink struct {
	client   *minio.Client
	bucket   string
	region   string
	prefix   string
	initOnce sync.Once
	initErr  error
}

// NewS3Sink creates a sink from the [shared.S3Config] of the sink section.
func NewS3Sink(cfg shared.S3Config) (*S3Sink, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: sink.s3.endpoint is empty", shared.ErrMissingConfig)
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("%w: s3 access key and secret key", shared.ErrMissingCredentials)
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("%w: sink.s3.bucket is empty", shared.ErrMissingConfig)
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Sink{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *S3Sink) Name() string {
	return "s3"
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Key returns the object key for a document id.
func (s *S3Sink) Key(id string) string {
	return ObjectKey(s.prefix, id)
}

// Revision returns the ETag of the stored object, or "" if there is none.
func (s *S3Sink) Revision(ctx context.Context, id string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}

	info, err := s.client.StatObject(ctx, s.bucket, s.Key(id), minio.StatObjectOptions{})
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NotFound" {
			return "", nil
		}
		return "", fmt.Errorf("failed to stat %s: %w", id, err)
	}
	return info.ETag, nil
}

// Put writes doc as "<prefix>/<id>.json". The revision is not stored in the body.
func (s *S3Sink) Put(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id", shared.ErrInvalidInput)
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	stored := *doc
	stored.Rev = ""
	data, err := shared.MarshalJSON(stored, false)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.Key(doc.ID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"Document-Type": string(doc.Type),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", doc.ID, err)
	}
	return nil
}

// ObjectKey joins prefix and "<id>.json".
func ObjectKey(prefix, id string) string {
	return path.Join(strings.Trim(prefix, "/"), id+".json")
}
