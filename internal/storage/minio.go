package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/socialfeed/backend/internal/config"
	"github.com/socialfeed/backend/internal/models"
)

type minioClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// MinioStorage keeps objects in a MinIO bucket.
type MinioStorage struct {
	client minioClient
	bucket string
	region string
	now    func() time.Time
}

// NewMinioStorage connects to the configured MinIO endpoint.
func NewMinioStorage(cfg config.ObjectStoreConfig) (*MinioStorage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("minio storage: bucket is required")
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio bucket lookup: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("minio make bucket: %w", err)
	}
	return nil
}

// Put uploads body under key.
func (s *MinioStorage) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return ErrEmptyKey
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("minio upload %s: %w", key, err)
	}
	return nil
}

// Sign returns a presigned GET URL for key valid for ttl.
func (s *MinioStorage) Sign(ctx context.Context, key string, ttl time.Duration) (models.SignedURL, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return models.SignedURL{}, ErrEmptyKey
	}

	issued := s.now()
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return models.SignedURL{}, fmt.Errorf("minio presign %s: %w", key, err)
	}
	return models.SignedURL{Key: key, URL: u.String(), ExpiresAt: issued.Add(ttl)}, nil
}
