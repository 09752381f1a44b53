package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	apperrors "media-vault/errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
}

// NewClient connects to the object store and makes sure the bucket exists.
func NewClient(ctx context.Context, cfg Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty object store endpoint")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("empty object store bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return client, nil
}

// MinioStore implements contract.BlobStore on top of a MinIO/S3 bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	log    *slog.Logger
}

func NewMinioStore(client *minio.Client, bucket string, log *slog.Logger) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, log: log}
}

// PresignUpload returns a time-limited write URL for the given key. The
// declared MIME and size are advisory here; the real size is re-read from the
// object at confirm time and the type is re-derived from the bytes.
func (s *MinioStore) PresignUpload(ctx context.Context, key string, declaredMime string, sizeBytes int64, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		return "", apperrors.Transient("presign upload", err)
	}
	s.log.Debug("presigned upload target issued",
		"key", key, "declared_mime", declaredMime, "declared_size", sizeBytes, "ttl", ttl)
	return u.String(), nil
}

func (s *MinioStore) HeadObject(ctx context.Context, key string) (int64, bool, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return 0, false, nil
		}
		return 0, false, apperrors.Transient("head object", err)
	}
	return info.Size, true, nil
}

// GetObject reads the object into memory, bounded by maxBytes. An object
// larger than the bound is content we refuse, not an infrastructure failure.
func (s *MinioStore) GetObject(ctx context.Context, key string, maxBytes int64) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperrors.Transient("get object", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxBytes+1))
	if err != nil {
		return nil, apperrors.Transient("read object", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, apperrors.Validation("object exceeds processing limit of %d bytes", maxBytes)
	}
	return data, nil
}

func (s *MinioStore) DeleteObject(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return apperrors.Transient("delete object", err)
	}
	return nil
}
