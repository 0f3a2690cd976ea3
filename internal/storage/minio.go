package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"medilog-server/internal/config"
)

// presignExpiry bounds how long a handed-out blob URL stays valid.
const presignExpiry = 15 * time.Minute

// MinioStore keeps blobs in an S3-compatible bucket and hands out presigned
// GET URLs, so clients fetch file bytes straight from object storage.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(ctx context.Context, cfg config.MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store %s: %w", cfg.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads the blob under a fresh key. The reported URL is the object's
// canonical address, which stays valid for the life of the blob; time-limited
// presigned URLs are minted per request by URL instead.
func (s *MinioStore) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (StoredObject, error) {
	key := objectKey(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return StoredObject{}, fmt.Errorf("put object %s: %w", key, err)
	}
	return StoredObject{Key: key, URL: s.objectURL(key)}, nil
}

// objectURL is the permanent, unsigned address of an object.
func (s *MinioStore) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL(), s.bucket, url.PathEscape(key))
}

// Delete removes the object. S3 removal of a missing key already succeeds,
// but a stale bucket or key error for an absent object is also treated as done.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// URL presigns a GET for the object. The download hint becomes a
// response-content-disposition override on the presigned request.
func (s *MinioStore) URL(ctx context.Context, key string, download bool) (string, error) {
	params := url.Values{}
	if download {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", key))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, presignExpiry, params)
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return u.String(), nil
}
