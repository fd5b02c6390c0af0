package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// readOnlyPolicy lets anonymous clients GET objects, so avatar URLs can be
// embedded directly by the frontend.
const readOnlyPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`

// MinioStore keeps uploaded files in a MinIO bucket and hands out their
// public URLs.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, publicURL string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
		if err := client.SetBucketPolicy(ctx, bucket, fmt.Sprintf(readOnlyPolicy, bucket)); err != nil {
			return nil, fmt.Errorf("minio bucket policy: %w", err)
		}
	}

	return &MinioStore{client: client, bucket: bucket, publicURL: publicURL}, nil
}

// Upload stores r under key and returns the object's public URL.
func (s *MinioStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio put %s: %w", key, err)
	}
	return objectURL(s.publicURL, s.bucket, key), nil
}

// RemoveURL deletes the object behind url. URLs that do not point into this
// bucket are ignored.
func (s *MinioStore) RemoveURL(ctx context.Context, url string) error {
	key, ok := objectKey(s.publicURL, s.bucket, url)
	if !ok {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove %s: %w", key, err)
	}
	return nil
}

func objectURL(publicURL, bucket, key string) string {
	return strings.TrimRight(publicURL, "/") + "/" + bucket + "/" + key
}

func objectKey(publicURL, bucket, url string) (string, bool) {
	prefix := strings.TrimRight(publicURL, "/") + "/" + bucket + "/"
	key, ok := strings.CutPrefix(url, prefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
