// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package deadletter

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO wraps a MinIO client for S3 operations.
type MinIO struct {
	mc *minio.Client
}

// NewMinIO creates a new MinIO client. endpoint is host:port without a scheme.
func NewMinIO(endpoint, accessKey, secretKey string, secure bool) (*MinIO, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	return &MinIO{mc: mc}, nil
}

// EnsureBucket creates bucket if it does not exist yet.
func (c *MinIO) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("deadletter: failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}

	err = c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("deadletter: failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// PutObject implements the [Putter] interface.
func (c *MinIO) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	_, err := c.mc.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

// GetObject retrieves an object from the specified bucket.
func (c *MinIO) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}
