// Package s3 stores blobs in an S3-compatible bucket through minio-go.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/multierr"

	"github.com/angelmondragon/geodirectory-backend/pkg/config"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/storage"
)

type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	CopyObject(ctx context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// Store implements storage.Backend on a single bucket.
type Store struct {
	api    objectAPI
	bucket string
	logg   *logger.Logger
}

var _ storage.Backend = (*Store)(nil)

// New connects to the endpoint and creates the bucket when it does not exist.
func New(ctx context.Context, cfg config.S3Config, logg *logger.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for %s: %w", cfg.Endpoint, err)
	}
	store := &Store{api: client, bucket: cfg.Bucket, logg: logg}
	if err := store.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		// another replica may have won the race
		if ok, checkErr := s.api.BucketExists(ctx, s.bucket); checkErr == nil && ok {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "bucket", s.bucket), "s3 bucket created")
	}
	return nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := storage.ValidateKey(key); err != nil {
		return fmt.Errorf("%w: %q", err, key)
	}
	_, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := storage.ValidateKey(srcKey); err != nil {
		return fmt.Errorf("%w: %q", err, srcKey)
	}
	if err := storage.ValidateKey(dstKey); err != nil {
		return fmt.Errorf("%w: %q", err, dstKey)
	}
	_, err := s.api.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey},
	)
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", srcKey, dstKey, err)
	}
	return nil
}

// Delete relies on S3 semantics: removing a missing object succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return fmt.Errorf("%w: %q", err, key)
	}
	if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	var errs error
	for _, obj := range objects {
		errs = multierr.Append(errs, s.Delete(ctx, obj.Key))
	}
	return errs
}

func (s *Store) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	clean := storage.AsPrefix(prefix)
	if err := storage.ValidateKey(strings.TrimSuffix(clean, "/")); err != nil {
		return nil, fmt.Errorf("%w: %q", err, prefix)
	}
	objects := []storage.Object{}
	for info := range s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: clean, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, info.Err)
		}
		if strings.HasSuffix(info.Key, "/") {
			continue
		}
		objects = append(objects, storage.Object{
			Key:          info.Key,
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	return objects, nil
}

// EnsurePrefix is a no-op: object stores have no directories.
func (s *Store) EnsurePrefix(ctx context.Context, prefix string) error {
	if err := storage.ValidateKey(strings.Trim(prefix, "/")); err != nil {
		return fmt.Errorf("%w: %q", err, prefix)
	}
	return ctx.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
