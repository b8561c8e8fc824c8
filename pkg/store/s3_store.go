package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// s3NoSuchKey is the S3 error code for objects that don't exist.
const s3NoSuchKey = "NoSuchKey"

// ErrS3EndpointMissingScheme is returned if the S3 endpoint does not
// include a scheme.
var ErrS3EndpointMissingScheme = errors.New("S3 endpoint must include scheme (http:// or https://)")

var _ Store = &S3Store{}

// S3Config describes an S3-compatible object store, as recorded in the
// deployment descriptor.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Store reads objects from an S3-compatible object store.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store returns an S3Store talking to the endpoint described by cfg.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("unable to parse S3 endpoint %q: %w", cfg.Endpoint, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrS3EndpointMissingScheme, cfg.Endpoint)
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: u.Scheme == "https",
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create S3 client for %q: %w", cfg.Endpoint, err)
	}

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("unable to get s3://%v/%v: %w", s.bucket, key, err)
	}
	defer obj.Close()

	// GetObject is lazy, missing keys only surface on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == s3NoSuchKey {
			return nil, fmt.Errorf("%w: s3://%v/%v", ErrNotFound, s.bucket, key)
		}

		return nil, fmt.Errorf("unable to read s3://%v/%v: %w", s.bucket, key, err)
	}

	return data, nil
}

func (s *S3Store) Size(ctx context.Context, key string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == s3NoSuchKey {
			return 0, fmt.Errorf("%w: s3://%v/%v", ErrNotFound, s.bucket, key)
		}

		return 0, fmt.Errorf("unable to stat s3://%v/%v: %w", s.bucket, key, err)
	}

	return info.Size, nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == s3NoSuchKey {
			return false, nil
		}

		return false, fmt.Errorf("unable to stat s3://%v/%v: %w", s.bucket, key, err)
	}

	return true, nil
}
