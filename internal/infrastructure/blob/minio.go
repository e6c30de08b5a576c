package blob

import (
	"context"
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

type MinioOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	CreateBucket  bool
}

type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

var _ ports.BlobStore = (*MinioStore)(nil)

func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("minio bucket is required")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, errs.Wrap(err, "create minio client")
	}

	if opts.CreateBucket {
		exists, err := client.BucketExists(ctx, opts.Bucket)
		if err != nil {
			return nil, errs.Wrap(err, "check minio bucket")
		}
		if !exists {
			if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, errs.Wrapf(err, "create minio bucket %q", opts.Bucket)
			}
		}
	}

	baseURL := strings.TrimSpace(opts.PublicBaseURL)
	if baseURL == "" {
		baseURL = client.EndpointURL().String()
	}
	return &MinioStore{client: client, bucket: opts.Bucket, baseURL: baseURL}, nil
}

func (s *MinioStore) Put(ctx context.Context, obj ports.BlobObject) (string, error) {
	if strings.TrimSpace(obj.Key) == "" {
		return "", errors.New("object key is required")
	}
	size := obj.Size
	if size <= 0 {
		size = -1
	}

	if _, err := s.client.PutObject(ctx, s.bucket, obj.Key, obj.Body, size, minio.PutObjectOptions{
		ContentType: obj.ContentType,
	}); err != nil {
		return "", errs.Wrapf(err, "put object %q", obj.Key)
	}
	return joinURL(s.baseURL, s.bucket, obj.Key), nil
}
