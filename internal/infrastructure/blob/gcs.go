package blob

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

const gcsPublicBase = "https://storage.googleapis.com"

type GCSOptions struct {
	Bucket          string
	CredentialsJSON string
	PublicBaseURL   string
}

type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
	// newWriter opens the object writer; the upload is committed on Close and
	// dropped when ctx is cancelled first.
	newWriter func(ctx context.Context, key string, contentType string) io.WriteCloser
}

var _ ports.BlobStore = (*GCSStore)(nil)

// NewGCSStore uses application default credentials unless explicit JSON is given.
func NewGCSStore(ctx context.Context, opts GCSOptions) (*GCSStore, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var clientOpts []option.ClientOption
	if creds := strings.TrimSpace(opts.CredentialsJSON); creds != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(creds)))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, errs.Wrap(err, "create gcs client")
	}

	baseURL := strings.TrimSpace(opts.PublicBaseURL)
	if baseURL == "" {
		baseURL = gcsPublicBase
	}
	store := &GCSStore{client: client, bucket: opts.Bucket, baseURL: baseURL}
	store.newWriter = func(ctx context.Context, key string, contentType string) io.WriteCloser {
		wc := client.Bucket(opts.Bucket).Object(key).NewWriter(ctx)
		wc.ContentType = contentType
		return wc
	}
	return store, nil
}

func (s *GCSStore) Put(ctx context.Context, obj ports.BlobObject) (string, error) {
	if strings.TrimSpace(obj.Key) == "" {
		return "", errors.New("object key is required")
	}

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wc := s.newWriter(writeCtx, obj.Key, obj.ContentType)
	if _, err := io.Copy(wc, obj.Body); err != nil {
		cancel()
		_ = wc.Close()
		return "", errs.Wrapf(err, "write object %q", obj.Key)
	}
	if err := wc.Close(); err != nil {
		return "", errs.Wrapf(err, "close object %q", obj.Key)
	}
	return joinURL(s.baseURL, s.bucket, obj.Key), nil
}

func (s *GCSStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
