package ports

import (
	"context"
	"io"
)

type BlobObject struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
}

// BlobStore is the upload backend for submission files.
type BlobStore interface {
	// Put stores the object and returns its durable url.
	Put(ctx context.Context, obj BlobObject) (string, error)
}
