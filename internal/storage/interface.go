package storage

import (
	"context"
	"io"
)

// ObjectStorage is the bucket the generation mirror writes to
type ObjectStorage interface {
	// EnsureBucket creates the bucket when the provider allows it
	EnsureBucket(ctx context.Context) error

	// Upload stores an object, replacing any previous version
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// List returns the keys under prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// GetURL returns the URL a frame or dashboard can fetch the object from
	GetURL(key string) string

	// Delete removes an object
	Delete(ctx context.Context, key string) error
}
