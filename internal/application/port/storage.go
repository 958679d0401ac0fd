package port

import (
	"context"
	"time"
)

// BlobInfo describes a stored blob
type BlobInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// BlobStore stores opaque byte blobs keyed by a relative path such as
// "invoices/2024_05_01-张三-taxi-a1b2c3.pdf". Delete of a missing key is not
// an error.
type BlobStore interface {
	Save(ctx context.Context, key string, content []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	URL(key string) string
}
