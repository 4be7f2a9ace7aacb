// Package objstore abstracts the bucket holding incoming and archived
// spreadsheet files.
package objstore

import (
	"context"
	"time"
)

// Metadata describes a stored object.
type Metadata struct {
	Key          string
	SizeBytes    int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Custom       map[string]string
}

// Store is the object-storage capability the pipeline depends on.
type Store interface {
	// Download fetches the object into a local file and returns its path.
	Download(ctx context.Context, key string) (string, error)
	Upload(ctx context.Context, localPath, key string) error
	Copy(ctx context.Context, sourceKey, destKey string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Head(ctx context.Context, key string) (*Metadata, error)
}
