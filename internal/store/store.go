// Package store defines the contract every object-store backend implements.
//
// Drivers live in sub-packages (awss3, minio, memory). Callers depend only on
// this package, never on a specific driver.
//
// Usage:
//
//	client, err := awss3.New(ctx, cfg.Store)
//	if err != nil { ... }
//
//	records, err := store.Drain(ctx, client, "my-bucket", "logs/")
package store

import (
	"context"
	"io"
	"time"

	"github.com/slmtnm/s3ranger/internal/pathkey"
)

// DeleteBatchSize is the maximum number of keys in a single DeleteObjects
// call, matching the S3 API limit.
const DeleteBatchSize = 1000

// Client is the interface all storage backends implement. Every method may
// return an *errs.Error whose kind is one of the store kinds.
type Client interface {
	// ListBuckets returns all buckets visible to the configured credentials.
	ListBuckets(ctx context.Context) ([]Bucket, error)

	// HeadBucket checks that bucket exists and is accessible.
	HeadBucket(ctx context.Context, bucket string) error

	// ListObjectsPage returns one page of objects whose keys start with
	// prefix, recursively (no delimiter grouping). Pass "" as token for the
	// first page; an empty Page.NextToken marks the last page.
	ListObjectsPage(ctx context.Context, bucket, prefix, token string) (Page, error)

	// GetObject opens a streaming reader on the object. The caller MUST close it.
	GetObject(ctx context.Context, loc pathkey.Location) (io.ReadCloser, error)

	// PutObject uploads size bytes from body to loc.
	PutObject(ctx context.Context, loc pathkey.Location, body io.Reader, size int64) error

	// DeleteObject removes a single object.
	DeleteObject(ctx context.Context, loc pathkey.Location) error

	// DeleteObjects removes up to DeleteBatchSize keys from bucket.
	DeleteObjects(ctx context.Context, bucket string, keys []string) error
}

// Bucket describes a storage bucket.
type Bucket struct {
	Name string

	// CreatedAt may be zero if the backend does not expose creation time.
	CreatedAt time.Time

	// Region is empty when the backend does not report it.
	Region string
}

// ObjectRecord is one raw entry of a listing. Values are immutable and
// created fresh for every fetch.
type ObjectRecord struct {
	Key          string
	Size         uint64
	LastModified time.Time
}

// Page is a single page of a listing.
type Page struct {
	Records   []ObjectRecord
	NextToken string
}
