// Package minio provides a MinIO implementation of store.Client.
//
// Usage:
//
//	drv, err := minio.New(&store.Config{EndpointURL: "http://localhost:9000", ...})
//	if err != nil { ... }
//
//	buckets, err := drv.ListBuckets(ctx)
package minio

import (
	"context"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/store"
)

// DefaultPageSize is the number of objects returned per ListObjectsPage call.
const DefaultPageSize = 1000

// Driver is a MinIO implementation of store.Client.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client   *miniogo.Client
	pageSize int
}

var _ store.Client = (*Driver)(nil)

// New creates a MinIO client from cfg. No request is made until the first
// call.
func New(cfg *store.Config) (*Driver, error) {
	host, secure, err := cfg.EndpointHost()
	if err != nil || host == "" {
		return nil, errs.Wrap(errs.KindInvalidInput, "minio requires a valid endpoint URL", err)
	}

	lookup := miniogo.BucketLookupAuto
	if cfg.UsePathStyle {
		lookup = miniogo.BucketLookupPath
	}

	client, err := miniogo.New(host, &miniogo.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "failed to create minio client", err)
	}

	return &Driver{client: client, pageSize: DefaultPageSize}, nil
}

// --- store.Client implementation ---

// ListBuckets returns all buckets accessible with the configured credentials.
func (d *Driver) ListBuckets(ctx context.Context) ([]store.Bucket, error) {
	raw, err := d.client.ListBuckets(ctx)
	if err != nil {
		return nil, mapError(err, "failed to list buckets")
	}

	buckets := make([]store.Bucket, len(raw))
	for i, b := range raw {
		buckets[i] = store.Bucket{
			Name:      b.Name,
			CreatedAt: b.CreationDate,
		}
	}
	return buckets, nil
}

// HeadBucket checks that bucket exists.
func (d *Driver) HeadBucket(ctx context.Context, bucket string) error {
	ok, err := d.client.BucketExists(ctx, bucket)
	if err != nil {
		return mapError(err, "failed to access bucket '"+bucket+"'")
	}
	if !ok {
		return errs.Newf(errs.KindNotFound, "bucket '%s' does not exist", bucket)
	}
	return nil
}

// ListObjectsPage reads up to pageSize objects from the recursive listing
// channel. MinIO hides continuation tokens behind the channel, so the last
// key of a full page is returned as the token and used as StartAfter.
func (d *Driver) ListObjectsPage(ctx context.Context, bucket, prefix, token string) (store.Page, error) {
	// Cancelling stops the listing goroutine when we leave early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := miniogo.ListObjectsOptions{
		Prefix:     prefix,
		Recursive:  true,
		StartAfter: token,
	}

	var page store.Page
	for obj := range d.client.ListObjects(ctx, bucket, opts) {
		if obj.Err != nil {
			return store.Page{}, mapError(obj.Err, "failed to list objects")
		}

		size := obj.Size
		if size < 0 {
			size = 0
		}
		page.Records = append(page.Records, store.ObjectRecord{
			Key:          obj.Key,
			Size:         uint64(size),
			LastModified: obj.LastModified,
		})

		if len(page.Records) >= d.pageSize {
			page.NextToken = obj.Key
			break
		}
	}
	return page, nil
}

// GetObject opens a streaming handle to the object. The caller MUST close it.
func (d *Driver) GetObject(ctx context.Context, loc pathkey.Location) (io.ReadCloser, error) {
	obj, err := d.client.GetObject(ctx, loc.Bucket, loc.Key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapError(err, "failed to get object")
	}
	return obj, nil
}

// PutObject uploads size bytes from body. A negative size streams the body
// as a multipart upload.
func (d *Driver) PutObject(ctx context.Context, loc pathkey.Location, body io.Reader, size int64) error {
	_, err := d.client.PutObject(ctx, loc.Bucket, loc.Key, body, size, miniogo.PutObjectOptions{})
	if err != nil {
		return mapError(err, "failed to put object")
	}
	return nil
}

// DeleteObject removes a single object.
func (d *Driver) DeleteObject(ctx context.Context, loc pathkey.Location) error {
	if err := d.client.RemoveObject(ctx, loc.Bucket, loc.Key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// DeleteObjects removes a batch of keys and reports the first failure.
func (d *Driver) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if len(keys) > store.DeleteBatchSize {
		return errs.Newf(errs.KindInvalidInput, "cannot delete %d keys in one batch", len(keys))
	}

	objects := make(chan miniogo.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- miniogo.ObjectInfo{Key: k}
	}
	close(objects)

	var first error
	failed := 0
	for rerr := range d.client.RemoveObjects(ctx, bucket, objects, miniogo.RemoveObjectsOptions{}) {
		if rerr.Err == nil {
			continue
		}
		failed++
		if first == nil {
			first = mapError(rerr.Err, "failed to delete "+rerr.ObjectName)
		}
	}
	if first != nil {
		return errs.Wrap(errs.KindStoreFailed, fmt.Sprintf("failed to delete %d of %d objects", failed, len(keys)), first)
	}
	return nil
}
