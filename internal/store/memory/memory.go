// Package memory provides an in-memory implementation of store.Client.
//
// It backs the --demo mode and the tests of every package that talks to a
// store. Listings are paginated like a real backend so callers exercise
// their page-draining code.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/store"
)

// DefaultPageSize is the number of records returned per ListObjectsPage call.
const DefaultPageSize = 100

// ListHook runs before every ListObjectsPage call. Returning an error fails
// the call; blocking delays it.
type ListHook func(ctx context.Context, bucket, prefix, token string) error

type object struct {
	data     []byte
	modified time.Time
}

// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu       sync.RWMutex
	buckets  map[string]map[string]object
	created  map[string]time.Time
	pageSize int
	hook     ListHook
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets the listing page size.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithListHook installs a hook run before every page fetch.
func WithListHook(h ListHook) Option {
	return func(s *Store) { s.hook = h }
}

// WithClock overrides the modification-time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		buckets:  map[string]map[string]object{},
		created:  map[string]time.Time{},
		pageSize: DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Client = (*Store)(nil)

// CreateBucket adds an empty bucket. Creating an existing bucket is a no-op.
func (s *Store) CreateBucket(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; !ok {
		s.buckets[name] = map[string]object{}
		s.created[name] = s.now()
	}
}

// Put stores data under bucket/key, creating the bucket when needed.
func (s *Store) Put(bucket, key string, data []byte, modified time.Time) {
	s.CreateBucket(bucket)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucket][key] = object{data: append([]byte(nil), data...), modified: modified}
}

// Keys returns the sorted keys of bucket.
func (s *Store) Keys(bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.buckets[bucket]))
	for k := range s.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetListHook replaces the listing hook.
func (s *Store) SetListHook(h ListHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// --- store.Client implementation ---

func (s *Store) ListBuckets(ctx context.Context) ([]store.Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Bucket, 0, len(s.buckets))
	for name := range s.buckets {
		out = append(out, store.Bucket{Name: name, CreatedAt: s.created[name], Region: "memory"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) HeadBucket(ctx context.Context, bucket string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.buckets[bucket]; !ok {
		return errs.Newf(errs.KindNotFound, "bucket %q does not exist", bucket)
	}
	return nil
}

// ListObjectsPage uses the last key of the previous page as the token.
func (s *Store) ListObjectsPage(ctx context.Context, bucket, prefix, token string) (store.Page, error) {
	s.mu.RLock()
	hook := s.hook
	s.mu.RUnlock()
	if hook != nil {
		if err := hook(ctx, bucket, prefix, token); err != nil {
			return store.Page{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return store.Page{}, errs.Wrap(errs.KindTimeout, "failed to list objects", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		return store.Page{}, errs.Newf(errs.KindNotFound, "bucket %q does not exist", bucket)
	}

	keys := make([]string, 0, len(objects))
	for k := range objects {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var page store.Page
	if len(keys) > s.pageSize {
		keys = keys[:s.pageSize]
		page.NextToken = keys[len(keys)-1]
	}
	page.Records = make([]store.ObjectRecord, 0, len(keys))
	for _, k := range keys {
		o := objects[k]
		page.Records = append(page.Records, store.ObjectRecord{
			Key:          k,
			Size:         uint64(len(o.data)),
			LastModified: o.modified,
		})
	}
	return page, nil
}

func (s *Store) GetObject(ctx context.Context, loc pathkey.Location) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, ok := s.buckets[loc.Bucket]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "bucket %q does not exist", loc.Bucket)
	}
	o, ok := objects[loc.Key]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "object %s does not exist", loc)
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

func (s *Store) PutObject(ctx context.Context, loc pathkey.Location, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return errs.Wrap(errs.KindLocalIO, "failed to read upload body", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.buckets[loc.Bucket]
	if !ok {
		return errs.Newf(errs.KindNotFound, "bucket %q does not exist", loc.Bucket)
	}
	objects[loc.Key] = object{data: data, modified: s.now()}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, loc pathkey.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.buckets[loc.Bucket]
	if !ok {
		return errs.Newf(errs.KindNotFound, "bucket %q does not exist", loc.Bucket)
	}
	delete(objects, loc.Key)
	return nil
}

func (s *Store) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if len(keys) > store.DeleteBatchSize {
		return errs.Newf(errs.KindInvalidInput, "cannot delete %d keys in one batch", len(keys))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		return errs.Newf(errs.KindNotFound, "bucket %q does not exist", bucket)
	}
	for _, k := range keys {
		delete(objects, k)
	}
	return nil
}
