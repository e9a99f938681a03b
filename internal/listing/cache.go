// Package listing holds the last fetched flat object listing of a bucket and
// projects it into folder and file rows for a prefix.
//
// A Cache is not safe for concurrent use. It belongs to the goroutine that
// owns navigation state.
package listing

import (
	"sort"
	"strings"

	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/store"
)

// Cache is the most recent raw listing plus the scope it was fetched for.
type Cache struct {
	bucket  string
	scope   string
	records []store.ObjectRecord
	loaded  bool
	version uint64
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// SetRawListing replaces the cached listing. scope is the prefix the records
// were fetched under, "" for a whole bucket.
func (c *Cache) SetRawListing(bucket, scope string, records []store.ObjectRecord) {
	c.bucket = bucket
	c.scope = scope
	c.records = append([]store.ObjectRecord(nil), records...)
	c.loaded = true
	c.version++
}

// Clear drops the cached listing.
func (c *Cache) Clear() {
	c.bucket = ""
	c.scope = ""
	c.records = nil
	c.loaded = false
	c.version++
}

// Bucket returns the bucket of the cached listing.
func (c *Cache) Bucket() string { return c.bucket }

// Scope returns the prefix the cached listing was fetched under.
func (c *Cache) Scope() string { return c.scope }

// Len returns the number of cached records.
func (c *Cache) Len() int { return len(c.records) }

// Loaded reports whether a listing has been stored since the last Clear.
func (c *Cache) Loaded() bool { return c.loaded }

// Version changes every time the cached listing is replaced or cleared.
func (c *Cache) Version() uint64 { return c.version }

// Covers reports whether the cache holds every key of bucket under prefix.
func (c *Cache) Covers(bucket, prefix string) bool {
	return c.loaded && c.bucket == bucket && strings.HasPrefix(prefix, c.scope)
}

// DeriveView projects the cached records onto prefix. The result starts with
// a parent row when prefix is non-empty, followed by folders and then files,
// each group in byte-wise name order. Folder sizes are summed and their
// modification time is the latest of the contained records.
func (c *Cache) DeriveView(prefix string) []EntryRow {
	folders := map[string]*EntryRow{}
	var files []EntryRow

	for _, r := range c.records {
		rest, ok := strings.CutPrefix(r.Key, prefix)
		if !ok || rest == "" {
			continue
		}

		name, _, nested := strings.Cut(rest, pathkey.Separator)
		if !nested {
			files = append(files, EntryRow{
				Name:         name,
				Kind:         KindFile,
				Size:         r.Size,
				LastModified: r.LastModified,
			})
			continue
		}
		if name == "" {
			// "prefix//x" has no enterable folder name.
			continue
		}

		f, ok := folders[name]
		if !ok {
			f = &EntryRow{Name: name, Kind: KindFolder}
			folders[name] = f
		}
		f.Size += r.Size
		if r.LastModified.After(f.LastModified) {
			f.LastModified = r.LastModified
		}
	}

	rows := make([]EntryRow, 0, len(folders)+len(files)+1)
	if prefix != "" {
		rows = append(rows, parentRow())
	}

	names := make([]string, 0, len(folders))
	for name := range folders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rows = append(rows, *folders[name])
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return append(rows, files...)
}
