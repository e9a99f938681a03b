// Package selection maps row indexes of the displayed table back to the
// entries and store locations they represent.
package selection

import (
	"github.com/slmtnm/s3ranger/internal/listing"
	"github.com/slmtnm/s3ranger/internal/pathkey"
)

// Tracker is rebuilt wholesale whenever the displayed rows change.
// It is not safe for concurrent use.
type Tracker struct {
	bucket string
	prefix string
	rows   []listing.EntryRow
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// Rebuild replaces the mapping with rows shown for bucket at prefix.
func (t *Tracker) Rebuild(bucket, prefix string, rows []listing.EntryRow) {
	t.bucket = bucket
	t.prefix = prefix
	t.rows = append([]listing.EntryRow(nil), rows...)
}

// Clear empties the mapping.
func (t *Tracker) Clear() {
	t.Rebuild("", "", nil)
}

// Len returns the number of rows.
func (t *Tracker) Len() int { return len(t.rows) }

// Rows returns a copy of the current rows.
func (t *Tracker) Rows() []listing.EntryRow {
	return append([]listing.EntryRow(nil), t.rows...)
}

// RowAt returns the row at index i.
func (t *Tracker) RowAt(i int) (listing.EntryRow, bool) {
	if i < 0 || i >= len(t.rows) {
		return listing.EntryRow{}, false
	}
	return t.rows[i], true
}

// LocationFor returns the store location of the row at index i. Parent rows
// and out-of-range indexes have no location.
func (t *Tracker) LocationFor(i int) (pathkey.Location, bool) {
	row, ok := t.RowAt(i)
	if !ok {
		return pathkey.Location{}, false
	}

	switch row.Kind {
	case listing.KindFolder:
		return pathkey.New(t.bucket, t.prefix+row.Name+pathkey.Separator), true
	case listing.KindFile:
		return pathkey.New(t.bucket, t.prefix+row.Name), true
	case listing.KindParent:
		return pathkey.Location{}, false
	default:
		return pathkey.Location{}, false
	}
}

// IndexOf returns the index of the row with the given name and kind, or -1.
func (t *Tracker) IndexOf(name string, kind listing.Kind) int {
	for i, r := range t.rows {
		if r.Name == name && r.Kind == kind {
			return i
		}
	}
	return -1
}
