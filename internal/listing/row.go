package listing

import "time"

// ParentName is the display name of the parent link row.
const ParentName = ".."

// Kind tags an EntryRow.
type Kind int

const (
	KindFolder Kind = iota
	KindFile
	KindParent
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	case KindParent:
		return "parent"
	default:
		return "unknown"
	}
}

// EntryRow is one row of a derived view. Parent rows carry no size or
// modification time.
type EntryRow struct {
	Name         string
	Kind         Kind
	Size         uint64
	LastModified time.Time
}

// HasMeta reports whether Size and LastModified are meaningful.
func (r EntryRow) HasMeta() bool {
	return r.Kind != KindParent
}

func parentRow() EntryRow {
	return EntryRow{Name: ParentName, Kind: KindParent}
}
