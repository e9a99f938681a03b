// Package localfs wraps the local filesystem operations used by uploads and
// downloads. Filesystem failures are returned as errs.KindLocalIO errors.
package localfs

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/slmtnm/s3ranger/internal/errs"
)

// Entry describes a local file or directory.
type Entry struct {
	// Path is the absolute or caller-supplied path.
	Path string
	// Rel is the slash-separated path relative to the walked root.
	Rel   string
	Size  int64
	IsDir bool
}

// Stat describes path.
func Stat(path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, errs.Wrap(errs.KindLocalIO, "cannot access "+path, err)
	}
	return Entry{Path: path, Rel: info.Name(), Size: info.Size(), IsDir: info.IsDir()}, nil
}

// Walk returns every regular file under root in lexical order.
func Walk(root string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Path: path,
			Rel:  filepath.ToSlash(rel),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindLocalIO, "failed to walk "+root, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Rel < entries[j].Rel })
	return entries, nil
}

// Open opens path for reading.
func Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindLocalIO, "failed to open "+path, err)
	}
	return f, nil
}

// WriteFile streams r into path and returns the number of bytes written.
// The body lands in a temporary sibling that replaces path once complete.
// A failed write leaves any existing file at path untouched. Errors reading
// r keep their kind; a plain read error is reported as errs.KindStoreFailed.
func WriteFile(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := MkdirAll(dir); err != nil {
		return 0, err
	}
	f, err := os.CreateTemp(dir, partPrefix+"*")
	if err != nil {
		return 0, errs.Wrap(errs.KindLocalIO, "failed to create "+path, err)
	}
	tmp := f.Name()

	src := &trackedReader{r: r}
	n, err := io.Copy(f, src)
	if err == nil {
		err = f.Chmod(0o644)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		if src.err != nil {
			return n, errs.Wrap(errs.KindStoreFailed, "failed to read body for "+path, src.err)
		}
		return n, errs.Wrap(errs.KindLocalIO, "failed to write "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return n, errs.Wrap(errs.KindLocalIO, "failed to write "+path, err)
	}
	return n, nil
}

// partPrefix names the temporary files WriteFile creates.
const partPrefix = ".part-"

// trackedReader remembers the last non-EOF error of r.
type trackedReader struct {
	r   io.Reader
	err error
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// MkdirAll creates dir and its parents.
func MkdirAll(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.KindLocalIO, "failed to create directory "+dir, err)
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.KindLocalIO, "cannot resolve home directory", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
