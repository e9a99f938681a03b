// Package pathkey parses and builds canonical store locations of the form
// s3://bucket/key.
package pathkey

import (
	"strings"

	"github.com/slmtnm/s3ranger/internal/errs"
)

// Scheme is the URI scheme used for every store location.
const Scheme = "s3"

const (
	schemeSep = "://"
	// Separator splits keys into virtual folders.
	Separator = "/"
)

// Location addresses a bucket, a folder prefix or a single object.
// Bucket is non-empty whenever Key is non-empty.
type Location struct {
	Bucket string
	Key    string
}

// Parse splits uri into bucket and key. Only the single separator after the
// bucket is stripped, so keys that begin with "/" survive a round trip.
// Keys are taken verbatim; no percent-decoding is applied.
func Parse(uri string) (Location, error) {
	scheme, rest, ok := strings.Cut(uri, schemeSep)
	if !ok {
		if uri == "" {
			return Location{}, nil
		}
		return Location{}, errs.Newf(errs.KindMalformedURI, "malformed store location %q: missing %s%s", uri, Scheme, schemeSep)
	}
	if scheme == "" {
		return Location{}, errs.Newf(errs.KindMalformedURI, "malformed store location %q: missing scheme", uri)
	}
	if scheme != Scheme {
		return Location{}, errs.Newf(errs.KindMalformedURI, "malformed store location %q: unsupported scheme %q", uri, scheme)
	}

	bucket, key, _ := strings.Cut(rest, Separator)
	if bucket == "" && key != "" {
		return Location{}, errs.Newf(errs.KindMalformedURI, "malformed store location %q: missing bucket", uri)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(uri string) Location {
	loc, err := Parse(uri)
	if err != nil {
		panic(err)
	}
	return loc
}

// Build returns s3://bucket when key is empty and s3://bucket/key otherwise.
func Build(bucket, key string) string {
	if key == "" {
		return Scheme + schemeSep + bucket
	}
	return Scheme + schemeSep + bucket + Separator + key
}

// New is a constructor mirroring Build.
func New(bucket, key string) Location {
	return Location{Bucket: bucket, Key: key}
}

// String returns the canonical URI.
func (l Location) String() string {
	return Build(l.Bucket, l.Key)
}

// IsZero reports whether no bucket is set.
func (l Location) IsZero() bool {
	return l.Bucket == ""
}

// IsFolder reports whether the location names a bucket root or a prefix.
func (l Location) IsFolder() bool {
	return l.Key == "" || strings.HasSuffix(l.Key, Separator)
}

// Name returns the last path segment, without a trailing separator. The
// bucket name is returned for a bucket root.
func (l Location) Name() string {
	if l.Key == "" {
		return l.Bucket
	}
	k := strings.TrimSuffix(l.Key, Separator)
	if i := strings.LastIndex(k, Separator); i >= 0 {
		return k[i+1:]
	}
	return k
}

// Join appends name to a folder location. A trailing separator on name is
// preserved, so Join("sub/") yields another folder.
func (l Location) Join(name string) Location {
	key := l.Key
	if key != "" && !strings.HasSuffix(key, Separator) {
		key += Separator
	}
	return Location{Bucket: l.Bucket, Key: key + name}
}
