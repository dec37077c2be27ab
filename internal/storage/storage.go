package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// ErrNoMatch is returned by Glob when no object matches the pattern.
var ErrNoMatch = errors.New("no objects match pattern")

// Store is an object store rooted at a Location. Keys are '/'-separated and
// relative to the root.
type Store interface {
	// Glob returns the keys matching pattern, sorted. '*' does not cross '/'.
	Glob(ctx context.Context, pattern string) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, body io.Reader) error
	// RemoveAll deletes every object under prefix. Missing prefixes are not an error.
	RemoveAll(ctx context.Context, prefix string) error
	URI() string
}

type Scheme string

const (
	SchemeS3    Scheme = "s3"
	SchemeLocal Scheme = "file"
)

// Location is a parsed storage URI.
type Location struct {
	Scheme Scheme
	// Bucket is empty for local locations.
	Bucket string
	// Prefix is the key prefix inside the bucket, or the directory for
	// local locations. S3 prefixes carry no leading slash.
	Prefix string
}

// ParseLocation accepts s3://, s3a://, s3n://, file:// URIs and bare paths.
func ParseLocation(uri string) (Location, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Location{}, errors.New("empty storage uri")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: SchemeLocal, Prefix: filepath.Clean(uri)}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("parse storage uri %q: %w", uri, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "s3", "s3a", "s3n":
		if u.Host == "" {
			return Location{}, fmt.Errorf("storage uri %q has no bucket", uri)
		}
		return Location{
			Scheme: SchemeS3,
			Bucket: u.Host,
			Prefix: strings.TrimPrefix(u.Path, "/"),
		}, nil
	case "file":
		p := u.Path
		if u.Host != "" {
			p = path.Join(u.Host, u.Path)
		}
		if p == "" {
			return Location{}, fmt.Errorf("storage uri %q has no path", uri)
		}
		return Location{Scheme: SchemeLocal, Prefix: filepath.Clean(p)}, nil
	default:
		return Location{}, fmt.Errorf("unsupported storage scheme %q", u.Scheme)
	}
}

// Child returns the location of a sub path.
func (l Location) Child(rel string) Location {
	child := l
	switch l.Scheme {
	case SchemeS3:
		child.Prefix = JoinKey(l.Prefix, rel)
	default:
		child.Prefix = filepath.Join(l.Prefix, filepath.FromSlash(rel))
	}
	return child
}

func (l Location) String() string {
	switch l.Scheme {
	case SchemeS3:
		return "s3://" + l.Bucket + "/" + l.Prefix
	default:
		return "file://" + filepath.ToSlash(l.Prefix)
	}
}

// JoinKey joins key segments with '/', dropping empty segments and stray
// slashes.
func JoinKey(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

// staticPrefix returns the part of a glob pattern before the first segment
// that contains a meta character.
func staticPrefix(pattern string) string {
	segments := strings.Split(pattern, "/")
	fixed := make([]string, 0, len(segments))
	for _, seg := range segments[:len(segments)-1] {
		if strings.ContainsAny(seg, `*?[{\`) {
			break
		}
		fixed = append(fixed, seg)
	}
	if len(fixed) == 0 {
		return ""
	}
	return strings.Join(fixed, "/") + "/"
}
