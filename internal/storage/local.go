package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// LocalStore keeps objects as files below a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: filepath.Clean(root)}
}

func (s *LocalStore) URI() string {
	return "file://" + filepath.ToSlash(s.root)
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *LocalStore) Glob(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.root, err)
	}

	matches, err := doublestar.Glob(os.DirFS(s.root), pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s/%s: %w", s.URI(), pattern, err)
	}

	keys := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(s.path(m))
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", m, err)
		}
		if info.Mode().IsRegular() {
			keys = append(keys, m)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", s.URI(), pattern, ErrNoMatch)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

// Put writes body to a temp file next to the target and renames it into place.
func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) RemoveAll(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := s.path(prefix)
	if filepath.Clean(target) == s.root {
		return fmt.Errorf("refusing to remove store root %s", s.root)
	}
	if err := os.RemoveAll(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", prefix, err)
	}
	return nil
}
