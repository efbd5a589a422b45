// Package local implements store.Store on top of the plain filesystem,
// laying objects out under a base directory using the same key each object
// already carries (e.g. "objects/ab3/ab34...").
package local

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/coldvault/coldvault/pkg/store"
)

// Store is a filesystem-backed store.Store.
type Store struct {
	baseDir string
}

// New returns a local filesystem store rooted at baseDir, creating it if
// necessary.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("local store: create base dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(name))
}

// Upload writes content to a temp file in the destination directory and
// renames it into place, so a crash mid-write never leaves a partial object
// visible under its final name.
func (s *Store) Upload(ctx context.Context, name string, content io.Reader) (store.ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return store.ObjectMetadata{}, err
	}

	dest := s.path(name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return store.ObjectMetadata{}, fmt.Errorf("local store: create dir for %q: %w", name, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return store.ObjectMetadata{}, fmt.Errorf("local store: create temp file for %q: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	digest := sha1.New()
	n, err := io.Copy(tmp, io.TeeReader(content, digest))
	if err != nil {
		tmp.Close()
		return store.ObjectMetadata{}, fmt.Errorf("local store: write %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return store.ObjectMetadata{}, fmt.Errorf("local store: close %q: %w", name, err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return store.ObjectMetadata{}, fmt.Errorf("local store: rename into place %q: %w", name, err)
	}
	return store.ObjectMetadata{Size: n, SHA1: hex.EncodeToString(digest.Sum(nil))}, nil
}

// Download opens the named object for reading.
func (s *Store) Download(ctx context.Context, name string) (io.ReadCloser, store.ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.ObjectMetadata{}, err
	}

	f, err := os.Open(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ObjectMetadata{}, store.ErrNotFound
		}
		return nil, store.ObjectMetadata{}, fmt.Errorf("local store: open %q: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, store.ObjectMetadata{}, fmt.Errorf("local store: stat %q: %w", name, err)
	}
	return f, store.ObjectMetadata{Size: info.Size()}, nil
}

// Delete removes the named object.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return store.ErrNotFound
		}
		return fmt.Errorf("local store: delete %q: %w", name, err)
	}
	return nil
}

// List walks the base directory collecting every object whose key starts
// with prefix. prefix may name a directory, a file, or a partial name of
// either, mirroring the semantics backathon's FilesystemStorage uses to stay
// API-compatible with its B2 backend.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	base := s.path(prefix)

	info, err := os.Stat(base)
	switch {
	case err == nil && !info.IsDir():
		// Exact file match.
		rel, relErr := filepath.Rel(s.baseDir, base)
		if relErr != nil {
			return nil, fmt.Errorf("local store: list %q: %w", prefix, relErr)
		}
		return []string{filepath.ToSlash(rel)}, nil
	case err == nil && info.IsDir():
		return s.walkDir(base)
	}

	// Not an exact path; treat the last component as a name prefix within
	// its parent directory.
	parent := filepath.Dir(base)
	namePrefix := filepath.Base(base)

	entries, err := os.ReadDir(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("local store: list %q: %w", prefix, err)
	}

	var names []string
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), namePrefix) {
			continue
		}
		full := filepath.Join(parent, entry.Name())
		if entry.IsDir() {
			found, err := s.walkDir(full)
			if err != nil {
				return nil, err
			}
			names = append(names, found...)
			continue
		}
		rel, err := filepath.Rel(s.baseDir, full)
		if err != nil {
			return nil, fmt.Errorf("local store: list %q: %w", prefix, err)
		}
		names = append(names, filepath.ToSlash(rel))
	}
	return names, nil
}

func (s *Store) walkDir(dir string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local store: walk %q: %w", dir, err)
	}
	return names, nil
}

var _ store.Store = (*Store)(nil)
