// Package store defines the storage adapter interface backup objects are
// uploaded through (spec.md §5), and provides local filesystem, S3, and B2
// implementations.
package store

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Download and Delete when the named object does
// not exist in the backend.
var ErrNotFound = errors.New("store: object not found")

// ObjectMetadata carries whatever integrity/size information a backend can
// report about a stored object (spec.md §6). SHA1 is left empty where the
// backend has no cheap way to supply it.
type ObjectMetadata struct {
	Size int64
	SHA1 string
}

// Store is the storage adapter interface every backend implements. Object
// names are repository-relative keys produced by codec.ObjectKey, e.g.
// "objects/ab3/ab34...".
type Store interface {
	// Upload writes content under name, replacing any existing object, and
	// reports the metadata the backend observed while doing so.
	Upload(ctx context.Context, name string, content io.Reader) (ObjectMetadata, error)

	// Download returns a reader for the named object and whatever metadata
	// the backend can report without reading the body. The caller must
	// close the reader. Returns ErrNotFound if the object doesn't exist.
	Download(ctx context.Context, name string) (io.ReadCloser, ObjectMetadata, error)

	// Delete removes the named object. Returns ErrNotFound if it doesn't
	// exist.
	Delete(ctx context.Context, name string) error

	// List returns the names of every object whose key has the given
	// prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
