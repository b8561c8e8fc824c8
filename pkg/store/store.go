// Package store provides read-only access to the physical objects of a
// binary cache deployment: flat NAR files and CDC chunks, stored under
// two-level hash-sharded keys on a local filesystem or in an S3-compatible
// bucket.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned if the requested object does not exist in the store.
var ErrNotFound = errors.New("object not found")

// Store is a read-only view on a storage backend.
type Store interface {
	// Read returns the raw bytes stored at key.
	// The error chain contains ErrNotFound if the object is absent.
	Read(ctx context.Context, key string) ([]byte, error)

	// Size returns the stored byte size at key without reading the object.
	// The error chain contains ErrNotFound if the object is absent.
	Size(ctx context.Context, key string) (int64, error)

	// Exists reports whether an object is stored at key. Absence is not
	// an error here.
	Exists(ctx context.Context, key string) (bool, error)
}
