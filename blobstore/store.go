// Package blobstore abstracts access to the byte blobs that hold
// quantization-schema documents.
//
// Schema documents are small (a few KB per feature space) and immutable
// once written, so the interface is deliberately whole-blob: Get returns
// the full payload, Put replaces it atomically where the backend allows.
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for reading and writing schema blobs.
type Store interface {
	// Get returns the full contents of the named blob.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put writes the named blob, replacing any previous contents.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes the named blob. Deleting a missing blob is not an
	// error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
