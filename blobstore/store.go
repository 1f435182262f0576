// Package blobstore abstracts where compression artifacts (codebooks,
// encoded streams, lossy sidecars) are kept: local disk, memory, or an
// object store.
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when an artifact does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store reads and writes whole artifacts. Artifacts are immutable once
// written; Put replaces atomically where the backend allows.
type Store interface {
	// Put writes an artifact under name.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads the artifact stored under name.
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns artifact names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes an artifact. Deleting a missing artifact is not an
	// error.
	Delete(ctx context.Context, name string) error
}
