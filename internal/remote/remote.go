// Package remote abstracts the bucket-style object store that holds the
// shared DWG inventory. The sync engine only ever talks to the Store
// interface, keyed by slash-separated logical paths, so the concrete
// backend (S3-compatible, in-memory) stays swappable.
package remote

import (
	"context"
	"io"
	"time"
)

// Entry is a snapshot of one object in the remote store, taken at listing
// time. It is only valid within the reconciliation cycle that produced it.
type Entry struct {
	Path         string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Store is the capability interface over the remote object store.
//
// Listing is eventually consistent; per-object reads are read-after-write
// consistent. All operations honor ctx cancellation and deadlines.
type Store interface {
	// List returns a flattened listing of every object, deduplicated by
	// path. Pagination is handled internally.
	List(ctx context.Context) ([]*Entry, error)

	// Get opens the object at path for reading. Returns ErrNotFound if the
	// object does not exist. The caller owns the returned reader.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Put writes the object at path. size must match the body length.
	Put(ctx context.Context, path string, body io.Reader, size int64) (*Entry, error)

	// Delete removes the object at path. Returns ErrNotFound if it does
	// not exist; deleting an already-deleted object on a retry is a no-op.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)
}
