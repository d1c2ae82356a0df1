package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations must return an error that satisfies
// `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("blobstore: blob not found")

// BlobStore is an abstraction for storing and retrieving the immutable named
// byte arrays that make up a finalized fragment or matrix store.
type BlobStore interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a new blob for streaming writes. The blob becomes
	// visible atomically when the returned writer is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a complete blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to an immutable blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the size of the blob in bytes.
	Size() int64

	// Close releases the handle.
	Close() error
}

// WritableBlob is a write-only handle to a blob under construction.
type WritableBlob interface {
	io.Writer

	// Sync flushes written data to stable storage where supported.
	Sync() error

	// Close finalizes the blob. The data is not visible until Close
	// returns nil.
	Close() error
}

// Mappable is an optional interface for Blobs whose contents are directly
// addressable in memory (memory-mapped files, in-memory stores). The returned
// slice is valid until the Blob is closed and must not be modified.
type Mappable interface {
	Bytes() []byte
}

// ReadAll reads the complete contents of a named blob.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	buf := make([]byte, b.Size())
	if len(buf) == 0 {
		return buf, nil
	}
	n, err := b.ReadAt(ctx, buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}
