// Package blobstore abstracts the storage backend holding the named,
// immutable byte arrays of finalized fragment and matrix stores.
//
// A store directory is just a flat namespace of blobs (one per column array
// plus a version tag). Backends:
//
//   - MemoryStore: in-memory, for tests and transient pipelines
//   - LocalStore: local filesystem with memory-mapped reads and atomic
//     temp-file-plus-rename writes
//   - CompressedStore: wraps another backend with per-blob LZ4/zstd framing
//   - CachingStore: block-level read cache in front of a remote backend
//   - s3.Store, minio.Store: object storage backends (subpackages)
//
// All operations take a context and block synchronously; retry policy belongs
// to the backend SDKs, not to this layer.
package blobstore
