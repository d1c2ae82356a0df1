// Package matstore persists sparse column-major matrices in a blob store and
// serves them back through matrix.Source cursors.
//
// Two layouts:
//
//   - unpacked-matrix-v1 stores indices, data and indptr as plain arrays, the
//     data array tagged with its element type (uint32 counts or float64).
//   - packed-matrix-v1 (uint32 only) stores entries in pfor blocks of up to
//     128 values. Blocks never span a column boundary, so SeekCol decodes at
//     most one block before serving values: col_ptr maps each column to its
//     block range, row_starts holds the first row id of each block and the
//     row_idx / val_idx tables hold per-block byte offsets.
package matstore

import (
	"errors"

	"github.com/fragmat/fragmat/pfor"
)

// Format version tags stored in the version blob.
const (
	VersionUnpacked = "unpacked-matrix-v1"
	VersionPacked   = "packed-matrix-v1"
)

// BlockSize is the maximum entry count per packed block.
const BlockSize = pfor.BlockSize

var (
	// ErrFinalized is returned when appending to a finalized writer.
	ErrFinalized = errors.New("matstore: writer already finalized")

	// ErrPackedNeedsUints is returned when the packed layout is requested
	// for a float64 matrix.
	ErrPackedNeedsUints = errors.New("matstore: packed layout requires uint32 values")

	// ErrCorrupted is returned when a store's arrays are inconsistent.
	ErrCorrupted = errors.New("matstore: corrupted store")
)

const (
	blobShape    = "shape"
	blobIndptr   = "indptr"
	blobIndices  = "indices"
	blobData     = "data"
	blobRowNames = "row_names"
	blobColNames = "col_names"

	blobColPtr    = "col_ptr"
	blobRowStarts = "row_starts"
	blobRowData   = "row_data"
	blobRowIdx    = "row_idx"
	blobValData   = "val_data"
	blobValIdx    = "val_idx"
)
