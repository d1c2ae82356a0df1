// Package fragstore persists sorted fragments as columnar arrays in a blob
// store and serves them back through a seekable fragment.Source.
//
// Two on-disk layouts share the same metadata arrays:
//
//   - unpacked-fragments-v1 stores the cell, start and end columns as plain
//     uint32 arrays.
//   - packed-fragments-v1 stores the columns in 128-fragment pfor blocks:
//     starts as zigzag deltas against a per-block base, ends as lengths
//     (end - start), cells verbatim. Byte-offset tables per column allow
//     decoding a single block.
//
// The chr_ptr table maps each chromosome to its [first, last) global fragment
// range; end_max holds the maximum end coordinate per 128-fragment block, so
// Seek can discard whole blocks that cannot overlap the target position.
package fragstore

import (
	"errors"

	"github.com/fragmat/fragmat/pfor"
)

// Format version tags stored in the version blob.
const (
	VersionUnpacked = "unpacked-fragments-v1"
	VersionPacked   = "packed-fragments-v1"
)

// BlockSize is the fragment count per packed block and per end_max entry.
const BlockSize = pfor.BlockSize

var (
	// ErrFinalized is returned when appending to a finalized writer.
	ErrFinalized = errors.New("fragstore: writer already finalized")

	// ErrNoCellNames is returned by Finalize when the cell name table was
	// never provided. Downstream aggregation needs a known cell count.
	ErrNoCellNames = errors.New("fragstore: cell names not set")

	// ErrCorrupted is returned when a store's arrays are inconsistent.
	ErrCorrupted = errors.New("fragstore: corrupted store")
)

// Blob names shared by both layouts.
const (
	blobChrPtr    = "chr_ptr"
	blobEndMax    = "end_max"
	blobChrNames  = "chr_names"
	blobCellNames = "cell_names"
)

// Unpacked column blobs.
const (
	blobCell  = "cell"
	blobStart = "start"
	blobEnd   = "end"
)

// Packed column blobs.
const (
	blobCellData    = "cell_data"
	blobCellIdx     = "cell_idx"
	blobStartData   = "start_data"
	blobStartIdx    = "start_idx"
	blobStartStarts = "start_starts"
	blobEndData     = "end_data"
	blobEndIdx      = "end_idx"
)
