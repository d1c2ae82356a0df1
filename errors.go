package fragmat

import (
	"github.com/fragmat/fragmat/arrays"
	"github.com/fragmat/fragmat/bed"
	"github.com/fragmat/fragmat/fragment"
	"github.com/fragmat/fragmat/matrix"
)

// Aliases for the sentinel errors of the subpackages, so callers can match
// the common failure modes with errors.Is from one import.
var (
	// ErrUnsorted reports input that violates the sort invariant: fragment
	// starts must be nondecreasing within a chromosome, matrix rows
	// strictly ascending within a column.
	ErrUnsorted = fragment.ErrUnsorted

	// ErrNotSeekable reports a Seek on a source without random access.
	ErrNotSeekable = fragment.ErrNotSeekable

	// ErrVersionMismatch reports a store whose version tag names a layout
	// this build does not understand.
	ErrVersionMismatch = arrays.ErrVersionMismatch

	// ErrUnsupportedEncoding reports an array or store read with the wrong
	// element type.
	ErrUnsupportedEncoding = arrays.ErrUnsupportedEncoding

	// ErrDimensionMismatch reports incompatible shapes, such as
	// concatenating matrices with different column counts or seeking past
	// the last column.
	ErrDimensionMismatch = matrix.ErrDimensionMismatch

	// ErrMalformedRecord reports an unparseable text fragment record.
	ErrMalformedRecord = bed.ErrMalformedRecord
)
