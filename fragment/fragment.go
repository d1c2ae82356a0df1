// Package fragment defines the streaming cursor contract for sorted genomic
// fragments, plus in-memory and filtering implementations.
//
// A fragment is a half-open interval [start, end) on a chromosome, tagged
// with the cell it came from. Sources iterate chromosome by chromosome and,
// within a chromosome, in non-decreasing start order. Iteration follows the
// bufio.Scanner idiom: the boolean advance methods report exhaustion, and
// Err() distinguishes clean exhaustion from failure.
package fragment

import "errors"

var (
	// ErrUnsorted is returned when fragments violate the required order:
	// each chromosome visited once, starts non-decreasing within it.
	ErrUnsorted = errors.New("fragment: fragments out of order")

	// ErrNotSeekable is returned by Seek on sources without random access.
	ErrNotSeekable = errors.New("fragment: source does not support seeking")

	// ErrInvalidInterval is returned for a fragment with end <= start.
	ErrInvalidInterval = errors.New("fragment: interval end must be greater than start")
)

// Source is a pull cursor over sorted fragments.
//
// The cursor starts positioned before the first chromosome. NextChr advances
// to the next chromosome and NextFrag steps through its fragments; both
// return false when exhausted. After either returns false, check Err.
type Source interface {
	// ChrCount returns the number of chromosomes, or -1 if unknown in
	// advance (text sources discover chromosomes as they stream).
	ChrCount() int

	// CellCount returns the number of cells, or -1 if unknown in advance.
	CellCount() int

	// ChrNames resolves a chromosome id to its name.
	ChrNames(id uint32) (string, bool)

	// CellNames resolves a cell id to its name.
	CellNames(id uint32) (string, bool)

	// NextChr advances to the next chromosome.
	NextChr() bool

	// CurrentChr returns the id of the current chromosome. Only valid
	// after NextChr or Seek.
	CurrentChr() uint32

	// NextFrag advances to the next fragment within the current
	// chromosome.
	NextFrag() bool

	// Start returns the current fragment's start coordinate.
	Start() uint32

	// End returns the current fragment's (exclusive) end coordinate.
	End() uint32

	// Cell returns the current fragment's cell id.
	Cell() uint32

	// Restart repositions the cursor before the first chromosome.
	Restart() error

	// Seekable reports whether Seek is supported.
	Seekable() bool

	// Seek positions the cursor within chromosome chr so that every
	// skipped fragment has end <= base. Fragments that begin before base
	// but overlap it are retained. Returns ErrNotSeekable on sources
	// without random access.
	Seek(chr, base uint32) error

	// Err returns the first error encountered while iterating.
	Err() error
}
