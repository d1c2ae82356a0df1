// Package matrix defines the streaming cursor contract for sparse
// column-major matrices, an in-memory implementation, and algebra adapters
// that compose sources without materializing them.
//
// Matrices hold one value per (row, column) pair that is present; columns are
// visited in order and values within a column in ascending row order, the
// natural iteration order of compressed sparse column storage. Iteration
// follows the bufio.Scanner idiom: advance methods report exhaustion and
// Err() distinguishes it from failure.
package matrix

import "errors"

// Value constrains the element types a matrix can carry: raw counts or
// normalized floating point.
type Value interface {
	~uint32 | ~float64
}

var (
	// ErrDimensionMismatch is returned when composed matrices disagree on
	// a shared dimension, or an index is out of range.
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")

	// ErrUnsorted is returned when row indices within a column are not
	// strictly ascending.
	ErrUnsorted = errors.New("matrix: row indices out of order")
)

// Source is a pull cursor over a sparse matrix in column-major order.
//
// The cursor starts before the first column. NextCol advances to the next
// column and NextValue steps through its entries; both return false when
// exhausted. SeekCol repositions the cursor before the first entry of an
// arbitrary column; NextCol afterwards continues with the following column.
type Source[T Value] interface {
	// Rows returns the number of rows.
	Rows() uint32

	// Cols returns the number of columns.
	Cols() uint32

	// RowNames resolves a row id to its name.
	RowNames(id uint32) (string, bool)

	// ColNames resolves a column id to its name.
	ColNames(id uint32) (string, bool)

	// NextCol advances to the next column.
	NextCol() bool

	// CurrentCol returns the id of the current column. Only valid after
	// NextCol or SeekCol.
	CurrentCol() uint32

	// NextValue advances to the next entry within the current column.
	NextValue() bool

	// Row returns the current entry's row id.
	Row() uint32

	// Val returns the current entry's value.
	Val() T

	// SeekCol positions the cursor before the first entry of column col.
	SeekCol(col uint32) error

	// Restart repositions the cursor before the first column.
	Restart() error

	// Err returns the first error encountered while iterating.
	Err() error
}
