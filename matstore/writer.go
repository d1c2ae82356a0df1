package matstore

import (
	"context"
	"fmt"

	"github.com/fragmat/fragmat/arrays"
	"github.com/fragmat/fragmat/blobstore"
	"github.com/fragmat/fragmat/matrix"
	"github.com/fragmat/fragmat/pfor"
)

// Writer accumulates a sparse matrix column by column and finalizes it into
// a blob store. Rows within a column must be strictly ascending.
type Writer[T matrix.Value] struct {
	rows   uint32
	packed bool

	indptr  []uint32
	indices []uint32
	data    []T

	rowNames, colNames []string

	lastRow   int64
	inCol     bool
	finalized bool
}

// WriterOption customizes a Writer.
type WriterOption[T matrix.Value] func(*Writer[T])

// WithPacked selects the packed layout. Only uint32 matrices pack.
func WithPacked[T matrix.Value]() WriterOption[T] {
	return func(w *Writer[T]) { w.packed = true }
}

// NewWriter creates an empty Writer for a matrix with the given row count.
func NewWriter[T matrix.Value](rows uint32, opts ...WriterOption[T]) *Writer[T] {
	w := &Writer[T]{rows: rows, indptr: []uint32{0}}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// StartCol begins the next column.
func (w *Writer[T]) StartCol() error {
	if w.finalized {
		return ErrFinalized
	}
	w.indptr = append(w.indptr, uint32(len(w.indices)))
	w.lastRow = -1
	w.inCol = true
	return nil
}

// Append adds one entry to the current column.
func (w *Writer[T]) Append(row uint32, val T) error {
	if w.finalized {
		return ErrFinalized
	}
	if !w.inCol {
		return fmt.Errorf("matstore: Append before StartCol")
	}
	if row >= w.rows {
		return fmt.Errorf("%w: row %d of %d", matrix.ErrDimensionMismatch, row, w.rows)
	}
	if int64(row) <= w.lastRow {
		return fmt.Errorf("%w: row %d after %d", matrix.ErrUnsorted, row, w.lastRow)
	}
	w.lastRow = int64(row)
	w.indices = append(w.indices, row)
	w.data = append(w.data, val)
	w.indptr[len(w.indptr)-1]++
	return nil
}

// SetNames attaches row and column name tables. Either may be nil.
func (w *Writer[T]) SetNames(rowNames, colNames []string) {
	w.rowNames, w.colNames = rowNames, colNames
}

// Finalize validates the accumulated matrix and writes all arrays.
func (w *Writer[T]) Finalize(ctx context.Context, store blobstore.BlobStore) error {
	if w.finalized {
		return ErrFinalized
	}
	cols := uint32(len(w.indptr) - 1)
	if w.rowNames != nil && len(w.rowNames) != int(w.rows) {
		return fmt.Errorf("%w: %d row names for %d rows", matrix.ErrDimensionMismatch, len(w.rowNames), w.rows)
	}
	if w.colNames != nil && len(w.colNames) != int(cols) {
		return fmt.Errorf("%w: %d column names for %d columns", matrix.ErrDimensionMismatch, len(w.colNames), cols)
	}
	w.finalized = true

	aw := arrays.NewWriter(store)
	if err := aw.PutUints(ctx, blobShape, []uint32{w.rows, cols}); err != nil {
		return err
	}
	if w.rowNames != nil {
		if err := aw.PutStrings(ctx, blobRowNames, w.rowNames); err != nil {
			return err
		}
	}
	if w.colNames != nil {
		if err := aw.PutStrings(ctx, blobColNames, w.colNames); err != nil {
			return err
		}
	}

	if w.packed {
		if err := w.writePacked(ctx, aw); err != nil {
			return err
		}
		return aw.PutVersion(ctx, VersionPacked)
	}

	if err := aw.PutUints(ctx, blobIndptr, w.indptr); err != nil {
		return err
	}
	if err := aw.PutUints(ctx, blobIndices, w.indices); err != nil {
		return err
	}
	if err := putData(ctx, aw, w.data); err != nil {
		return err
	}
	return aw.PutVersion(ctx, VersionUnpacked)
}

func (w *Writer[T]) writePacked(ctx context.Context, aw *arrays.Writer) error {
	vals, ok := any(w.data).([]uint32)
	if !ok {
		return ErrPackedNeedsUints
	}

	cols := len(w.indptr) - 1
	colPtr := make([]uint32, 1, cols+1)
	var rowStarts []uint32
	var rowData, valData []byte
	rowIdx := []uint32{0}
	valIdx := []uint32{0}

	scratch := make([]uint32, BlockSize)
	written := 0
	for j := 0; j < cols; j++ {
		lo, hi := w.indptr[j], w.indptr[j+1]
		// Blocks never cross into the next column.
		for lo < hi {
			blockHi := min(lo+BlockSize, hi)

			base := w.indices[lo]
			rowStarts = append(rowStarts, base)
			rvals := scratch[:blockHi-lo]
			copy(rvals, w.indices[lo:blockHi])
			pfor.DeltaEncode(base, rvals)
			var err error
			rowData, err = pfor.Encode(rowData, rvals)
			if err != nil {
				return err
			}
			rowIdx = append(rowIdx, uint32(len(rowData)))

			copy(rvals, vals[lo:blockHi])
			pfor.ZigzagDeltaEncode(0, rvals)
			valData, err = pfor.Encode(valData, rvals)
			if err != nil {
				return err
			}
			valIdx = append(valIdx, uint32(len(valData)))

			written += int(blockHi - lo)
			if written >= 1024 {
				written = 0
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			lo = blockHi
		}
		colPtr = append(colPtr, uint32(len(rowStarts)))
	}

	if err := aw.PutUints(ctx, blobColPtr, colPtr); err != nil {
		return err
	}
	if err := aw.PutUints(ctx, blobRowStarts, rowStarts); err != nil {
		return err
	}
	if err := aw.PutBytes(ctx, blobRowData, rowData); err != nil {
		return err
	}
	if err := aw.PutUints(ctx, blobRowIdx, rowIdx); err != nil {
		return err
	}
	if err := aw.PutBytes(ctx, blobValData, valData); err != nil {
		return err
	}
	return aw.PutUints(ctx, blobValIdx, valIdx)
}

func putData[T matrix.Value](ctx context.Context, aw *arrays.Writer, data []T) error {
	switch d := any(data).(type) {
	case []uint32:
		return aw.PutUints(ctx, blobData, d)
	case []float64:
		return aw.PutFloats(ctx, blobData, d)
	default:
		return fmt.Errorf("matstore: unsupported element type %T", data)
	}
}

// Write drains src into a new store, restarting it first.
func Write[T matrix.Value](ctx context.Context, store blobstore.BlobStore, src matrix.Source[T], opts ...WriterOption[T]) error {
	if err := src.Restart(); err != nil {
		return err
	}

	w := NewWriter(src.Rows(), opts...)
	copied := 0
	for src.NextCol() {
		if err := w.StartCol(); err != nil {
			return err
		}
		for src.NextValue() {
			if err := w.Append(src.Row(), src.Val()); err != nil {
				return err
			}
			copied++
			if copied%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
	}
	if err := src.Err(); err != nil {
		return err
	}
	if got := uint32(len(w.indptr) - 1); got != src.Cols() {
		return fmt.Errorf("%w: source yielded %d of %d columns", matrix.ErrDimensionMismatch, got, src.Cols())
	}

	w.SetNames(names(src.RowNames, src.Rows()), names(src.ColNames, src.Cols()))
	return w.Finalize(ctx, store)
}

func names(lookup func(uint32) (string, bool), n uint32) []string {
	out := make([]string, n)
	for i := uint32(0); i < n; i++ {
		name, ok := lookup(i)
		if !ok {
			return nil
		}
		out[i] = name
	}
	return out
}
