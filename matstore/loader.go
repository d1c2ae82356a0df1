package matstore

import (
	"context"
	"fmt"

	"github.com/fragmat/fragmat/arrays"
	"github.com/fragmat/fragmat/blobstore"
	"github.com/fragmat/fragmat/matrix"
	"github.com/fragmat/fragmat/pfor"
)

// Open loads a matrix store of either layout as a matrix.Source. The packed
// layout only loads as uint32.
func Open[T matrix.Value](ctx context.Context, store blobstore.BlobStore) (matrix.Source[T], error) {
	ar := arrays.NewReader(store)

	version, err := ar.Version(ctx)
	if err != nil {
		return nil, err
	}

	shape, err := ar.Uints(ctx, blobShape)
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: shape holds %d entries", ErrCorrupted, len(shape))
	}
	rows, cols := shape[0], shape[1]

	rowNames, err := optionalNames(ctx, ar, blobRowNames)
	if err != nil {
		return nil, err
	}
	colNames, err := optionalNames(ctx, ar, blobColNames)
	if err != nil {
		return nil, err
	}

	switch version {
	case VersionUnpacked:
		return openUnpacked[T](ctx, ar, rows, cols, rowNames, colNames)
	case VersionPacked:
		src, err := openPacked(ctx, ar, rows, cols, rowNames, colNames)
		if err != nil {
			return nil, err
		}
		typed, ok := any(src).(matrix.Source[T])
		if !ok {
			return nil, fmt.Errorf("%w: packed store loads as uint32", arrays.ErrUnsupportedEncoding)
		}
		return typed, nil
	default:
		return nil, fmt.Errorf("%w: got %q", arrays.ErrVersionMismatch, version)
	}
}

func optionalNames(ctx context.Context, ar *arrays.Reader, blob string) ([]string, error) {
	ok, err := ar.Has(ctx, blob)
	if err != nil || !ok {
		return nil, err
	}
	return ar.Strings(ctx, blob)
}

func openUnpacked[T matrix.Value](ctx context.Context, ar *arrays.Reader, rows, cols uint32, rowNames, colNames []string) (matrix.Source[T], error) {
	indptr, err := ar.Uints(ctx, blobIndptr)
	if err != nil {
		return nil, err
	}
	indices, err := ar.Uints(ctx, blobIndices)
	if err != nil {
		return nil, err
	}
	data, err := getData[T](ctx, ar)
	if err != nil {
		return nil, err
	}

	m, err := matrix.NewCSC(rows, cols, indptr, indices, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if err := m.SetNames(rowNames, colNames); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return m, nil
}

func getData[T matrix.Value](ctx context.Context, ar *arrays.Reader) ([]T, error) {
	var zero T
	switch any(zero).(type) {
	case uint32:
		d, err := ar.Uints(ctx, blobData)
		if err != nil {
			return nil, err
		}
		return any(d).([]T), nil
	case float64:
		d, err := ar.Floats(ctx, blobData)
		if err != nil {
			return nil, err
		}
		return any(d).([]T), nil
	default:
		return nil, fmt.Errorf("matstore: unsupported element type %T", zero)
	}
}

// packedLoader streams a packed store, decoding one block at a time.
type packedLoader struct {
	rows, cols uint32
	colPtr     []uint32 // len cols+1, block index range per column
	rowStarts  []uint32 // first row id per block
	rowData    []byte
	rowIdx     []uint32
	valData    []byte
	valIdx     []uint32

	rowNames, colNames []string

	col    int // -1 before the first column
	block  int // global block index
	loaded bool
	i      int
	rowBuf []uint32
	valBuf []uint32
	curRow uint32
	curVal uint32
	err    error
}

func openPacked(ctx context.Context, ar *arrays.Reader, rows, cols uint32, rowNames, colNames []string) (*packedLoader, error) {
	l := &packedLoader{rows: rows, cols: cols, rowNames: rowNames, colNames: colNames, col: -1}
	var err error
	if l.colPtr, err = ar.Uints(ctx, blobColPtr); err != nil {
		return nil, err
	}
	if l.rowStarts, err = ar.Uints(ctx, blobRowStarts); err != nil {
		return nil, err
	}
	if l.rowData, err = ar.Bytes(ctx, blobRowData); err != nil {
		return nil, err
	}
	if l.rowIdx, err = ar.Uints(ctx, blobRowIdx); err != nil {
		return nil, err
	}
	if l.valData, err = ar.Bytes(ctx, blobValData); err != nil {
		return nil, err
	}
	if l.valIdx, err = ar.Uints(ctx, blobValIdx); err != nil {
		return nil, err
	}

	if len(l.colPtr) != int(cols)+1 {
		return nil, fmt.Errorf("%w: col_ptr holds %d entries for %d columns", ErrCorrupted, len(l.colPtr), cols)
	}
	nblocks := int(l.colPtr[cols])
	if len(l.rowStarts) < nblocks || len(l.rowIdx) < nblocks+1 || len(l.valIdx) < nblocks+1 {
		return nil, fmt.Errorf("%w: block tables shorter than %d blocks", ErrCorrupted, nblocks)
	}
	return l, nil
}

func (l *packedLoader) Rows() uint32 { return l.rows }
func (l *packedLoader) Cols() uint32 { return l.cols }

func (l *packedLoader) RowNames(id uint32) (string, bool) {
	if l.rowNames == nil || int(id) >= len(l.rowNames) {
		return "", false
	}
	return l.rowNames[id], true
}

func (l *packedLoader) ColNames(id uint32) (string, bool) {
	if l.colNames == nil || int(id) >= len(l.colNames) {
		return "", false
	}
	return l.colNames[id], true
}

func (l *packedLoader) NextCol() bool {
	if l.err != nil {
		return false
	}
	if l.col+1 >= int(l.cols) {
		l.col = int(l.cols)
		return false
	}
	l.col++
	l.block = int(l.colPtr[l.col])
	l.loaded = false
	l.i = 0
	return true
}

func (l *packedLoader) CurrentCol() uint32 { return uint32(l.col) }

func (l *packedLoader) NextValue() bool {
	if l.err != nil || l.col < 0 || l.col >= int(l.cols) {
		return false
	}
	for {
		if l.block >= int(l.colPtr[l.col+1]) {
			return false
		}
		if !l.loaded {
			if err := l.loadBlock(l.block); err != nil {
				l.err = err
				return false
			}
		}
		if l.i < len(l.rowBuf) {
			l.curRow = l.rowBuf[l.i]
			l.curVal = l.valBuf[l.i]
			l.i++
			return true
		}
		l.block++
		l.loaded = false
		l.i = 0
	}
}

func (l *packedLoader) Row() uint32 { return l.curRow }
func (l *packedLoader) Val() uint32 { return l.curVal }

func (l *packedLoader) SeekCol(col uint32) error {
	if col >= l.cols {
		return fmt.Errorf("%w: column %d of %d", matrix.ErrDimensionMismatch, col, l.cols)
	}
	l.col = int(col)
	l.block = int(l.colPtr[col])
	l.loaded = false
	l.i = 0
	return nil
}

func (l *packedLoader) Restart() error {
	l.col = -1
	l.err = nil
	return nil
}

func (l *packedLoader) Err() error { return l.err }

func (l *packedLoader) loadBlock(b int) error {
	decode := func(data []byte, idx []uint32, dst []uint32) ([]uint32, error) {
		lo, hi := idx[b], idx[b+1]
		if lo > hi || uint32(len(data)) < hi {
			return nil, fmt.Errorf("%w: block %d byte range", ErrCorrupted, b)
		}
		out, _, err := pfor.Decode(data[lo:hi], dst[:0])
		return out, err
	}

	var err error
	if l.rowBuf, err = decode(l.rowData, l.rowIdx, l.rowBuf); err != nil {
		return err
	}
	pfor.DeltaDecode(l.rowStarts[b], l.rowBuf)
	if l.valBuf, err = decode(l.valData, l.valIdx, l.valBuf); err != nil {
		return err
	}
	pfor.ZigzagDeltaDecode(0, l.valBuf)
	if len(l.valBuf) != len(l.rowBuf) {
		return fmt.Errorf("%w: block %d column lengths differ", ErrCorrupted, b)
	}
	l.loaded = true
	return nil
}
