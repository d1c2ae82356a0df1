package matrix

import "fmt"

// CSC is an in-memory compressed sparse column matrix implementing Source.
type CSC[T Value] struct {
	rows, cols uint32
	indptr     []uint32 // len cols+1, entry range per column
	indices    []uint32 // row id per entry, strictly ascending per column
	data       []T

	rowNames, colNames []string

	col int // -1 before the first column
	pos uint32
	cur uint32
}

// NewCSC creates an in-memory matrix from compressed sparse column arrays.
// Construction validates the structure once; iteration is then infallible.
func NewCSC[T Value](rows, cols uint32, indptr, indices []uint32, data []T) (*CSC[T], error) {
	if len(indptr) != int(cols)+1 {
		return nil, fmt.Errorf("%w: indptr holds %d entries for %d columns", ErrDimensionMismatch, len(indptr), cols)
	}
	if indptr[0] != 0 {
		return nil, fmt.Errorf("%w: indptr starts at %d", ErrDimensionMismatch, indptr[0])
	}
	if len(indices) != len(data) {
		return nil, fmt.Errorf("%w: %d indices for %d values", ErrDimensionMismatch, len(indices), len(data))
	}
	if int(indptr[cols]) != len(indices) {
		return nil, fmt.Errorf("%w: indptr extent %d for %d entries", ErrDimensionMismatch, indptr[cols], len(indices))
	}
	for j := uint32(0); j < cols; j++ {
		lo, hi := indptr[j], indptr[j+1]
		if lo > hi {
			return nil, fmt.Errorf("%w: column %d range [%d, %d)", ErrDimensionMismatch, j, lo, hi)
		}
		for p := lo; p < hi; p++ {
			if indices[p] >= rows {
				return nil, fmt.Errorf("%w: row %d in a %d-row matrix", ErrDimensionMismatch, indices[p], rows)
			}
			if p > lo && indices[p] <= indices[p-1] {
				return nil, fmt.Errorf("%w: column %d", ErrUnsorted, j)
			}
		}
	}
	return &CSC[T]{rows: rows, cols: cols, indptr: indptr, indices: indices, data: data, col: -1}, nil
}

// SetNames attaches row and column name tables. Either may be nil.
func (m *CSC[T]) SetNames(rowNames, colNames []string) error {
	if rowNames != nil && len(rowNames) != int(m.rows) {
		return fmt.Errorf("%w: %d row names for %d rows", ErrDimensionMismatch, len(rowNames), m.rows)
	}
	if colNames != nil && len(colNames) != int(m.cols) {
		return fmt.Errorf("%w: %d column names for %d columns", ErrDimensionMismatch, len(colNames), m.cols)
	}
	m.rowNames, m.colNames = rowNames, colNames
	return nil
}

func (m *CSC[T]) Rows() uint32 { return m.rows }
func (m *CSC[T]) Cols() uint32 { return m.cols }

func (m *CSC[T]) RowNames(id uint32) (string, bool) {
	if m.rowNames == nil || int(id) >= len(m.rowNames) {
		return "", false
	}
	return m.rowNames[id], true
}

func (m *CSC[T]) ColNames(id uint32) (string, bool) {
	if m.colNames == nil || int(id) >= len(m.colNames) {
		return "", false
	}
	return m.colNames[id], true
}

func (m *CSC[T]) NextCol() bool {
	if m.col+1 >= int(m.cols) {
		m.col = int(m.cols)
		return false
	}
	m.col++
	m.pos = m.indptr[m.col]
	return true
}

func (m *CSC[T]) CurrentCol() uint32 { return uint32(m.col) }

func (m *CSC[T]) NextValue() bool {
	if m.col < 0 || m.col >= int(m.cols) {
		return false
	}
	if m.pos >= m.indptr[m.col+1] {
		return false
	}
	m.cur = m.pos
	m.pos++
	return true
}

func (m *CSC[T]) Row() uint32 { return m.indices[m.cur] }
func (m *CSC[T]) Val() T      { return m.data[m.cur] }

func (m *CSC[T]) SeekCol(col uint32) error {
	if col >= m.cols {
		return fmt.Errorf("%w: column %d of %d", ErrDimensionMismatch, col, m.cols)
	}
	m.col = int(col)
	m.pos = m.indptr[col]
	return nil
}

func (m *CSC[T]) Restart() error {
	m.col = -1
	return nil
}

func (m *CSC[T]) Err() error { return nil }

// Collect drains src into an in-memory CSC matrix, restarting it first.
// Names are copied when the source resolves them.
func Collect[T Value](src Source[T]) (*CSC[T], error) {
	if err := src.Restart(); err != nil {
		return nil, err
	}

	rows, cols := src.Rows(), src.Cols()
	indptr := make([]uint32, 1, cols+1)
	var indices []uint32
	var data []T
	for src.NextCol() {
		for src.NextValue() {
			indices = append(indices, src.Row())
			data = append(data, src.Val())
		}
		indptr = append(indptr, uint32(len(indices)))
	}
	if err := src.Err(); err != nil {
		return nil, err
	}
	if len(indptr) != int(cols)+1 {
		return nil, fmt.Errorf("%w: source yielded %d of %d columns", ErrDimensionMismatch, len(indptr)-1, cols)
	}

	m, err := NewCSC(rows, cols, indptr, indices, data)
	if err != nil {
		return nil, err
	}
	m.SetNames(collectNames(src.RowNames, rows), collectNames(src.ColNames, cols))
	return m, nil
}

func collectNames(lookup func(uint32) (string, bool), n uint32) []string {
	names := make([]string, n)
	for i := uint32(0); i < n; i++ {
		name, ok := lookup(i)
		if !ok {
			return nil
		}
		names[i] = name
	}
	return names
}
