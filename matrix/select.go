package matrix

import "fmt"

// ColSelect reorders and subsets columns by an explicit index list, which may
// repeat and reorder source columns freely. The source must support SeekCol.
func ColSelect[T Value](src Source[T], cols []uint32) (Source[T], error) {
	for _, c := range cols {
		if c >= src.Cols() {
			return nil, fmt.Errorf("%w: selected column %d of %d", ErrDimensionMismatch, c, src.Cols())
		}
	}
	picked := make([]uint32, len(cols))
	copy(picked, cols)
	return &colSelect[T]{src: src, cols: picked, pos: -1}, nil
}

type colSelect[T Value] struct {
	src  Source[T]
	cols []uint32
	pos  int // index into cols; -1 before the first
	err  error
}

func (m *colSelect[T]) Rows() uint32 { return m.src.Rows() }
func (m *colSelect[T]) Cols() uint32 { return uint32(len(m.cols)) }

func (m *colSelect[T]) RowNames(id uint32) (string, bool) { return m.src.RowNames(id) }

func (m *colSelect[T]) ColNames(id uint32) (string, bool) {
	if int(id) >= len(m.cols) {
		return "", false
	}
	return m.src.ColNames(m.cols[id])
}

func (m *colSelect[T]) NextCol() bool {
	if m.err != nil {
		return false
	}
	if m.pos+1 >= len(m.cols) {
		m.pos = len(m.cols)
		return false
	}
	m.pos++
	if err := m.src.SeekCol(m.cols[m.pos]); err != nil {
		m.err = err
		return false
	}
	return true
}

func (m *colSelect[T]) CurrentCol() uint32 { return uint32(m.pos) }

func (m *colSelect[T]) NextValue() bool {
	if m.err != nil || m.pos < 0 || m.pos >= len(m.cols) {
		return false
	}
	if m.src.NextValue() {
		return true
	}
	if err := m.src.Err(); err != nil {
		m.err = err
	}
	return false
}

func (m *colSelect[T]) Row() uint32 { return m.src.Row() }
func (m *colSelect[T]) Val() T      { return m.src.Val() }

func (m *colSelect[T]) SeekCol(col uint32) error {
	if int(col) >= len(m.cols) {
		return fmt.Errorf("%w: column %d of %d", ErrDimensionMismatch, col, len(m.cols))
	}
	m.pos = int(col)
	return m.src.SeekCol(m.cols[col])
}

func (m *colSelect[T]) Restart() error {
	m.pos = -1
	m.err = nil
	return nil
}

func (m *colSelect[T]) Err() error { return m.err }

// RowSelect subsets rows by an explicit, duplicate-free index list. Entry
// rows[i] of the source becomes row i of the view. Values stream in the
// source's row order, so when the list is not ascending the per-column
// entries arrive ordered by the original rows rather than the new ids.
func RowSelect[T Value](src Source[T], rows []uint32) (Source[T], error) {
	remap := make([]int32, src.Rows())
	for i := range remap {
		remap[i] = -1
	}
	for i, r := range rows {
		if r >= src.Rows() {
			return nil, fmt.Errorf("%w: selected row %d of %d", ErrDimensionMismatch, r, src.Rows())
		}
		if remap[r] != -1 {
			return nil, fmt.Errorf("%w: row %d selected twice", ErrDimensionMismatch, r)
		}
		remap[r] = int32(i)
	}
	picked := make([]uint32, len(rows))
	copy(picked, rows)
	return &rowSelect[T]{src: src, rows: picked, remap: remap}, nil
}

type rowSelect[T Value] struct {
	src   Source[T]
	rows  []uint32
	remap []int32
}

func (m *rowSelect[T]) Rows() uint32 { return uint32(len(m.rows)) }
func (m *rowSelect[T]) Cols() uint32 { return m.src.Cols() }

func (m *rowSelect[T]) RowNames(id uint32) (string, bool) {
	if int(id) >= len(m.rows) {
		return "", false
	}
	return m.src.RowNames(m.rows[id])
}

func (m *rowSelect[T]) ColNames(id uint32) (string, bool) { return m.src.ColNames(id) }

func (m *rowSelect[T]) NextCol() bool      { return m.src.NextCol() }
func (m *rowSelect[T]) CurrentCol() uint32 { return m.src.CurrentCol() }

func (m *rowSelect[T]) NextValue() bool {
	for m.src.NextValue() {
		if m.remap[m.src.Row()] >= 0 {
			return true
		}
	}
	return false
}

func (m *rowSelect[T]) Row() uint32 { return uint32(m.remap[m.src.Row()]) }
func (m *rowSelect[T]) Val() T      { return m.src.Val() }

func (m *rowSelect[T]) SeekCol(col uint32) error { return m.src.SeekCol(col) }
func (m *rowSelect[T]) Restart() error           { return m.src.Restart() }
func (m *rowSelect[T]) Err() error               { return m.src.Err() }
