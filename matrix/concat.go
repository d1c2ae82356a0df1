package matrix

import "fmt"

// ConcatRows stacks sources vertically. All sources must have the same
// column count; row ids of source i are offset by the total rows of sources
// before it. Columns are streamed in lockstep, so every source is iterated
// exactly once per pass.
func ConcatRows[T Value](srcs ...Source[T]) (Source[T], error) {
	if len(srcs) == 0 {
		return nil, fmt.Errorf("%w: no sources", ErrDimensionMismatch)
	}
	cols := srcs[0].Cols()
	offsets := make([]uint32, len(srcs)+1)
	for i, s := range srcs {
		if s.Cols() != cols {
			return nil, fmt.Errorf("%w: source %d has %d columns, want %d", ErrDimensionMismatch, i, s.Cols(), cols)
		}
		offsets[i+1] = offsets[i] + s.Rows()
	}
	return &rowConcat[T]{srcs: srcs, offsets: offsets, cols: cols}, nil
}

type rowConcat[T Value] struct {
	srcs    []Source[T]
	offsets []uint32
	cols    uint32

	cur int // source currently yielding values
	err error
}

func (m *rowConcat[T]) Rows() uint32 { return m.offsets[len(m.offsets)-1] }
func (m *rowConcat[T]) Cols() uint32 { return m.cols }

func (m *rowConcat[T]) RowNames(id uint32) (string, bool) {
	for i, s := range m.srcs {
		if id < m.offsets[i+1] {
			return s.RowNames(id - m.offsets[i])
		}
	}
	return "", false
}

func (m *rowConcat[T]) ColNames(id uint32) (string, bool) { return m.srcs[0].ColNames(id) }

func (m *rowConcat[T]) NextCol() bool {
	if m.err != nil {
		return false
	}
	ok := m.srcs[0].NextCol()
	for _, s := range m.srcs[1:] {
		if s.NextCol() != ok {
			m.err = fmt.Errorf("%w: sources exhausted at different columns", ErrDimensionMismatch)
			return false
		}
	}
	m.cur = 0
	return ok
}

func (m *rowConcat[T]) CurrentCol() uint32 { return m.srcs[0].CurrentCol() }

func (m *rowConcat[T]) NextValue() bool {
	if m.err != nil {
		return false
	}
	for m.cur < len(m.srcs) {
		if m.srcs[m.cur].NextValue() {
			return true
		}
		if err := m.srcs[m.cur].Err(); err != nil {
			m.err = err
			return false
		}
		m.cur++
	}
	return false
}

func (m *rowConcat[T]) Row() uint32 { return m.offsets[m.cur] + m.srcs[m.cur].Row() }
func (m *rowConcat[T]) Val() T      { return m.srcs[m.cur].Val() }

func (m *rowConcat[T]) SeekCol(col uint32) error {
	for _, s := range m.srcs {
		if err := s.SeekCol(col); err != nil {
			return err
		}
	}
	m.cur = 0
	return nil
}

func (m *rowConcat[T]) Restart() error {
	for _, s := range m.srcs {
		if err := s.Restart(); err != nil {
			return err
		}
	}
	m.cur = 0
	m.err = nil
	return nil
}

func (m *rowConcat[T]) Err() error { return m.err }

// ConcatCols places sources side by side. All sources must have the same row
// count; column ids of source i are offset by the total columns of sources
// before it. Sources are consumed sequentially.
func ConcatCols[T Value](srcs ...Source[T]) (Source[T], error) {
	if len(srcs) == 0 {
		return nil, fmt.Errorf("%w: no sources", ErrDimensionMismatch)
	}
	rows := srcs[0].Rows()
	offsets := make([]uint32, len(srcs)+1)
	for i, s := range srcs {
		if s.Rows() != rows {
			return nil, fmt.Errorf("%w: source %d has %d rows, want %d", ErrDimensionMismatch, i, s.Rows(), rows)
		}
		offsets[i+1] = offsets[i] + s.Cols()
	}
	return &colConcat[T]{srcs: srcs, offsets: offsets, rows: rows, cur: -1}, nil
}

type colConcat[T Value] struct {
	srcs    []Source[T]
	offsets []uint32
	rows    uint32

	cur int // -1 before the first source
	err error
}

func (m *colConcat[T]) Rows() uint32 { return m.rows }
func (m *colConcat[T]) Cols() uint32 { return m.offsets[len(m.offsets)-1] }

func (m *colConcat[T]) RowNames(id uint32) (string, bool) { return m.srcs[0].RowNames(id) }

func (m *colConcat[T]) ColNames(id uint32) (string, bool) {
	for i, s := range m.srcs {
		if id < m.offsets[i+1] {
			return s.ColNames(id - m.offsets[i])
		}
	}
	return "", false
}

func (m *colConcat[T]) NextCol() bool {
	if m.err != nil {
		return false
	}
	if m.cur < 0 {
		m.cur = 0
		if err := m.srcs[0].Restart(); err != nil {
			m.err = err
			return false
		}
	}
	for m.cur < len(m.srcs) {
		if m.srcs[m.cur].NextCol() {
			return true
		}
		if err := m.srcs[m.cur].Err(); err != nil {
			m.err = err
			return false
		}
		m.cur++
		if m.cur < len(m.srcs) {
			if err := m.srcs[m.cur].Restart(); err != nil {
				m.err = err
				return false
			}
		}
	}
	return false
}

func (m *colConcat[T]) CurrentCol() uint32 {
	return m.offsets[m.cur] + m.srcs[m.cur].CurrentCol()
}

func (m *colConcat[T]) NextValue() bool {
	if m.err != nil || m.cur < 0 || m.cur >= len(m.srcs) {
		return false
	}
	return m.srcs[m.cur].NextValue()
}

func (m *colConcat[T]) Row() uint32 { return m.srcs[m.cur].Row() }
func (m *colConcat[T]) Val() T      { return m.srcs[m.cur].Val() }

func (m *colConcat[T]) SeekCol(col uint32) error {
	if col >= m.Cols() {
		return fmt.Errorf("%w: column %d of %d", ErrDimensionMismatch, col, m.Cols())
	}
	for i := range m.srcs {
		if col < m.offsets[i+1] {
			m.cur = i
			return m.srcs[i].SeekCol(col - m.offsets[i])
		}
	}
	return nil
}

func (m *colConcat[T]) Restart() error {
	m.cur = -1
	m.err = nil
	return nil
}

func (m *colConcat[T]) Err() error { return m.err }
