package matrix

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// entry is a (row, col, val) triplet used to state expected iteration output.
type entry[T Value] struct {
	row, col uint32
	val      T
}

func drainEntries[T Value](t *testing.T, src Source[T]) []entry[T] {
	t.Helper()
	var out []entry[T]
	for src.NextCol() {
		for src.NextValue() {
			out = append(out, entry[T]{row: src.Row(), col: src.CurrentCol(), val: src.Val()})
		}
	}
	require.NoError(t, src.Err())
	return out
}

// testMatrix is a 5x5 matrix whose column j holds value j at row j+1
// followed by increasing values down the column.
//
//	col:    0  1  2  3  4
//	row 1:  0
//	row 2:  1  5
//	row 3:  2  6  9
//	row 4:  3  7 10 12
func testMatrix(t *testing.T) *CSC[uint32] {
	t.Helper()
	m, err := NewCSC[uint32](5, 5,
		[]uint32{0, 4, 7, 9, 10, 10},
		[]uint32{1, 2, 3, 4, 2, 3, 4, 3, 4, 4},
		[]uint32{0, 1, 2, 3, 5, 6, 7, 9, 10, 12},
	)
	require.NoError(t, err)
	return m
}

func TestCSCIteration(t *testing.T) {
	m := testMatrix(t)
	require.Equal(t, uint32(5), m.Rows())
	require.Equal(t, uint32(5), m.Cols())

	got := drainEntries[uint32](t, m)
	require.Equal(t, []entry[uint32]{
		{1, 0, 0}, {2, 0, 1}, {3, 0, 2}, {4, 0, 3},
		{2, 1, 5}, {3, 1, 6}, {4, 1, 7},
		{3, 2, 9}, {4, 2, 10},
		{4, 3, 12},
	}, got)

	require.NoError(t, m.Restart())
	require.Len(t, drainEntries[uint32](t, m), 10)
}

func TestCSCSeekCol(t *testing.T) {
	m := testMatrix(t)

	// After seeking to column j the first value sits at row j+1.
	for _, j := range []uint32{2, 0, 3, 1, 3} {
		require.NoError(t, m.SeekCol(j))
		require.True(t, m.NextValue())
		require.Equal(t, j+1, m.Row())
	}

	// NextCol after a seek continues with the following column.
	require.NoError(t, m.SeekCol(1))
	require.True(t, m.NextCol())
	require.Equal(t, uint32(2), m.CurrentCol())

	require.ErrorIs(t, m.SeekCol(5), ErrDimensionMismatch)
}

func TestCSCNames(t *testing.T) {
	m := testMatrix(t)
	require.NoError(t, m.SetNames([]string{"r0", "r1", "r2", "r3", "r4"}, []string{"c0", "c1", "c2", "c3", "c4"}))

	name, ok := m.RowNames(3)
	require.True(t, ok)
	require.Equal(t, "r3", name)
	_, ok = m.RowNames(5)
	require.False(t, ok)

	require.ErrorIs(t, m.SetNames([]string{"too", "short"}, nil), ErrDimensionMismatch)
}

func TestNewCSCValidation(t *testing.T) {
	_, err := NewCSC[uint32](2, 2, []uint32{0, 1}, []uint32{0}, []uint32{1})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewCSC[uint32](2, 1, []uint32{0, 2}, []uint32{1, 0}, []uint32{1, 2})
	require.ErrorIs(t, err, ErrUnsorted)

	_, err = NewCSC[uint32](2, 1, []uint32{0, 2}, []uint32{0, 0}, []uint32{1, 2})
	require.ErrorIs(t, err, ErrUnsorted)

	_, err = NewCSC[uint32](2, 1, []uint32{0, 1}, []uint32{5}, []uint32{1})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCollect(t *testing.T) {
	m := testMatrix(t)
	require.NoError(t, m.SetNames(nil, []string{"c0", "c1", "c2", "c3", "c4"}))

	// Collect restarts the source, so a partially iterated cursor is fine.
	require.True(t, m.NextCol())

	got, err := Collect[uint32](m)
	require.NoError(t, err)
	require.Equal(t, drainEntries[uint32](t, testMatrix(t)), drainEntries[uint32](t, got))

	name, ok := got.ColNames(2)
	require.True(t, ok)
	require.Equal(t, "c2", name)
	_, ok = got.RowNames(0)
	require.False(t, ok)
}

func TestConvert(t *testing.T) {
	m := testMatrix(t)
	f := Convert[uint32, float64](m)

	got := drainEntries[float64](t, f)
	require.Equal(t, float64(12), got[len(got)-1].val)

	// Truncation toward zero on the way back.
	fm, err := NewCSC[float64](1, 1, []uint32{0, 1}, []uint32{0}, []float64{2.9})
	require.NoError(t, err)
	back := drainEntries[uint32](t, Convert[float64, uint32](fm))
	require.Equal(t, uint32(2), back[0].val)
}

func TestConcatRows(t *testing.T) {
	top, err := NewCSC[uint32](2, 3, []uint32{0, 1, 1, 2}, []uint32{0, 1}, []uint32{1, 2})
	require.NoError(t, err)
	bottom, err := NewCSC[uint32](3, 3, []uint32{0, 1, 3, 3}, []uint32{2, 0, 1}, []uint32{3, 4, 5})
	require.NoError(t, err)

	m, err := ConcatRows(top, bottom)
	require.NoError(t, err)
	require.Equal(t, uint32(5), m.Rows())
	require.Equal(t, uint32(3), m.Cols())

	got := drainEntries[uint32](t, m)
	require.Equal(t, []entry[uint32]{
		{0, 0, 1}, {4, 0, 3},
		{2, 1, 4}, {3, 1, 5},
		{1, 2, 2},
	}, got)
}

func TestConcatRowsDimensionGuard(t *testing.T) {
	a, err := NewCSC[uint32](1, 2, []uint32{0, 0, 0}, nil, nil)
	require.NoError(t, err)
	b, err := NewCSC[uint32](1, 3, []uint32{0, 0, 0, 0}, nil, nil)
	require.NoError(t, err)

	_, err = ConcatRows(a, b)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestConcatCols(t *testing.T) {
	left, err := NewCSC[uint32](2, 2, []uint32{0, 1, 2}, []uint32{0, 1}, []uint32{1, 2})
	require.NoError(t, err)
	right, err := NewCSC[uint32](2, 1, []uint32{0, 2}, []uint32{0, 1}, []uint32{3, 4})
	require.NoError(t, err)

	m, err := ConcatCols(left, right)
	require.NoError(t, err)
	require.Equal(t, uint32(2), m.Rows())
	require.Equal(t, uint32(3), m.Cols())

	got := drainEntries[uint32](t, m)
	require.Equal(t, []entry[uint32]{
		{0, 0, 1},
		{1, 1, 2},
		{0, 2, 3}, {1, 2, 4},
	}, got)

	// Restart and re-drain.
	require.NoError(t, m.Restart())
	require.Len(t, drainEntries[uint32](t, m), 4)
}

func TestConcatColsSeek(t *testing.T) {
	left, err := NewCSC[uint32](2, 2, []uint32{0, 1, 2}, []uint32{0, 1}, []uint32{1, 2})
	require.NoError(t, err)
	right, err := NewCSC[uint32](2, 1, []uint32{0, 2}, []uint32{0, 1}, []uint32{3, 4})
	require.NoError(t, err)

	m, err := ConcatCols(left, right)
	require.NoError(t, err)

	// Seek into the second source, then walk off its end.
	require.NoError(t, m.SeekCol(2))
	require.True(t, m.NextValue())
	require.Equal(t, uint32(3), m.Val())
	require.False(t, m.NextCol())

	// Seek back into the first source and cross the boundary.
	require.NoError(t, m.SeekCol(1))
	require.True(t, m.NextValue())
	require.Equal(t, uint32(2), m.Val())
	require.True(t, m.NextCol())
	require.Equal(t, uint32(2), m.CurrentCol())
	require.True(t, m.NextValue())
	require.Equal(t, uint32(3), m.Val())

	require.ErrorIs(t, m.SeekCol(3), ErrDimensionMismatch)
}

func TestConcatColsDimensionGuard(t *testing.T) {
	a, err := NewCSC[uint32](1, 1, []uint32{0, 0}, nil, nil)
	require.NoError(t, err)
	b, err := NewCSC[uint32](2, 1, []uint32{0, 0}, nil, nil)
	require.NoError(t, err)

	_, err = ConcatCols(a, b)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestColSelect(t *testing.T) {
	m := testMatrix(t)
	require.NoError(t, m.SetNames(nil, []string{"c0", "c1", "c2", "c3", "c4"}))

	// Reorder with a repeat: columns 0, 4, 2, 0.
	sel, err := ColSelect[uint32](m, []uint32{0, 4, 2, 0})
	require.NoError(t, err)
	require.Equal(t, uint32(4), sel.Cols())

	got := drainEntries[uint32](t, sel)
	require.Equal(t, []entry[uint32]{
		{1, 0, 0}, {2, 0, 1}, {3, 0, 2}, {4, 0, 3},
		{3, 2, 9}, {4, 2, 10},
		{1, 3, 0}, {2, 3, 1}, {3, 3, 2}, {4, 3, 3},
	}, got)

	name, ok := sel.ColNames(1)
	require.True(t, ok)
	require.Equal(t, "c4", name)

	require.NoError(t, sel.SeekCol(2))
	require.True(t, sel.NextValue())
	require.Equal(t, uint32(3), sel.Row())

	_, err = ColSelect[uint32](m, []uint32{9})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestRowSelectAscending(t *testing.T) {
	m := testMatrix(t)

	sel, err := RowSelect[uint32](m, []uint32{0, 2, 4})
	require.NoError(t, err)
	require.Equal(t, uint32(3), sel.Rows())

	got := drainEntries[uint32](t, sel)
	require.Equal(t, []entry[uint32]{
		{1, 0, 1}, {2, 0, 3},
		{1, 1, 5}, {2, 1, 7},
		{2, 2, 10},
		{2, 3, 12},
	}, got)
}

func TestRowSelectReordered(t *testing.T) {
	m := testMatrix(t)

	// Non-ascending list: new ids follow list positions, entries stay in
	// source row order.
	sel, err := RowSelect[uint32](m, []uint32{0, 4, 2})
	require.NoError(t, err)

	got := drainEntries[uint32](t, sel)
	require.Equal(t, []entry[uint32]{
		{2, 0, 1}, {1, 0, 3},
		{2, 1, 5}, {1, 1, 7},
		{1, 2, 10},
		{1, 3, 12},
	}, got)
}

func TestRowSelectValidation(t *testing.T) {
	m := testMatrix(t)

	_, err := RowSelect[uint32](m, []uint32{1, 1})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = RowSelect[uint32](m, []uint32{17})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}
