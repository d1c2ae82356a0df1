package peaks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fragmat/fragmat/fragment"
)

// workedSource reproduces a structured two-chromosome data set: chr1 holds
// 35 fragments where fragment (cell=i, start=j, end=1002+i) appears i+1
// times for every j >= i, chr2 holds four hand-placed fragments.
func workedSource(t *testing.T) *fragment.Mem {
	t.Helper()

	var c1 fragment.Chrom
	c1.Name = "chr1"
	for j := uint32(0); j <= 4; j++ {
		for i := uint32(0); i <= j; i++ {
			for k := uint32(0); k <= i; k++ {
				c1.Start = append(c1.Start, j)
				c1.End = append(c1.End, 1002+i)
				c1.Cell = append(c1.Cell, i)
			}
		}
	}
	require.Len(t, c1.Start, 35)

	c2 := fragment.Chrom{
		Name:  "chr2",
		Start: []uint32{9, 9, 10, 10},
		End:   []uint32{21, 20, 21, 20},
		Cell:  []uint32{0, 1, 2, 3},
	}

	src, err := fragment.NewMem([]fragment.Chrom{c1, c2}, []string{"c0", "c1", "c2", "c3", "c4"})
	require.NoError(t, err)
	return src
}

func dense(t *testing.T, m *Matrix) [][]uint32 {
	t.Helper()
	out := make([][]uint32, m.Rows())
	for i := range out {
		out[i] = make([]uint32, m.Cols())
	}
	require.NoError(t, m.Restart())
	for m.NextCol() {
		for m.NextValue() {
			out[m.Row()][m.CurrentCol()] = m.Val()
		}
	}
	require.NoError(t, m.Err())
	return out
}

func TestPeakMatrixWorkedScenario(t *testing.T) {
	m, err := NewPeakMatrix(workedSource(t), []Region{
		{Chrom: "chr1", Start: 2, End: 4},
		{Chrom: "chr1", Start: 1002, End: 1005},
		{Chrom: "chr1", Start: 1004, End: 1006},
		{Chrom: "chr2", Start: 10, End: 20},
	})
	require.NoError(t, err)
	require.Equal(t, uint32(5), m.Rows())
	require.Equal(t, uint32(4), m.Cols())

	require.Equal(t, [][]uint32{
		{4, 0, 0, 1},
		{6, 8, 0, 1},
		{6, 9, 0, 1},
		{4, 8, 8, 1},
		{0, 5, 5, 0},
	}, dense(t, m))

	name, ok := m.ColNames(0)
	require.True(t, ok)
	require.Equal(t, "chr1:2-4", name)
	name, ok = m.RowNames(4)
	require.True(t, ok)
	require.Equal(t, "c4", name)
}

func TestPeakMatrixColumnsFollowInputOrder(t *testing.T) {
	// Regions deliberately out of coordinate order and across chromosomes.
	regions := []Region{
		{Chrom: "chr2", Start: 10, End: 20},
		{Chrom: "chr1", Start: 1002, End: 1005},
		{Chrom: "chr1", Start: 2, End: 4},
	}
	m, err := NewPeakMatrix(workedSource(t), regions)
	require.NoError(t, err)

	got := dense(t, m)
	require.Equal(t, uint32(1), got[0][0])
	require.Equal(t, uint32(8), got[1][1])
	require.Equal(t, uint32(4), got[0][2])

	name, ok := m.ColNames(0)
	require.True(t, ok)
	require.Equal(t, "chr2:10-20", name)
}

func TestPeakMatrixDuplicateAndAbsentRegions(t *testing.T) {
	m, err := NewPeakMatrix(workedSource(t), []Region{
		{Chrom: "chr2", Start: 10, End: 20},
		{Chrom: "chr2", Start: 10, End: 20},
		{Chrom: "chrMissing", Start: 0, End: 100},
	})
	require.NoError(t, err)

	got := dense(t, m)
	for cell := 0; cell < 4; cell++ {
		require.Equal(t, got[cell][0], got[cell][1])
	}
	for cell := 0; cell < 5; cell++ {
		require.Zero(t, got[cell][2])
	}
}

func TestPeakMatrixSpanningFragmentCountsOncePerRegion(t *testing.T) {
	src, err := fragment.NewMem([]fragment.Chrom{
		{Name: "chr1", Start: []uint32{0}, End: []uint32{100}, Cell: []uint32{0}},
	}, []string{"c0"})
	require.NoError(t, err)

	m, err := NewPeakMatrix(src, []Region{
		{Chrom: "chr1", Start: 10, End: 20},
		{Chrom: "chr1", Start: 30, End: 40},
		{Chrom: "chr1", Start: 200, End: 300},
	})
	require.NoError(t, err)

	require.Equal(t, [][]uint32{{1, 1, 0}}, dense(t, m))
}

func TestTileMatrixSubdivision(t *testing.T) {
	src, err := fragment.NewMem([]fragment.Chrom{
		{Name: "chr1", Start: []uint32{12}, End: []uint32{23}, Cell: []uint32{0}},
	}, []string{"c0"})
	require.NoError(t, err)

	// [10, 27) with width 5 yields tiles [10,15) [15,20) [20,25) [25,27):
	// ceil(17/5) = 4, the last truncated.
	m, err := NewTileMatrix(src, []TileRegion{
		{Region: Region{Chrom: "chr1", Start: 10, End: 27}, Width: 5},
	})
	require.NoError(t, err)
	require.Equal(t, uint32(4), m.Cols())

	name, ok := m.ColNames(3)
	require.True(t, ok)
	require.Equal(t, "chr1:25-27", name)

	// The fragment [12, 23) spans tiles 0, 1 and 2, counting once in each.
	require.Equal(t, [][]uint32{{1, 1, 1, 0}}, dense(t, m))
}

func TestTileMatrixMultipleParents(t *testing.T) {
	src, err := fragment.NewMem([]fragment.Chrom{
		{Name: "chr1", Start: []uint32{0, 35}, End: []uint32{12, 36}, Cell: []uint32{0, 1}},
		{Name: "chr2", Start: []uint32{71}, End: []uint32{79}, Cell: []uint32{1}},
	}, []string{"c0", "c1"})
	require.NoError(t, err)

	m, err := NewTileMatrix(src, []TileRegion{
		{Region: Region{Chrom: "chr1", Start: 10, End: 20}, Width: 5},
		{Region: Region{Chrom: "chr1", Start: 30, End: 40}, Width: 3},
		{Region: Region{Chrom: "chr2", Start: 70, End: 82}, Width: 12},
	})
	require.NoError(t, err)

	// Tiles: chr1 [10,15) [15,20); chr1 [30,33) [33,36) [36,39) [39,40);
	// chr2 [70,82). 7 columns.
	require.Equal(t, uint32(7), m.Cols())
	require.Equal(t, [][]uint32{
		{1, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 1, 0, 0, 1},
	}, dense(t, m))
}

func TestMatrixValidation(t *testing.T) {
	src := workedSource(t)

	_, err := NewPeakMatrix(src, []Region{{Chrom: "chr1", Start: 5, End: 5}})
	require.ErrorIs(t, err, ErrInvalidRegion)

	_, err = NewTileMatrix(src, []TileRegion{{Region: Region{Chrom: "chr1", Start: 0, End: 10}, Width: 0}})
	require.ErrorIs(t, err, ErrInvalidRegion)
}

func TestSeekColAndRestart(t *testing.T) {
	m, err := NewPeakMatrix(workedSource(t), []Region{
		{Chrom: "chr1", Start: 2, End: 4},
		{Chrom: "chr2", Start: 10, End: 20},
	})
	require.NoError(t, err)

	require.NoError(t, m.SeekCol(1))
	require.True(t, m.NextValue())
	require.Equal(t, uint32(0), m.Row())
	require.Equal(t, uint32(1), m.Val())

	require.NoError(t, m.Restart())
	require.True(t, m.NextCol())
	require.Equal(t, uint32(0), m.CurrentCol())

	require.Error(t, m.SeekCol(2))
}

func TestComputeCanceled(t *testing.T) {
	rng := make([]uint32, 2000)
	starts := make([]uint32, 2000)
	ends := make([]uint32, 2000)
	for i := range starts {
		starts[i] = uint32(i)
		ends[i] = uint32(i + 10)
		rng[i] = 0
	}
	src, err := fragment.NewMem([]fragment.Chrom{
		{Name: "chr1", Start: starts, End: ends, Cell: rng},
	}, []string{"c0"})
	require.NoError(t, err)

	m, err := NewPeakMatrix(src, []Region{{Chrom: "chr1", Start: 0, End: 3000}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Compute(ctx), context.Canceled)
}
