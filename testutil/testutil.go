// Package testutil provides deterministic data generators, brute-force
// oracles and lockstep comparators shared by the package test suites.
package testutil

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fragmat/fragmat/fragment"
	"github.com/fragmat/fragmat/matrix"
	"github.com/fragmat/fragmat/peaks"
)

// NewRand returns a seeded generator so failures reproduce.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// RandomFragments builds an in-memory fragment source with roughly perChrom
// fragments on each named chromosome, sorted by construction.
func RandomFragments(tb testing.TB, rng *rand.Rand, chromNames []string, cells, perChrom int) *fragment.Mem {
	tb.Helper()

	chroms := make([]fragment.Chrom, len(chromNames))
	for ci, name := range chromNames {
		c := fragment.Chrom{Name: name}
		pos := uint32(0)
		for i := 0; i < perChrom; i++ {
			pos += uint32(rng.Intn(40))
			length := uint32(1 + rng.Intn(300))
			c.Start = append(c.Start, pos)
			c.End = append(c.End, pos+length)
			c.Cell = append(c.Cell, uint32(rng.Intn(cells)))
		}
		chroms[ci] = c
	}

	names := make([]string, cells)
	for i := range names {
		names[i] = fmt.Sprintf("cell%03d", i)
	}
	src, err := fragment.NewMem(chroms, names)
	require.NoError(tb, err)
	return src
}

// RandomMatrix builds an in-memory sparse uint32 matrix with the given
// density of nonzero entries.
func RandomMatrix(tb testing.TB, rng *rand.Rand, rows, cols uint32, density float64) *matrix.CSC[uint32] {
	tb.Helper()

	indptr := make([]uint32, 1, cols+1)
	var indices, data []uint32
	for j := uint32(0); j < cols; j++ {
		for i := uint32(0); i < rows; i++ {
			if rng.Float64() < density {
				indices = append(indices, i)
				data = append(data, uint32(1+rng.Intn(50)))
			}
		}
		indptr = append(indptr, uint32(len(indices)))
	}
	m, err := matrix.NewCSC(rows, cols, indptr, indices, data)
	require.NoError(tb, err)
	return m
}

// OverlapCounts counts fragment-region overlaps by exhaustive pairwise
// testing, the oracle the swept aggregator must match. The result is dense:
// counts[cell][region].
func OverlapCounts(tb testing.TB, src fragment.Source, regions []peaks.Region) [][]uint32 {
	tb.Helper()

	cells := src.CellCount()
	require.GreaterOrEqual(tb, cells, 0)
	counts := make([][]uint32, cells)
	for i := range counts {
		counts[i] = make([]uint32, len(regions))
	}

	require.NoError(tb, src.Restart())
	for src.NextChr() {
		chrom, ok := src.ChrNames(src.CurrentChr())
		require.True(tb, ok)
		for src.NextFrag() {
			s, e, cell := src.Start(), src.End(), src.Cell()
			for j, r := range regions {
				if r.Chrom == chrom && s < r.End && e > r.Start {
					counts[cell][j]++
				}
			}
		}
	}
	require.NoError(tb, src.Err())
	return counts
}

// RequireMatrixEqual drains both sources from the start and compares shape,
// entries and values in lockstep.
func RequireMatrixEqual[T matrix.Value](tb testing.TB, want, got matrix.Source[T]) {
	tb.Helper()

	require.NoError(tb, want.Restart())
	require.NoError(tb, got.Restart())
	require.Equal(tb, want.Rows(), got.Rows())
	require.Equal(tb, want.Cols(), got.Cols())
	for {
		wOK, gOK := want.NextCol(), got.NextCol()
		require.Equal(tb, wOK, gOK)
		if !wOK {
			break
		}
		for {
			wOK, gOK = want.NextValue(), got.NextValue()
			require.Equal(tb, wOK, gOK, "column %d", want.CurrentCol())
			if !wOK {
				break
			}
			require.Equal(tb, want.Row(), got.Row(), "column %d", want.CurrentCol())
			require.Equal(tb, want.Val(), got.Val(), "column %d row %d", want.CurrentCol(), want.Row())
		}
	}
	require.NoError(tb, want.Err())
	require.NoError(tb, got.Err())
}

// RequireFragmentsEqual drains both sources from the start and compares
// chromosome structure and fragment columns in lockstep.
func RequireFragmentsEqual(tb testing.TB, want, got fragment.Source) {
	tb.Helper()

	require.NoError(tb, want.Restart())
	require.NoError(tb, got.Restart())
	for {
		wOK, gOK := want.NextChr(), got.NextChr()
		require.Equal(tb, wOK, gOK)
		if !wOK {
			break
		}
		wName, _ := want.ChrNames(want.CurrentChr())
		gName, _ := got.ChrNames(got.CurrentChr())
		require.Equal(tb, wName, gName)
		for {
			wOK, gOK = want.NextFrag(), got.NextFrag()
			require.Equal(tb, wOK, gOK, "chromosome %s", wName)
			if !wOK {
				break
			}
			require.Equal(tb, want.Start(), got.Start())
			require.Equal(tb, want.End(), got.End())
			require.Equal(tb, want.Cell(), got.Cell())
		}
	}
	require.NoError(tb, want.Err())
	require.NoError(tb, got.Err())
}

// DenseCounts materializes a uint32 matrix source as a dense counts[row][col]
// table for comparison against OverlapCounts.
func DenseCounts(tb testing.TB, src matrix.Source[uint32]) [][]uint32 {
	tb.Helper()

	out := make([][]uint32, src.Rows())
	for i := range out {
		out[i] = make([]uint32, src.Cols())
	}
	require.NoError(tb, src.Restart())
	for src.NextCol() {
		for src.NextValue() {
			out[src.Row()][src.CurrentCol()] = src.Val()
		}
	}
	require.NoError(tb, src.Err())
	return out
}
