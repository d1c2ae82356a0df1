package peaks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fragmat/fragmat/blobstore"
	"github.com/fragmat/fragmat/fragment"
	"github.com/fragmat/fragmat/fragstore"
	"github.com/fragmat/fragmat/peaks"
	"github.com/fragmat/fragmat/testutil"
)

// noSeek hides the seek capability, forcing the sequential sweep path.
type noSeek struct {
	fragment.Source
}

func (noSeek) Seekable() bool { return false }

func (noSeek) Seek(chr, base uint32) error { return fragment.ErrNotSeekable }

func TestAggregatorMatchesOracle(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRand(42)
	mem := testutil.RandomFragments(t, rng, []string{"chr1", "chr2", "chr3"}, 30, 800)

	var regions []peaks.Region
	for _, chrom := range []string{"chr1", "chr2", "chr3", "chrX"} {
		pos := uint32(0)
		for i := 0; i < 25; i++ {
			pos += uint32(rng.Intn(1200))
			regions = append(regions, peaks.Region{
				Chrom: chrom,
				Start: pos,
				End:   pos + uint32(1+rng.Intn(500)),
			})
		}
	}
	want := testutil.OverlapCounts(t, mem, regions)

	store := blobstore.NewMemoryStore()
	require.NoError(t, fragstore.Write(ctx, store, mem, fragstore.WithPacked()))
	loader, err := fragstore.Open(ctx, store)
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		src  fragment.Source
	}{
		{"memory", mem},
		{"store", loader},
		{"sequential", noSeek{Source: mem}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m, err := peaks.NewPeakMatrix(tc.src, regions)
			require.NoError(t, err)
			require.NoError(t, m.Compute(ctx))
			require.Equal(t, want, testutil.DenseCounts(t, m))
		})
	}
}

func TestTilesMatchEquivalentPeaks(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRand(43)
	mem := testutil.RandomFragments(t, rng, []string{"chr1"}, 15, 400)

	tile := peaks.TileRegion{
		Region: peaks.Region{Chrom: "chr1", Start: 50, End: 5000},
		Width:  137,
	}
	tm, err := peaks.NewTileMatrix(mem, []peaks.TileRegion{tile})
	require.NoError(t, err)
	require.NoError(t, tm.Compute(ctx))

	// A tile matrix equals a peak matrix over the expanded tile list.
	var expanded []peaks.Region
	for s := tile.Start; s < tile.End; s += tile.Width {
		expanded = append(expanded, peaks.Region{Chrom: "chr1", Start: s, End: min(s+tile.Width, tile.End)})
	}
	require.Equal(t, uint32(len(expanded)), tm.Cols())
	require.Equal(t, testutil.OverlapCounts(t, mem, expanded), testutil.DenseCounts(t, tm))
}

// countless mimics a text-stream source that cannot report its cell count
// before a full pass.
type countless struct {
	fragment.Source
}

func (countless) CellCount() int { return -1 }

func TestRequiresKnownCellCount(t *testing.T) {
	rng := testutil.NewRand(44)
	mem := testutil.RandomFragments(t, rng, []string{"chr1"}, 5, 10)

	_, err := peaks.NewPeakMatrix(countless{Source: mem}, []peaks.Region{
		{Chrom: "chr1", Start: 0, End: 100},
	})
	require.ErrorIs(t, err, peaks.ErrUnknownCellCount)
}
