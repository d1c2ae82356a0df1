package pfor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, vals []uint32) {
	t.Helper()

	enc, err := Encode(nil, vals)
	require.NoError(t, err)

	dec, n, err := Decode(enc, nil)
	require.NoError(t, err)
	require.Equal(t, len(enc), n)
	require.Equal(t, len(vals), len(dec))
	for i := range vals {
		require.Equal(t, vals[i], dec[i], "value %d", i)
	}
}

func TestEncodeDecodeBasic(t *testing.T) {
	tests := []struct {
		name string
		vals []uint32
	}{
		{"empty", nil},
		{"single", []uint32{42}},
		{"zeros", make([]uint32, BlockSize)},
		{"small run", []uint32{1, 2, 1, 3, 1, 1, 2, 4}},
		{"max values", []uint32{^uint32(0), ^uint32(0) - 1, 0}},
		{"one outlier", []uint32{1, 2, 3, 1 << 30, 2, 1}},
		{"all large", []uint32{1 << 29, 1 << 30, 1 << 31, 1<<31 + 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roundTrip(t, tt.vals)
		})
	}
}

func TestEncodeRejectsOversizedBlock(t *testing.T) {
	_, err := Encode(nil, make([]uint32, BlockSize+1))
	require.ErrorIs(t, err, ErrBlockTooLarge)
}

func TestDecodeTruncated(t *testing.T) {
	enc, err := Encode(nil, []uint32{5, 6, 7, 1 << 25})
	require.NoError(t, err)

	for cut := 0; cut < len(enc); cut++ {
		_, _, err := Decode(enc[:cut], nil)
		require.Error(t, err, "cut at %d", cut)
	}
}

func TestDecodeBadWidth(t *testing.T) {
	_, _, err := Decode([]byte{1, 33, 0, 0, 0, 0, 0}, nil)
	require.ErrorIs(t, err, ErrUnsupportedWidth)
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	// Mix of distributions: tiny counts, medium, full-range, and skewed
	// blocks with rare outliers.
	gens := []func() uint32{
		func() uint32 { return uint32(rng.Intn(4)) },
		func() uint32 { return uint32(rng.Intn(1000)) },
		func() uint32 { return rng.Uint32() },
		func() uint32 {
			if rng.Intn(50) == 0 {
				return rng.Uint32()
			}
			return uint32(rng.Intn(16))
		},
	}

	for _, gen := range gens {
		for trial := 0; trial < 200; trial++ {
			vals := make([]uint32, rng.Intn(BlockSize+1))
			for i := range vals {
				vals[i] = gen()
			}
			roundTrip(t, vals)
		}
	}
}

func TestDecodeConsecutiveBlocks(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	var all []uint32
	var enc []byte
	var err error
	for b := 0; b < 10; b++ {
		vals := make([]uint32, BlockSize)
		for i := range vals {
			vals[i] = uint32(rng.Intn(1 << 12))
		}
		all = append(all, vals...)
		enc, err = Encode(enc, vals)
		require.NoError(t, err)
	}

	var dec []uint32
	rest := enc
	for len(rest) > 0 {
		var n int
		dec, n, err = Decode(rest, dec)
		require.NoError(t, err)
		rest = rest[n:]
	}
	require.Equal(t, all, dec)
}

func TestDeltaRoundTrip(t *testing.T) {
	vals := []uint32{10, 10, 12, 40, 41, 1000}
	orig := append([]uint32(nil), vals...)

	DeltaEncode(7, vals)
	require.Equal(t, []uint32{3, 0, 2, 28, 1, 959}, vals)
	DeltaDecode(7, vals)
	require.Equal(t, orig, vals)
}

func TestZigzagDeltaRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	for trial := 0; trial < 100; trial++ {
		vals := make([]uint32, rng.Intn(BlockSize+1))
		for i := range vals {
			vals[i] = rng.Uint32() // arbitrary order, including decreasing runs
		}
		orig := append([]uint32(nil), vals...)
		base := rng.Uint32()

		ZigzagDeltaEncode(base, vals)
		ZigzagDeltaDecode(base, vals)
		require.Equal(t, orig, vals)
	}
}

func TestZigzagSmallForLocalRuns(t *testing.T) {
	// Nearby values should map to small codes regardless of direction.
	vals := []uint32{100, 101, 99, 102, 100}
	ZigzagDeltaEncode(100, vals)
	for i, z := range vals {
		require.Less(t, z, uint32(8), "code %d", i)
	}
}

func TestCompactSizing(t *testing.T) {
	// A block of values below 16 must pack to ~4 bits per entry.
	vals := make([]uint32, BlockSize)
	for i := range vals {
		vals[i] = uint32(i % 16)
	}
	enc, err := Encode(nil, vals)
	require.NoError(t, err)
	require.LessOrEqual(t, len(enc), 3+BlockSize/2)
}
