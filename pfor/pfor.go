// Package pfor implements the packed-block integer codec used by the packed
// fragment and matrix stores.
//
// Values are encoded in blocks of at most BlockSize entries. Each block picks
// a single bit width and packs every value into that many bits; values that do
// not fit are written to a small exception list at the end of the block and
// their packed slot is left zero. The width is chosen per block to minimize
// the encoded size, so blocks of small deltas (the common case for sorted row
// indices and count data) pack down to a few bits per entry while the odd
// outlier costs five bytes instead of widening the whole block.
//
// The codec is pure: encode turns a []uint32 into bytes, decode turns bytes
// back into a []uint32. All I/O, block boundary bookkeeping and column
// structure live in the store packages.
package pfor

import (
	"errors"
	"fmt"
	"math/bits"
)

// BlockSize is the maximum number of values in one encoded block.
const BlockSize = 128

var (
	// ErrBlockTooLarge is returned when encoding more than BlockSize values.
	ErrBlockTooLarge = errors.New("pfor: block exceeds maximum size")

	// ErrCorrupted is returned when a block is truncated or internally
	// inconsistent.
	ErrCorrupted = errors.New("pfor: corrupted block")

	// ErrUnsupportedWidth is returned when a block declares a bit width the
	// decoder does not understand.
	ErrUnsupportedWidth = errors.New("pfor: unsupported bit width")
)

// exceptionCost is the encoded size of one exception in bits: a one-byte slot
// position plus the full four-byte value.
const exceptionCost = 8 + 32

// Encode appends one encoded block holding vals to dst and returns the
// extended slice. len(vals) must not exceed BlockSize.
func Encode(dst []byte, vals []uint32) ([]byte, error) {
	n := len(vals)
	if n > BlockSize {
		return dst, fmt.Errorf("%w: %d values", ErrBlockTooLarge, n)
	}

	width, nex := chooseWidth(vals)

	dst = append(dst, byte(n), byte(width), byte(nex))
	dst = packBits(dst, vals, width)

	if nex > 0 {
		limit := widthLimit(width)
		for i, v := range vals {
			if uint64(v) >= limit {
				dst = append(dst, byte(i), byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
			}
		}
	}
	return dst, nil
}

// Decode reads one block from src, appends the decoded values to dst and
// returns the extended slice along with the number of bytes consumed.
func Decode(src []byte, dst []uint32) ([]uint32, int, error) {
	if len(src) < 3 {
		return dst, 0, ErrCorrupted
	}
	n := int(src[0])
	width := uint(src[1])
	nex := int(src[2])
	if n > BlockSize || nex > n {
		return dst, 0, ErrCorrupted
	}
	if width > 32 {
		return dst, 0, fmt.Errorf("%w: %d", ErrUnsupportedWidth, width)
	}

	packed := (n*int(width) + 7) / 8
	total := 3 + packed + nex*5
	if len(src) < total {
		return dst, 0, ErrCorrupted
	}

	base := len(dst)
	dst = unpackBits(src[3:3+packed], n, width, dst)

	ex := src[3+packed : total]
	for i := 0; i < nex; i++ {
		pos := int(ex[i*5])
		if pos >= n {
			return dst, 0, ErrCorrupted
		}
		v := uint32(ex[i*5+1]) | uint32(ex[i*5+2])<<8 | uint32(ex[i*5+3])<<16 | uint32(ex[i*5+4])<<24
		dst[base+pos] = v
	}
	return dst, total, nil
}

// DeltaEncode replaces vals in place with successive differences, the first
// value being relative to base. Values must be non-decreasing.
func DeltaEncode(base uint32, vals []uint32) {
	prev := base
	for i, v := range vals {
		vals[i] = v - prev
		prev = v
	}
}

// DeltaDecode reverses DeltaEncode.
func DeltaDecode(base uint32, vals []uint32) {
	prev := base
	for i, d := range vals {
		prev += d
		vals[i] = prev
	}
}

// ZigzagDeltaEncode replaces vals in place with zigzag-mapped successive
// differences, the first value being relative to base. Unlike DeltaEncode it
// tolerates decreasing runs, at the price of one extra bit per entry.
func ZigzagDeltaEncode(base uint32, vals []uint32) {
	prev := base
	for i, v := range vals {
		d := v - prev // modular; round-trips for any pair
		vals[i] = (d << 1) ^ uint32(int32(d)>>31)
		prev = v
	}
}

// ZigzagDeltaDecode reverses ZigzagDeltaEncode.
func ZigzagDeltaDecode(base uint32, vals []uint32) {
	prev := base
	for i, z := range vals {
		d := (z >> 1) ^ -(z & 1)
		prev += d
		vals[i] = prev
	}
}

// widthLimit returns the first value that does NOT fit in width bits.
func widthLimit(width uint) uint64 {
	return uint64(1) << width
}

// chooseWidth picks the bit width minimizing the encoded block size and
// returns it together with the number of exceptions it implies.
func chooseWidth(vals []uint32) (uint, int) {
	// hist[b] = number of values needing exactly b bits.
	var hist [33]int
	for _, v := range vals {
		hist[bits.Len32(v)]++
	}

	bestWidth, bestNex := uint(32), 0
	bestCost := len(vals) * 32
	nex := 0
	for w := 32; w >= 0; w-- {
		if w < 32 {
			nex += hist[w+1]
		}
		cost := len(vals)*w + nex*exceptionCost
		if cost < bestCost || (cost == bestCost && uint(w) < bestWidth) {
			bestWidth, bestNex, bestCost = uint(w), nex, cost
		}
	}
	return bestWidth, bestNex
}

// packBits appends len(vals) values of the given width, LSB first.
func packBits(dst []byte, vals []uint32, width uint) []byte {
	if width == 0 {
		return dst
	}
	mask := uint32(1)<<width - 1
	if width == 32 {
		mask = ^uint32(0)
	}
	limit := widthLimit(width)

	var acc uint64
	var nbits uint
	for _, v := range vals {
		if uint64(v) >= limit {
			v = 0 // exception slot
		}
		acc |= uint64(v&mask) << nbits
		nbits += width
		for nbits >= 8 {
			dst = append(dst, byte(acc))
			acc >>= 8
			nbits -= 8
		}
	}
	if nbits > 0 {
		dst = append(dst, byte(acc))
	}
	return dst
}

// unpackBits appends n values of the given width read from src, LSB first.
func unpackBits(src []byte, n int, width uint, dst []uint32) []uint32 {
	if width == 0 {
		for i := 0; i < n; i++ {
			dst = append(dst, 0)
		}
		return dst
	}
	mask := uint32(1)<<width - 1
	if width == 32 {
		mask = ^uint32(0)
	}

	var acc uint64
	var nbits uint
	idx := 0
	for i := 0; i < n; i++ {
		for nbits < width {
			acc |= uint64(src[idx]) << nbits
			idx++
			nbits += 8
		}
		dst = append(dst, uint32(acc)&mask)
		acc >>= width
		nbits -= width
	}
	return dst
}
