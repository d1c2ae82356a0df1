package fragstore

import (
	"context"
	"fmt"

	"github.com/fragmat/fragmat/arrays"
	"github.com/fragmat/fragmat/blobstore"
	"github.com/fragmat/fragmat/pfor"
)

// columns serves random access to the stored fragment columns. Implementations
// may decode lazily; errors surface through the loader's Err.
type columns interface {
	frag(pos uint32) (start, end, cell uint32, err error)
}

// Loader reads a fragment store and implements fragment.Source with
// end_max-pruned seeking. All arrays are loaded during Open; iteration never
// touches the blob store again.
type Loader struct {
	cols      columns
	chrNames  []string
	cellNames []string
	chrPtr    []uint32
	endMax    []uint32

	chr      int // -1 before the first chromosome
	pos      uint32
	groupEnd uint32

	curStart, curEnd, curCell uint32
	err                       error
}

// Open loads a fragment store of either layout.
func Open(ctx context.Context, store blobstore.BlobStore) (*Loader, error) {
	ar := arrays.NewReader(store)

	version, err := ar.Version(ctx)
	if err != nil {
		return nil, err
	}

	l := &Loader{chr: -1}
	if l.chrPtr, err = ar.Uints(ctx, blobChrPtr); err != nil {
		return nil, err
	}
	if l.endMax, err = ar.Uints(ctx, blobEndMax); err != nil {
		return nil, err
	}
	if l.chrNames, err = ar.Strings(ctx, blobChrNames); err != nil {
		return nil, err
	}
	if l.cellNames, err = ar.Strings(ctx, blobCellNames); err != nil {
		return nil, err
	}

	if len(l.chrPtr) != 2*len(l.chrNames) {
		return nil, fmt.Errorf("%w: chr_ptr holds %d entries for %d chromosomes", ErrCorrupted, len(l.chrPtr), len(l.chrNames))
	}
	var total uint32
	for i := 0; i < len(l.chrPtr); i += 2 {
		lo, hi := l.chrPtr[i], l.chrPtr[i+1]
		if lo > hi {
			return nil, fmt.Errorf("%w: chr_ptr range [%d, %d)", ErrCorrupted, lo, hi)
		}
		if hi > total {
			total = hi
		}
	}
	wantBlocks := (int(total) + BlockSize - 1) / BlockSize
	if len(l.endMax) < wantBlocks {
		return nil, fmt.Errorf("%w: end_max holds %d blocks, want %d", ErrCorrupted, len(l.endMax), wantBlocks)
	}

	switch version {
	case VersionUnpacked:
		l.cols, err = openUnpacked(ctx, ar, total)
	case VersionPacked:
		l.cols, err = openPacked(ctx, ar, total)
	default:
		return nil, fmt.Errorf("%w: got %q", arrays.ErrVersionMismatch, version)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) ChrCount() int  { return len(l.chrNames) }
func (l *Loader) CellCount() int { return len(l.cellNames) }

func (l *Loader) ChrNames(id uint32) (string, bool) {
	if int(id) >= len(l.chrNames) {
		return "", false
	}
	return l.chrNames[id], true
}

func (l *Loader) CellNames(id uint32) (string, bool) {
	if int(id) >= len(l.cellNames) {
		return "", false
	}
	return l.cellNames[id], true
}

func (l *Loader) NextChr() bool {
	if l.err != nil {
		return false
	}
	if l.chr+1 >= len(l.chrNames) {
		l.chr = len(l.chrNames)
		return false
	}
	l.chr++
	l.pos = l.chrPtr[2*l.chr]
	l.groupEnd = l.chrPtr[2*l.chr+1]
	return true
}

func (l *Loader) CurrentChr() uint32 { return uint32(l.chr) }

func (l *Loader) NextFrag() bool {
	if l.err != nil || l.chr < 0 || l.chr >= len(l.chrNames) {
		return false
	}
	if l.pos >= l.groupEnd {
		return false
	}
	s, e, c, err := l.cols.frag(l.pos)
	if err != nil {
		l.err = err
		return false
	}
	l.curStart, l.curEnd, l.curCell = s, e, c
	l.pos++
	return true
}

func (l *Loader) Start() uint32 { return l.curStart }
func (l *Loader) End() uint32   { return l.curEnd }
func (l *Loader) Cell() uint32  { return l.curCell }

func (l *Loader) Restart() error {
	l.chr = -1
	l.err = nil
	return nil
}

func (l *Loader) Seekable() bool { return true }

// Seek positions the cursor within chr so that every skipped fragment has
// end <= base. Whole 128-fragment blocks are discarded via end_max before the
// per-fragment scan.
func (l *Loader) Seek(chr, base uint32) error {
	if int(chr) >= len(l.chrNames) {
		return fmt.Errorf("fragstore: seek to unknown chromosome %d", chr)
	}
	l.chr = int(chr)
	l.pos = l.chrPtr[2*chr]
	l.groupEnd = l.chrPtr[2*chr+1]

	for l.pos < l.groupEnd && l.endMax[l.pos/BlockSize] <= base {
		next := (l.pos/BlockSize + 1) * BlockSize
		if next > l.groupEnd {
			next = l.groupEnd
		}
		l.pos = next
	}
	for l.pos < l.groupEnd {
		_, e, _, err := l.cols.frag(l.pos)
		if err != nil {
			return err
		}
		if e > base {
			break
		}
		l.pos++
	}
	return nil
}

func (l *Loader) Err() error { return l.err }

type unpackedColumns struct {
	cell, start, end []uint32
}

func openUnpacked(ctx context.Context, ar *arrays.Reader, total uint32) (columns, error) {
	c := &unpackedColumns{}
	var err error
	if c.cell, err = ar.Uints(ctx, blobCell); err != nil {
		return nil, err
	}
	if c.start, err = ar.Uints(ctx, blobStart); err != nil {
		return nil, err
	}
	if c.end, err = ar.Uints(ctx, blobEnd); err != nil {
		return nil, err
	}
	if uint32(len(c.cell)) < total || uint32(len(c.start)) < total || uint32(len(c.end)) < total {
		return nil, fmt.Errorf("%w: columns shorter than chr_ptr extent %d", ErrCorrupted, total)
	}
	return c, nil
}

func (c *unpackedColumns) frag(pos uint32) (uint32, uint32, uint32, error) {
	return c.start[pos], c.end[pos], c.cell[pos], nil
}

type packedColumns struct {
	cellData, startData, endData []byte
	cellIdx, startIdx, endIdx    []uint32
	startStarts                  []uint32

	// decoded block cache
	blockIdx         int
	start, end, cell []uint32
}

func openPacked(ctx context.Context, ar *arrays.Reader, total uint32) (columns, error) {
	c := &packedColumns{blockIdx: -1}
	var err error
	if c.cellData, err = ar.Bytes(ctx, blobCellData); err != nil {
		return nil, err
	}
	if c.cellIdx, err = ar.Uints(ctx, blobCellIdx); err != nil {
		return nil, err
	}
	if c.startData, err = ar.Bytes(ctx, blobStartData); err != nil {
		return nil, err
	}
	if c.startIdx, err = ar.Uints(ctx, blobStartIdx); err != nil {
		return nil, err
	}
	if c.startStarts, err = ar.Uints(ctx, blobStartStarts); err != nil {
		return nil, err
	}
	if c.endData, err = ar.Bytes(ctx, blobEndData); err != nil {
		return nil, err
	}
	if c.endIdx, err = ar.Uints(ctx, blobEndIdx); err != nil {
		return nil, err
	}

	nblocks := (int(total) + BlockSize - 1) / BlockSize
	if len(c.cellIdx) < nblocks+1 || len(c.startIdx) < nblocks+1 || len(c.endIdx) < nblocks+1 || len(c.startStarts) < nblocks {
		return nil, fmt.Errorf("%w: packed block tables shorter than %d blocks", ErrCorrupted, nblocks)
	}
	return c, nil
}

func (c *packedColumns) frag(pos uint32) (uint32, uint32, uint32, error) {
	b := int(pos / BlockSize)
	if b != c.blockIdx {
		if err := c.loadBlock(b); err != nil {
			return 0, 0, 0, err
		}
	}
	i := pos % BlockSize
	if int(i) >= len(c.start) {
		return 0, 0, 0, fmt.Errorf("%w: fragment %d past block %d", ErrCorrupted, pos, b)
	}
	return c.start[i], c.end[i], c.cell[i], nil
}

func (c *packedColumns) loadBlock(b int) error {
	decode := func(data []byte, idx []uint32, dst []uint32) ([]uint32, error) {
		lo, hi := idx[b], idx[b+1]
		if uint32(len(data)) < hi || lo > hi {
			return nil, fmt.Errorf("%w: block %d byte range", ErrCorrupted, b)
		}
		out, _, err := pfor.Decode(data[lo:hi], dst[:0])
		return out, err
	}

	var err error
	if c.cell, err = decode(c.cellData, c.cellIdx, c.cell); err != nil {
		return err
	}
	if c.start, err = decode(c.startData, c.startIdx, c.start); err != nil {
		return err
	}
	pfor.ZigzagDeltaDecode(c.startStarts[b], c.start)
	if c.end, err = decode(c.endData, c.endIdx, c.end); err != nil {
		return err
	}
	if len(c.end) != len(c.start) || len(c.cell) != len(c.start) {
		return fmt.Errorf("%w: block %d column lengths differ", ErrCorrupted, b)
	}
	for i := range c.end {
		c.end[i] += c.start[i]
	}
	c.blockIdx = b
	return nil
}
