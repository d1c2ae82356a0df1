package fragstore

import (
	"context"
	"fmt"

	"github.com/fragmat/fragmat/arrays"
	"github.com/fragmat/fragmat/blobstore"
	"github.com/fragmat/fragmat/fragment"
	"github.com/fragmat/fragmat/pfor"
)

// Writer accumulates fragments in memory and finalizes them into a blob
// store. Fragments must arrive chromosome by chromosome, sorted by start
// within each.
type Writer struct {
	packed bool

	cell, start, end []uint32
	chrNames         []string
	chrPtr           []uint32 // [first, last) pairs per chromosome
	cellNames        []string

	lastStart uint32
	maxCell   uint32
	inChrom   bool
	finalized bool
}

// WriterOption customizes a Writer.
type WriterOption func(*Writer)

// WithPacked selects the packed (bit-compressed) layout.
func WithPacked() WriterOption {
	return func(w *Writer) { w.packed = true }
}

// NewWriter creates an empty Writer for the unpacked layout unless
// WithPacked is given.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// StartChr begins a new chromosome. Each chromosome may be started once.
func (w *Writer) StartChr(name string) error {
	if w.finalized {
		return ErrFinalized
	}
	for _, prev := range w.chrNames {
		if prev == name {
			return fmt.Errorf("%w: chromosome %q started twice", fragment.ErrUnsorted, name)
		}
	}
	w.chrNames = append(w.chrNames, name)
	n := uint32(len(w.cell))
	w.chrPtr = append(w.chrPtr, n, n)
	w.lastStart = 0
	w.inChrom = true
	return nil
}

// Append adds one fragment to the current chromosome.
func (w *Writer) Append(cell, start, end uint32) error {
	if w.finalized {
		return ErrFinalized
	}
	if !w.inChrom {
		return fmt.Errorf("fragstore: Append before StartChr")
	}
	if end <= start {
		return fmt.Errorf("%w: [%d, %d)", fragment.ErrInvalidInterval, start, end)
	}
	if start < w.lastStart {
		return fmt.Errorf("%w: start %d after %d", fragment.ErrUnsorted, start, w.lastStart)
	}
	w.lastStart = start
	if cell > w.maxCell {
		w.maxCell = cell
	}
	w.cell = append(w.cell, cell)
	w.start = append(w.start, start)
	w.end = append(w.end, end)
	w.chrPtr[len(w.chrPtr)-1]++
	return nil
}

// SetCellNames provides the cell name table. The table length defines the
// cell id space.
func (w *Writer) SetCellNames(names []string) {
	w.cellNames = names
}

// Finalize validates the accumulated data and writes all arrays. The writer
// cannot be reused afterwards.
func (w *Writer) Finalize(ctx context.Context, store blobstore.BlobStore) error {
	if w.finalized {
		return ErrFinalized
	}
	if w.cellNames == nil {
		return ErrNoCellNames
	}
	if len(w.cell) > 0 && int(w.maxCell) >= len(w.cellNames) {
		return fmt.Errorf("fragstore: cell id %d outside name table of %d", w.maxCell, len(w.cellNames))
	}
	w.finalized = true

	endMax := buildEndMax(w.end)

	aw := arrays.NewWriter(store)
	if err := aw.PutUints(ctx, blobChrPtr, w.chrPtr); err != nil {
		return err
	}
	if err := aw.PutUints(ctx, blobEndMax, endMax); err != nil {
		return err
	}
	if err := aw.PutStrings(ctx, blobChrNames, w.chrNames); err != nil {
		return err
	}
	if err := aw.PutStrings(ctx, blobCellNames, w.cellNames); err != nil {
		return err
	}

	if w.packed {
		if err := w.writePacked(ctx, aw); err != nil {
			return err
		}
		return aw.PutVersion(ctx, VersionPacked)
	}

	if err := aw.PutUints(ctx, blobCell, w.cell); err != nil {
		return err
	}
	if err := aw.PutUints(ctx, blobStart, w.start); err != nil {
		return err
	}
	if err := aw.PutUints(ctx, blobEnd, w.end); err != nil {
		return err
	}
	return aw.PutVersion(ctx, VersionUnpacked)
}

func (w *Writer) writePacked(ctx context.Context, aw *arrays.Writer) error {
	n := len(w.cell)
	nblocks := (n + BlockSize - 1) / BlockSize

	var cellData, startData, endData []byte
	cellIdx := make([]uint32, 1, nblocks+1)
	startIdx := make([]uint32, 1, nblocks+1)
	endIdx := make([]uint32, 1, nblocks+1)
	startStarts := make([]uint32, 0, nblocks)

	scratch := make([]uint32, BlockSize)
	for b := 0; b < nblocks; b++ {
		if b%8 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		lo := b * BlockSize
		hi := min(lo+BlockSize, n)

		var err error
		cellData, err = pfor.Encode(cellData, w.cell[lo:hi])
		if err != nil {
			return err
		}
		cellIdx = append(cellIdx, uint32(len(cellData)))

		base := w.start[lo]
		vals := scratch[:hi-lo]
		copy(vals, w.start[lo:hi])
		pfor.ZigzagDeltaEncode(base, vals)
		startData, err = pfor.Encode(startData, vals)
		if err != nil {
			return err
		}
		startIdx = append(startIdx, uint32(len(startData)))
		startStarts = append(startStarts, base)

		for i := lo; i < hi; i++ {
			vals[i-lo] = w.end[i] - w.start[i]
		}
		endData, err = pfor.Encode(endData, vals)
		if err != nil {
			return err
		}
		endIdx = append(endIdx, uint32(len(endData)))
	}

	if err := aw.PutBytes(ctx, blobCellData, cellData); err != nil {
		return err
	}
	if err := aw.PutUints(ctx, blobCellIdx, cellIdx); err != nil {
		return err
	}
	if err := aw.PutBytes(ctx, blobStartData, startData); err != nil {
		return err
	}
	if err := aw.PutUints(ctx, blobStartIdx, startIdx); err != nil {
		return err
	}
	if err := aw.PutUints(ctx, blobStartStarts, startStarts); err != nil {
		return err
	}
	if err := aw.PutBytes(ctx, blobEndData, endData); err != nil {
		return err
	}
	return aw.PutUints(ctx, blobEndIdx, endIdx)
}

// buildEndMax computes the per-block maximum end coordinate over the global
// fragment order.
func buildEndMax(end []uint32) []uint32 {
	nblocks := (len(end) + BlockSize - 1) / BlockSize
	out := make([]uint32, nblocks)
	for b := 0; b < nblocks; b++ {
		lo := b * BlockSize
		hi := min(lo+BlockSize, len(end))
		m := uint32(0)
		for _, e := range end[lo:hi] {
			if e > m {
				m = e
			}
		}
		out[b] = m
	}
	return out
}

// Write drains src into a new store. Cell names come from the source's
// tables; sources that discover cells while streaming (text files) must have
// been drained once already or be drained here before names resolve, which
// this function guarantees by collecting names after the copy.
func Write(ctx context.Context, store blobstore.BlobStore, src fragment.Source, opts ...WriterOption) error {
	w := NewWriter(opts...)

	copied := 0
	sawFrags := false
	for src.NextChr() {
		name, ok := src.ChrNames(src.CurrentChr())
		if !ok {
			return fmt.Errorf("fragstore: no name for chromosome %d", src.CurrentChr())
		}
		if err := w.StartChr(name); err != nil {
			return err
		}
		for src.NextFrag() {
			if err := w.Append(src.Cell(), src.Start(), src.End()); err != nil {
				return err
			}
			sawFrags = true
			copied++
			if copied%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
	}
	if err := src.Err(); err != nil {
		return err
	}

	cellCount := src.CellCount()
	if cellCount < 0 {
		if sawFrags {
			cellCount = int(w.maxCell) + 1
		} else {
			cellCount = 0
		}
	}
	names := make([]string, cellCount)
	for i := range names {
		name, ok := src.CellNames(uint32(i))
		if !ok {
			return fmt.Errorf("fragstore: no name for cell %d", i)
		}
		names[i] = name
	}
	w.SetCellNames(names)
	return w.Finalize(ctx, store)
}
