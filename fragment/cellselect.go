package fragment

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// CellSelect filters a Source down to a subset of cells and renumbers them.
// The order of the selection list defines the new cell ids: cells[i] in the
// underlying source becomes cell i in the filtered view.
type CellSelect struct {
	src    Source
	keep   *roaring.Bitmap
	remap  map[uint32]uint32
	oldIDs []uint32
}

// NewCellSelect creates a cell-filtering view of src. The selection must not
// contain duplicates, and when src knows its cell count each entry must be a
// valid cell id.
func NewCellSelect(src Source, cells []uint32) (*CellSelect, error) {
	keep := roaring.New()
	remap := make(map[uint32]uint32, len(cells))
	for i, c := range cells {
		if keep.Contains(c) {
			return nil, fmt.Errorf("fragment: cell %d selected twice", c)
		}
		if n := src.CellCount(); n >= 0 && int(c) >= n {
			return nil, fmt.Errorf("fragment: selected cell %d out of range", c)
		}
		keep.Add(c)
		remap[c] = uint32(i)
	}
	oldIDs := make([]uint32, len(cells))
	copy(oldIDs, cells)
	return &CellSelect{src: src, keep: keep, remap: remap, oldIDs: oldIDs}, nil
}

func (s *CellSelect) ChrCount() int  { return s.src.ChrCount() }
func (s *CellSelect) CellCount() int { return len(s.oldIDs) }

func (s *CellSelect) ChrNames(id uint32) (string, bool) { return s.src.ChrNames(id) }

func (s *CellSelect) CellNames(id uint32) (string, bool) {
	if int(id) >= len(s.oldIDs) {
		return "", false
	}
	return s.src.CellNames(s.oldIDs[id])
}

func (s *CellSelect) NextChr() bool      { return s.src.NextChr() }
func (s *CellSelect) CurrentChr() uint32 { return s.src.CurrentChr() }

func (s *CellSelect) NextFrag() bool {
	for s.src.NextFrag() {
		if s.keep.Contains(s.src.Cell()) {
			return true
		}
	}
	return false
}

func (s *CellSelect) Start() uint32 { return s.src.Start() }
func (s *CellSelect) End() uint32   { return s.src.End() }
func (s *CellSelect) Cell() uint32  { return s.remap[s.src.Cell()] }

func (s *CellSelect) Restart() error { return s.src.Restart() }

func (s *CellSelect) Seekable() bool { return s.src.Seekable() }

func (s *CellSelect) Seek(chr, base uint32) error { return s.src.Seek(chr, base) }

func (s *CellSelect) Err() error { return s.src.Err() }
