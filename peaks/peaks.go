// Package peaks builds sparse cell-by-region count matrices from a fragment
// stream.
//
// A fragment counts toward a region when the half-open intervals intersect:
// fragment.start < region.end && fragment.end > region.start. A fragment
// spanning several tiles counts once in each. Columns appear in the caller's
// input order; rows are cell ids.
//
// Counting runs one chromosome at a time as a joint sweep over the
// start-sorted fragments and the start-sorted region group: regions whose end
// the fragment stream has passed are retired, and on seekable sources the
// sweep first seeks to the group's earliest region start, letting the
// fragment store's end_max index discard whole blocks.
package peaks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/fragmat/fragmat/fragment"
	"github.com/fragmat/fragmat/matrix"
)

var (
	// ErrUnknownCellCount is returned when the fragment source cannot
	// report its cell count in advance. Materialize text sources into a
	// fragment store first.
	ErrUnknownCellCount = errors.New("peaks: fragment source must know its cell count")

	// ErrInvalidRegion is returned for a region with end <= start or a
	// tile width of zero.
	ErrInvalidRegion = errors.New("peaks: invalid region")
)

// Region is a half-open genomic interval addressed by chromosome name.
type Region struct {
	Chrom string
	Start uint32
	End   uint32
}

// TileRegion is a Region subdivided into fixed-width tiles. The tile count
// is ceil((End-Start)/Width); the last tile is truncated at End.
type TileRegion struct {
	Region
	Width uint32
}

type column struct {
	chr   int // resolved chromosome id; -1 when absent from the source
	start uint32
	end   uint32
	name  string
}

type entry struct {
	row uint32
	val uint32
}

// Matrix is a lazily computed matrix.Source[uint32] of per-cell region
// counts. The fragment stream is consumed on first iteration (or by an
// explicit Compute call); afterwards the matrix serves from memory.
type Matrix struct {
	frags    fragment.Source
	cols     []column
	rowCount uint32

	counts   [][]entry
	computed bool

	col int // -1 before the first column
	i   int
	err error
}

// NewPeakMatrix creates a count matrix with one column per region, in input
// order. Regions naming a chromosome the source does not carry yield empty
// columns; duplicate regions yield independent columns.
func NewPeakMatrix(frags fragment.Source, regions []Region) (*Matrix, error) {
	m, err := newMatrix(frags)
	if err != nil {
		return nil, err
	}
	for _, r := range regions {
		if r.End <= r.Start {
			return nil, fmt.Errorf("%w: %s:%d-%d", ErrInvalidRegion, r.Chrom, r.Start, r.End)
		}
		m.addColumn(r)
	}
	return m, nil
}

// NewTileMatrix creates a count matrix with one column per tile, regions
// expanded in input order.
func NewTileMatrix(frags fragment.Source, tiles []TileRegion) (*Matrix, error) {
	m, err := newMatrix(frags)
	if err != nil {
		return nil, err
	}
	for _, t := range tiles {
		if t.End <= t.Start || t.Width == 0 {
			return nil, fmt.Errorf("%w: %s:%d-%d width %d", ErrInvalidRegion, t.Chrom, t.Start, t.End, t.Width)
		}
		for s := t.Start; s < t.End; s += t.Width {
			m.addColumn(Region{Chrom: t.Chrom, Start: s, End: min(s+t.Width, t.End)})
		}
	}
	return m, nil
}

func newMatrix(frags fragment.Source) (*Matrix, error) {
	cells := frags.CellCount()
	if cells < 0 {
		return nil, ErrUnknownCellCount
	}
	if frags.ChrCount() < 0 {
		return nil, fmt.Errorf("%w: chromosome name table required", ErrUnknownCellCount)
	}
	return &Matrix{frags: frags, rowCount: uint32(cells), col: -1}, nil
}

func (m *Matrix) addColumn(r Region) {
	chr := -1
	for id := 0; id < m.frags.ChrCount(); id++ {
		if name, ok := m.frags.ChrNames(uint32(id)); ok && name == r.Chrom {
			chr = id
			break
		}
	}
	m.cols = append(m.cols, column{
		chr:   chr,
		start: r.Start,
		end:   r.End,
		name:  fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End),
	})
}

// Compute counts all columns eagerly. ctx is polled during the fragment
// sweep, so long aggregations cancel promptly.
func (m *Matrix) Compute(ctx context.Context) error {
	if m.computed {
		return nil
	}

	// Group column indices by chromosome, sorted by region start.
	groups := make(map[int][]int)
	for i, c := range m.cols {
		if c.chr >= 0 {
			groups[c.chr] = append(groups[c.chr], i)
		}
	}
	for _, cs := range groups {
		slices.SortStableFunc(cs, func(a, b int) int {
			return cmp.Compare(m.cols[a].start, m.cols[b].start)
		})
	}

	acc := make([]map[uint32]uint32, len(m.cols))
	for i := range acc {
		acc[i] = make(map[uint32]uint32)
	}

	if err := m.sweep(ctx, groups, acc); err != nil {
		return err
	}

	m.counts = make([][]entry, len(m.cols))
	for i, cellCounts := range acc {
		es := make([]entry, 0, len(cellCounts))
		for row, val := range cellCounts {
			es = append(es, entry{row: row, val: val})
		}
		sort.Slice(es, func(a, b int) bool { return es[a].row < es[b].row })
		m.counts[i] = es
	}
	m.computed = true
	return nil
}

func (m *Matrix) sweep(ctx context.Context, groups map[int][]int, acc []map[uint32]uint32) error {
	frags := m.frags
	if err := frags.Restart(); err != nil {
		return err
	}

	if frags.Seekable() {
		chrs := make([]int, 0, len(groups))
		for c := range groups {
			chrs = append(chrs, c)
		}
		sort.Ints(chrs)
		for _, c := range chrs {
			cs := groups[c]
			if err := frags.Seek(uint32(c), m.cols[cs[0]].start); err != nil {
				return err
			}
			if err := m.sweepChromosome(ctx, cs, acc); err != nil {
				return err
			}
		}
		return frags.Err()
	}

	for frags.NextChr() {
		cs, ok := groups[int(frags.CurrentChr())]
		if !ok {
			continue
		}
		if err := m.sweepChromosome(ctx, cs, acc); err != nil {
			return err
		}
	}
	return frags.Err()
}

// sweepChromosome counts one start-sorted column group against the fragments
// remaining in the current chromosome.
func (m *Matrix) sweepChromosome(ctx context.Context, cs []int, acc []map[uint32]uint32) error {
	frags := m.frags
	alive := 0
	seen := 0
	for frags.NextFrag() {
		seen++
		if seen%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		s, e := frags.Start(), frags.End()
		for alive < len(cs) && m.cols[cs[alive]].end <= s {
			alive++
		}
		if alive == len(cs) {
			break
		}
		for k := alive; k < len(cs) && m.cols[cs[k]].start < e; k++ {
			if s < m.cols[cs[k]].end {
				acc[cs[k]][frags.Cell()]++
			}
		}
	}
	return frags.Err()
}

func (m *Matrix) ready() bool {
	if m.err != nil {
		return false
	}
	if !m.computed {
		if err := m.Compute(context.Background()); err != nil {
			m.err = err
			return false
		}
	}
	return true
}

func (m *Matrix) Rows() uint32 { return m.rowCount }
func (m *Matrix) Cols() uint32 { return uint32(len(m.cols)) }

// RowNames resolves cell ids through the fragment source's table.
func (m *Matrix) RowNames(id uint32) (string, bool) { return m.frags.CellNames(id) }

// ColNames returns "chrom:start-end" labels.
func (m *Matrix) ColNames(id uint32) (string, bool) {
	if int(id) >= len(m.cols) {
		return "", false
	}
	return m.cols[id].name, true
}

func (m *Matrix) NextCol() bool {
	if !m.ready() {
		return false
	}
	if m.col+1 >= len(m.cols) {
		m.col = len(m.cols)
		return false
	}
	m.col++
	m.i = 0
	return true
}

func (m *Matrix) CurrentCol() uint32 { return uint32(m.col) }

func (m *Matrix) NextValue() bool {
	if !m.ready() || m.col < 0 || m.col >= len(m.cols) {
		return false
	}
	if m.i >= len(m.counts[m.col]) {
		return false
	}
	m.i++
	return true
}

func (m *Matrix) Row() uint32 { return m.counts[m.col][m.i-1].row }
func (m *Matrix) Val() uint32 { return m.counts[m.col][m.i-1].val }

func (m *Matrix) SeekCol(col uint32) error {
	if int(col) >= len(m.cols) {
		return fmt.Errorf("%w: column %d of %d", matrix.ErrDimensionMismatch, col, len(m.cols))
	}
	if !m.ready() {
		return m.err
	}
	m.col = int(col)
	m.i = 0
	return nil
}

func (m *Matrix) Restart() error {
	m.col = -1
	return nil
}

func (m *Matrix) Err() error { return m.err }
