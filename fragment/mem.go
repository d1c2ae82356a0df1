package fragment

import "fmt"

// Chrom is one chromosome's worth of fragments in column form. The three
// slices run in parallel and must be sorted by Start.
type Chrom struct {
	Name  string
	Start []uint32
	End   []uint32
	Cell  []uint32
}

// Mem is an in-memory Source. Construction validates the sort and interval
// invariants once; iteration and seeking are then infallible.
type Mem struct {
	chroms    []Chrom
	cellNames []string

	chr int // -1 before the first chromosome
	pos int // -1 before the first fragment of the current chromosome
}

// NewMem creates an in-memory fragment source. cellNames defines the cell id
// space; every fragment's cell id must fall inside it.
func NewMem(chroms []Chrom, cellNames []string) (*Mem, error) {
	for ci, c := range chroms {
		if len(c.End) != len(c.Start) || len(c.Cell) != len(c.Start) {
			return nil, fmt.Errorf("fragment: chromosome %q: column lengths differ", c.Name)
		}
		for i := range c.Start {
			if i > 0 && c.Start[i] < c.Start[i-1] {
				return nil, fmt.Errorf("%w: chromosome %q fragment %d", ErrUnsorted, c.Name, i)
			}
			if c.End[i] <= c.Start[i] {
				return nil, fmt.Errorf("%w: chromosome %q fragment %d", ErrInvalidInterval, c.Name, i)
			}
			if int(c.Cell[i]) >= len(cellNames) {
				return nil, fmt.Errorf("fragment: chromosome %q fragment %d: cell id %d out of range", c.Name, i, c.Cell[i])
			}
		}
		for cj := range ci {
			if chroms[cj].Name == c.Name {
				return nil, fmt.Errorf("%w: chromosome %q listed twice", ErrUnsorted, c.Name)
			}
		}
	}
	return &Mem{chroms: chroms, cellNames: cellNames, chr: -1}, nil
}

func (m *Mem) ChrCount() int  { return len(m.chroms) }
func (m *Mem) CellCount() int { return len(m.cellNames) }

func (m *Mem) ChrNames(id uint32) (string, bool) {
	if int(id) >= len(m.chroms) {
		return "", false
	}
	return m.chroms[id].Name, true
}

func (m *Mem) CellNames(id uint32) (string, bool) {
	if int(id) >= len(m.cellNames) {
		return "", false
	}
	return m.cellNames[id], true
}

func (m *Mem) NextChr() bool {
	if m.chr+1 >= len(m.chroms) {
		m.chr = len(m.chroms)
		return false
	}
	m.chr++
	m.pos = -1
	return true
}

func (m *Mem) CurrentChr() uint32 { return uint32(m.chr) }

func (m *Mem) NextFrag() bool {
	if m.chr < 0 || m.chr >= len(m.chroms) {
		return false
	}
	if m.pos+1 >= len(m.chroms[m.chr].Start) {
		return false
	}
	m.pos++
	return true
}

func (m *Mem) Start() uint32 { return m.chroms[m.chr].Start[m.pos] }
func (m *Mem) End() uint32   { return m.chroms[m.chr].End[m.pos] }
func (m *Mem) Cell() uint32  { return m.chroms[m.chr].Cell[m.pos] }

func (m *Mem) Restart() error {
	m.chr = -1
	return nil
}

func (m *Mem) Seekable() bool { return true }

// Seek skips every fragment of chr whose end is at or before base. Ends are
// not sorted, so the scan is linear; callers wanting block pruning use a
// fragstore.Loader instead.
func (m *Mem) Seek(chr, base uint32) error {
	if int(chr) >= len(m.chroms) {
		return fmt.Errorf("fragment: seek to unknown chromosome %d", chr)
	}
	m.chr = int(chr)
	c := m.chroms[chr]
	pos := 0
	for pos < len(c.Start) && c.End[pos] <= base {
		pos++
	}
	m.pos = pos - 1
	return nil
}

func (m *Mem) Err() error { return nil }
