// Package bed reads and writes fragments as tab-separated text, the
// interchange format produced by common preprocessing pipelines: one line per
// fragment with chromosome, start, end and cell barcode columns, optionally
// gzip-compressed.
//
// Text sources stream; chromosome and cell tables are discovered as lines are
// read, so ChrCount and CellCount report -1 and seeking is unsupported.
// Materialize into a fragstore for random access.
package bed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/fragmat/fragmat/fragment"
)

// ErrMalformedRecord is returned for a line that does not parse as a
// fragment record.
var ErrMalformedRecord = errors.New("bed: malformed record")

// ParseError reports a failure at a specific input line.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bed: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type record struct {
	chrom      string
	start, end uint32
	cell       uint32
}

// Reader is a fragment.Source over a BED-style fragment file.
type Reader struct {
	path    string
	comment string

	f    *os.File
	gz   *gzip.Reader
	scan *bufio.Scanner
	line int

	chrNames  []string
	chrIDs    map[string]uint32
	cellNames []string
	cellIDs   map[string]uint32
	visited   map[string]bool

	pending    record
	hasPending bool
	cur        record
	curChr     int // -1 before the first chromosome
	lastStart  uint32
	eof        bool
	err        error
}

// ReaderOption customizes a Reader.
type ReaderOption func(*Reader)

// WithCommentPrefix skips leading lines starting with prefix (e.g. "#").
func WithCommentPrefix(prefix string) ReaderOption {
	return func(r *Reader) { r.comment = prefix }
}

// NewReader opens a fragment file. Files ending in .gz are decompressed
// transparently.
func NewReader(path string, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{
		path:    path,
		chrIDs:  make(map[string]uint32),
		cellIDs: make(map[string]uint32),
		curChr:  -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	r.visited = make(map[string]bool)
	return r, nil
}

func (r *Reader) open() error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	r.f = f
	var src io.Reader = f
	if strings.HasSuffix(r.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return err
		}
		r.gz = gz
		src = gz
	}
	r.scan = bufio.NewScanner(src)
	r.scan.Buffer(make([]byte, 0, 64<<10), 1<<20)
	r.line = 0
	r.skipComments()
	return nil
}

func (r *Reader) skipComments() {
	if r.comment == "" {
		return
	}
	for r.scan.Scan() {
		r.line++
		line := r.scan.Text()
		if !strings.HasPrefix(line, r.comment) {
			r.parseLine(line)
			return
		}
	}
	r.finishScan()
}

// readRecord fills r.pending with the next parsed record.
func (r *Reader) readRecord() {
	if r.hasPending || r.eof || r.err != nil {
		return
	}
	if !r.scan.Scan() {
		r.finishScan()
		return
	}
	r.line++
	r.parseLine(r.scan.Text())
}

func (r *Reader) finishScan() {
	if err := r.scan.Err(); err != nil {
		r.err = &ParseError{Line: r.line, Err: err}
		return
	}
	r.eof = true
}

func (r *Reader) parseLine(line string) {
	fields := strings.Split(line, "\t")
	if len(fields) < 4 {
		r.err = &ParseError{Line: r.line, Err: fmt.Errorf("%w: want at least 4 tab-separated fields, got %d", ErrMalformedRecord, len(fields))}
		return
	}
	start, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		r.err = &ParseError{Line: r.line, Err: fmt.Errorf("%w: bad start %q", ErrMalformedRecord, fields[1])}
		return
	}
	end, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		r.err = &ParseError{Line: r.line, Err: fmt.Errorf("%w: bad end %q", ErrMalformedRecord, fields[2])}
		return
	}
	if end <= start {
		r.err = &ParseError{Line: r.line, Err: fragment.ErrInvalidInterval}
		return
	}

	cell, ok := r.cellIDs[fields[3]]
	if !ok {
		cell = uint32(len(r.cellNames))
		r.cellIDs[fields[3]] = cell
		r.cellNames = append(r.cellNames, fields[3])
	}
	if _, ok := r.chrIDs[fields[0]]; !ok {
		r.chrIDs[fields[0]] = uint32(len(r.chrNames))
		r.chrNames = append(r.chrNames, fields[0])
	}

	r.pending = record{chrom: fields[0], start: uint32(start), end: uint32(end), cell: cell}
	r.hasPending = true
}

// ChrCount reports -1: chromosomes are discovered while streaming.
func (r *Reader) ChrCount() int { return -1 }

// CellCount reports -1: barcodes are discovered while streaming.
func (r *Reader) CellCount() int { return -1 }

// ChrNames resolves ids for chromosomes seen so far.
func (r *Reader) ChrNames(id uint32) (string, bool) {
	if int(id) >= len(r.chrNames) {
		return "", false
	}
	return r.chrNames[id], true
}

// CellNames resolves ids for barcodes seen so far.
func (r *Reader) CellNames(id uint32) (string, bool) {
	if int(id) >= len(r.cellNames) {
		return "", false
	}
	return r.cellNames[id], true
}

// NextChr advances to the next chromosome, discarding any unread fragments of
// the current one.
func (r *Reader) NextChr() bool {
	if r.err != nil {
		return false
	}
	// Drain pending records of the current chromosome.
	for {
		r.readRecord()
		if r.err != nil || r.eof {
			return false
		}
		if r.curChr < 0 || r.pending.chrom != r.chrNames[r.curChr] {
			break
		}
		r.hasPending = false
	}

	if r.visited[r.pending.chrom] {
		r.err = &ParseError{Line: r.line, Err: fmt.Errorf("%w: chromosome %q revisited", fragment.ErrUnsorted, r.pending.chrom)}
		return false
	}
	r.visited[r.pending.chrom] = true
	r.curChr = int(r.chrIDs[r.pending.chrom])
	r.lastStart = 0
	return true
}

func (r *Reader) CurrentChr() uint32 { return uint32(r.curChr) }

// NextFrag advances to the next fragment of the current chromosome.
func (r *Reader) NextFrag() bool {
	if r.err != nil || r.curChr < 0 {
		return false
	}
	r.readRecord()
	if r.err != nil || r.eof {
		return false
	}
	if r.pending.chrom != r.chrNames[r.curChr] {
		return false
	}
	if r.pending.start < r.lastStart {
		r.err = &ParseError{Line: r.line, Err: fmt.Errorf("%w: start %d after %d", fragment.ErrUnsorted, r.pending.start, r.lastStart)}
		return false
	}
	r.cur = r.pending
	r.hasPending = false
	r.lastStart = r.cur.start
	return true
}

func (r *Reader) Start() uint32 { return r.cur.start }
func (r *Reader) End() uint32   { return r.cur.end }
func (r *Reader) Cell() uint32  { return r.cur.cell }

// Restart reopens the file and rewinds the cursor. Chromosome and cell ids
// already discovered keep their values; first-appearance order is
// deterministic for a fixed file.
func (r *Reader) Restart() error {
	if err := r.closeFile(); err != nil {
		return err
	}
	r.hasPending = false
	r.eof = false
	r.err = nil
	r.curChr = -1
	r.visited = make(map[string]bool)
	return r.open()
}

func (r *Reader) Seekable() bool { return false }

func (r *Reader) Seek(chr, base uint32) error { return fragment.ErrNotSeekable }

func (r *Reader) Err() error { return r.err }

// Close releases the underlying file.
func (r *Reader) Close() error { return r.closeFile() }

func (r *Reader) closeFile() error {
	var err error
	if r.gz != nil {
		err = r.gz.Close()
		r.gz = nil
	}
	if r.f != nil {
		if cerr := r.f.Close(); err == nil {
			err = cerr
		}
		r.f = nil
	}
	return err
}
