package bed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/fragmat/fragmat/fragment"
)

// Writer emits fragments as tab-separated text. Files ending in .gz are
// compressed transparently.
type Writer struct {
	f        *os.File
	gz       *gzip.Writer
	buf      *bufio.Writer
	scoreCol bool
}

// WriterOption customizes a Writer.
type WriterOption func(*Writer)

// WithScoreColumn appends a constant fifth column of "0", matching tools
// that expect the five-column fragment layout.
func WithScoreColumn() WriterOption {
	return func(w *Writer) { w.scoreCol = true }
}

// NewWriter creates a fragment file at path.
func NewWriter(path string, opts ...WriterOption) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f}
	for _, opt := range opts {
		opt(w)
	}
	var sink io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		w.gz = gzip.NewWriter(f)
		sink = w.gz
	}
	w.buf = bufio.NewWriterSize(sink, 64<<10)
	return w, nil
}

// WriteAll drains src into the file. Chromosome and cell ids are resolved to
// names through the source's tables.
func (w *Writer) WriteAll(ctx context.Context, src fragment.Source) error {
	written := 0
	for src.NextChr() {
		chrom, ok := src.ChrNames(src.CurrentChr())
		if !ok {
			return fmt.Errorf("bed: no name for chromosome %d", src.CurrentChr())
		}
		for src.NextFrag() {
			cell, ok := src.CellNames(src.Cell())
			if !ok {
				return fmt.Errorf("bed: no name for cell %d", src.Cell())
			}
			var err error
			if w.scoreCol {
				_, err = fmt.Fprintf(w.buf, "%s\t%d\t%d\t%s\t0\n", chrom, src.Start(), src.End(), cell)
			} else {
				_, err = fmt.Fprintf(w.buf, "%s\t%d\t%d\t%s\n", chrom, src.Start(), src.End(), cell)
			}
			if err != nil {
				return err
			}
			written++
			if written%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
	}
	return src.Err()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	err := w.buf.Flush()
	if w.gz != nil {
		if cerr := w.gz.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}
