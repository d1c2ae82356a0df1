//go:build !unix

package mmap

import (
	"io"
	"os"
)

// Fallback: read the whole file. Callers see the same Mapping semantics,
// just without the page-cache sharing.
func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, nil, err
	}
	return data, nil, nil
}
