// Package mmap provides read-only memory mapping of files, with a plain-read
// fallback on platforms without mmap support.
package mmap

import "os"

// Mapping is a read-only view of a file's contents.
// It owns the underlying byte slice and is responsible for releasing it.
type Mapping struct {
	data   []byte
	unmap  func([]byte) error
	closed bool
}

// Open maps the file at path into memory as read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}

	data, unmap, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// Bytes returns the mapped contents. The slice is valid only until Close and
// must not be modified.
func (m *Mapping) Bytes() []byte {
	if m.closed {
		return nil
	}
	return m.data
}

// Close releases the mapping. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if m.unmap != nil && m.data != nil {
		err := m.unmap(m.data)
		m.data = nil
		return err
	}
	m.data = nil
	return nil
}
