// Package arrays stores typed arrays as named blobs. Each blob carries a
// small header with a magic number and an element type tag, followed by the
// little-endian payload and a CRC32 checksum, so stores written on one
// machine read safely on another.
package arrays

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/fragmat/fragmat/blobstore"
)

var (
	// ErrCorrupted is returned when an array blob fails structural or
	// checksum validation.
	ErrCorrupted = errors.New("arrays: corrupted array blob")

	// ErrUnsupportedEncoding is returned when a blob declares an element
	// type this build does not understand, or the caller asked for the
	// wrong one.
	ErrUnsupportedEncoding = errors.New("arrays: unsupported array encoding")

	// ErrVersionMismatch is returned by RequireVersion when the stored
	// format tag differs from the expected one.
	ErrVersionMismatch = errors.New("arrays: format version mismatch")
)

const arrayMagic uint32 = 0x31414746 // "FGA1" little-endian

type dtype uint32

const (
	dtypeUint32  dtype = 1
	dtypeFloat64 dtype = 2
	dtypeString  dtype = 3
	dtypeBytes   dtype = 4
)

// header: [magic u32][dtype u32][count u64], all little-endian.
const headerSize = 16

// VersionBlob is the reserved blob name holding a store's format tag.
const VersionBlob = "version"

// Writer writes typed arrays into a blob store.
type Writer struct {
	store blobstore.BlobStore
}

// NewWriter creates a Writer over store.
func NewWriter(store blobstore.BlobStore) *Writer {
	return &Writer{store: store}
}

// PutUints writes a uint32 array blob.
func (w *Writer) PutUints(ctx context.Context, name string, vals []uint32) error {
	payload := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(payload[4*i:], v)
	}
	return w.put(ctx, name, dtypeUint32, uint64(len(vals)), payload)
}

// PutFloats writes a float64 array blob.
func (w *Writer) PutFloats(ctx context.Context, name string, vals []float64) error {
	payload := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(payload[8*i:], math.Float64bits(v))
	}
	return w.put(ctx, name, dtypeFloat64, uint64(len(vals)), payload)
}

// PutStrings writes a string array blob. Each element is length-prefixed.
func (w *Writer) PutStrings(ctx context.Context, name string, vals []string) error {
	size := 0
	for _, s := range vals {
		size += 4 + len(s)
	}
	payload := make([]byte, 0, size)
	var lenBuf [4]byte
	for _, s := range vals {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
		payload = append(payload, lenBuf[:]...)
		payload = append(payload, s...)
	}
	return w.put(ctx, name, dtypeString, uint64(len(vals)), payload)
}

// PutBytes writes a raw byte array blob.
func (w *Writer) PutBytes(ctx context.Context, name string, data []byte) error {
	return w.put(ctx, name, dtypeBytes, uint64(len(data)), data)
}

// PutVersion writes the store's format tag.
func (w *Writer) PutVersion(ctx context.Context, version string) error {
	return w.PutStrings(ctx, VersionBlob, []string{version})
}

func (w *Writer) put(ctx context.Context, name string, dt dtype, count uint64, payload []byte) error {
	buf := make([]byte, headerSize, headerSize+len(payload)+4)
	binary.LittleEndian.PutUint32(buf[0:4], arrayMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(dt))
	binary.LittleEndian.PutUint64(buf[8:16], count)
	buf = append(buf, payload...)

	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc32.ChecksumIEEE(payload))
	buf = append(buf, crcBuf[:]...)

	return w.store.Put(ctx, name, buf)
}

// Reader reads typed arrays from a blob store.
type Reader struct {
	store blobstore.BlobStore
}

// NewReader creates a Reader over store.
func NewReader(store blobstore.BlobStore) *Reader {
	return &Reader{store: store}
}

// Has reports whether the named array exists.
func (r *Reader) Has(ctx context.Context, name string) (bool, error) {
	b, err := r.store.Open(ctx, name)
	if errors.Is(err, blobstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, b.Close()
}

// Uints reads a uint32 array blob.
func (r *Reader) Uints(ctx context.Context, name string) ([]uint32, error) {
	count, payload, err := r.load(ctx, name, dtypeUint32)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) != 4*count {
		return nil, fmt.Errorf("%w: %q payload size", ErrCorrupted, name)
	}
	vals := make([]uint32, count)
	for i := range vals {
		vals[i] = binary.LittleEndian.Uint32(payload[4*i:])
	}
	return vals, nil
}

// Floats reads a float64 array blob.
func (r *Reader) Floats(ctx context.Context, name string) ([]float64, error) {
	count, payload, err := r.load(ctx, name, dtypeFloat64)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) != 8*count {
		return nil, fmt.Errorf("%w: %q payload size", ErrCorrupted, name)
	}
	vals := make([]float64, count)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[8*i:]))
	}
	return vals, nil
}

// Strings reads a string array blob.
func (r *Reader) Strings(ctx context.Context, name string) ([]string, error) {
	count, payload, err := r.load(ctx, name, dtypeString)
	if err != nil {
		return nil, err
	}
	vals := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(payload) < 4 {
			return nil, fmt.Errorf("%w: %q truncated string table", ErrCorrupted, name)
		}
		n := binary.LittleEndian.Uint32(payload)
		payload = payload[4:]
		if uint64(len(payload)) < uint64(n) {
			return nil, fmt.Errorf("%w: %q truncated string table", ErrCorrupted, name)
		}
		vals = append(vals, string(payload[:n]))
		payload = payload[n:]
	}
	if len(payload) != 0 {
		return nil, fmt.Errorf("%w: %q trailing string table bytes", ErrCorrupted, name)
	}
	return vals, nil
}

// Bytes reads a raw byte array blob.
func (r *Reader) Bytes(ctx context.Context, name string) ([]byte, error) {
	count, payload, err := r.load(ctx, name, dtypeBytes)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) != count {
		return nil, fmt.Errorf("%w: %q payload size", ErrCorrupted, name)
	}
	return payload, nil
}

// Version reads the store's format tag.
func (r *Reader) Version(ctx context.Context) (string, error) {
	vals, err := r.Strings(ctx, VersionBlob)
	if err != nil {
		return "", err
	}
	if len(vals) != 1 {
		return "", fmt.Errorf("%w: version blob holds %d entries", ErrCorrupted, len(vals))
	}
	return vals[0], nil
}

// RequireVersion reads the store's format tag and checks it against want.
func (r *Reader) RequireVersion(ctx context.Context, want string) error {
	got, err := r.Version(ctx)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: got %q, want %q", ErrVersionMismatch, got, want)
	}
	return nil
}

// load opens an array blob, validates the frame and returns the raw payload.
func (r *Reader) load(ctx context.Context, name string, want dtype) (uint64, []byte, error) {
	b, err := r.store.Open(ctx, name)
	if err != nil {
		return 0, nil, err
	}
	defer b.Close()

	var raw []byte
	if m, ok := b.(blobstore.Mappable); ok {
		raw = m.Bytes()
	} else {
		raw = make([]byte, b.Size())
		n, err := b.ReadAt(ctx, raw, 0)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, nil, err
		}
		raw = raw[:n]
	}

	if len(raw) < headerSize+4 {
		return 0, nil, fmt.Errorf("%w: %q too small", ErrCorrupted, name)
	}
	if binary.LittleEndian.Uint32(raw[0:4]) != arrayMagic {
		return 0, nil, fmt.Errorf("%w: %q bad magic", ErrCorrupted, name)
	}
	dt := dtype(binary.LittleEndian.Uint32(raw[4:8]))
	switch dt {
	case dtypeUint32, dtypeFloat64, dtypeString, dtypeBytes:
	default:
		return 0, nil, fmt.Errorf("%w: %q dtype %d", ErrUnsupportedEncoding, name, dt)
	}
	if dt != want {
		return 0, nil, fmt.Errorf("%w: %q holds dtype %d", ErrUnsupportedEncoding, name, dt)
	}
	count := binary.LittleEndian.Uint64(raw[8:16])

	payload := raw[headerSize : len(raw)-4]
	sum := binary.LittleEndian.Uint32(raw[len(raw)-4:])
	if crc32.ChecksumIEEE(payload) != sum {
		return 0, nil, fmt.Errorf("%w: %q checksum", ErrCorrupted, name)
	}

	// The payload may alias a memory mapping that dies with the blob
	// handle; copy before returning.
	out := make([]byte, len(payload))
	copy(out, payload)
	return count, out, nil
}
