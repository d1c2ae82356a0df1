package blobstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the per-blob compression codec of a CompressedStore.
type Compression uint8

const (
	// CompressionNone stores blobs verbatim (framed, but uncompressed).
	CompressionNone Compression = 0
	// CompressionLZ4 favors decode speed; a good default for local stores.
	CompressionLZ4 Compression = 1
	// CompressionZSTD favors ratio; a good default for remote backends.
	CompressionZSTD Compression = 2
)

// ErrUnknownCompression is returned when a blob frame declares a codec this
// build does not understand.
var ErrUnknownCompression = errors.New("blobstore: unknown compression codec")

// Frame layout: [codec:1][rawLen:4 LE][payload]. A codec byte of
// CompressionNone means payload == raw bytes; this is also used when
// compression would not shrink the blob.
const frameHeaderSize = 5

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// CompressedStore wraps a BlobStore and compresses each blob as a whole.
// Column arrays compress well even after bit packing, and remote round trips
// shrink accordingly. Blobs written by a CompressedStore must be read through
// one; the frame records the codec so mixed-codec stores read fine.
type CompressedStore struct {
	inner BlobStore
	codec Compression
}

// NewCompressedStore wraps inner with the given write codec.
func NewCompressedStore(inner BlobStore, codec Compression) *CompressedStore {
	return &CompressedStore{inner: inner, codec: codec}
}

// Open opens and decompresses a blob. The whole blob is decoded eagerly; the
// returned handle serves reads from memory.
func (s *CompressedStore) Open(ctx context.Context, name string) (Blob, error) {
	raw, err := ReadAll(ctx, s.inner, name)
	if err != nil {
		return nil, err
	}
	data, err := decodeFrame(raw)
	if err != nil {
		return nil, fmt.Errorf("blobstore: blob %q: %w", name, err)
	}
	return &memoryBlob{data: data}, nil
}

// Create buffers writes and compresses the blob when closed.
func (s *CompressedStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	return &compressedWritableBlob{store: s, ctx: ctx, name: name}, nil
}

// Put compresses and writes a complete blob atomically.
func (s *CompressedStore) Put(ctx context.Context, name string, data []byte) error {
	framed, err := encodeFrame(data, s.codec)
	if err != nil {
		return err
	}
	return s.inner.Put(ctx, name, framed)
}

// Delete removes a blob.
func (s *CompressedStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List returns all blob names with the given prefix.
func (s *CompressedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type compressedWritableBlob struct {
	store *CompressedStore
	ctx   context.Context
	name  string
	buf   bytes.Buffer
}

func (w *compressedWritableBlob) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *compressedWritableBlob) Sync() error { return nil }

func (w *compressedWritableBlob) Close() error {
	return w.store.Put(w.ctx, w.name, w.buf.Bytes())
}

func encodeFrame(data []byte, codec Compression) ([]byte, error) {
	var compressed []byte
	switch codec {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			compressed = buf[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, codec)
	}

	// Fall back to a verbatim frame when compression does not help.
	if compressed == nil || len(compressed) >= len(data) {
		codec = CompressionNone
		compressed = data
	}

	out := make([]byte, frameHeaderSize, frameHeaderSize+len(compressed))
	out[0] = byte(codec)
	binary.LittleEndian.PutUint32(out[1:5], uint32(len(data)))
	return append(out, compressed...), nil
}

func decodeFrame(raw []byte) ([]byte, error) {
	if len(raw) < frameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	codec := Compression(raw[0])
	rawLen := binary.LittleEndian.Uint32(raw[1:5])
	payload := raw[frameHeaderSize:]

	switch codec {
	case CompressionNone:
		if uint32(len(payload)) != rawLen {
			return nil, io.ErrUnexpectedEOF
		}
		return payload, nil
	case CompressionLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != rawLen {
			return nil, io.ErrUnexpectedEOF
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, rawLen))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		if uint32(len(out)) != rawLen {
			return nil, io.ErrUnexpectedEOF
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, codec)
	}
}
