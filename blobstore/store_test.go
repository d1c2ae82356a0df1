package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// storeFactory builds a fresh store for the shared conformance tests.
type storeFactory func(t *testing.T) BlobStore

func testStoreConformance(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("put open roundtrip", func(t *testing.T) {
		store := newStore(t)
		data := []byte("hello column data")

		require.NoError(t, store.Put(ctx, "col", data))

		got, err := ReadAll(ctx, store, "col")
		require.NoError(t, err)
		require.Equal(t, data, got)
	})

	t.Run("open missing", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Open(ctx, "nope")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create streams then becomes visible", func(t *testing.T) {
		store := newStore(t)

		w, err := store.Create(ctx, "streamed")
		require.NoError(t, err)
		_, err = w.Write([]byte("part1 "))
		require.NoError(t, err)
		_, err = w.Write([]byte("part2"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		got, err := ReadAll(ctx, store, "streamed")
		require.NoError(t, err)
		require.Equal(t, []byte("part1 part2"), got)
	})

	t.Run("read at offset", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "x", []byte("0123456789")))

		b, err := store.Open(ctx, "x")
		require.NoError(t, err)
		defer b.Close()

		require.Equal(t, int64(10), b.Size())

		buf := make([]byte, 4)
		n, err := b.ReadAt(ctx, buf, 3)
		require.NoError(t, err)
		require.Equal(t, 4, n)
		require.Equal(t, []byte("3456"), buf)

		// Short read at the tail.
		n, err = b.ReadAt(ctx, buf, 8)
		require.ErrorIs(t, err, io.EOF)
		require.Equal(t, 2, n)
		require.Equal(t, []byte("89"), buf[:n])
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "gone", []byte("x")))
		require.NoError(t, store.Delete(ctx, "gone"))

		_, err := store.Open(ctx, "gone")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list by prefix", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "frag_start", []byte("a")))
		require.NoError(t, store.Put(ctx, "frag_end", []byte("b")))
		require.NoError(t, store.Put(ctx, "other", []byte("c")))

		names, err := store.List(ctx, "frag_")
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"frag_start", "frag_end"}, names)
	})

	t.Run("overwrite", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "v", []byte("old")))
		require.NoError(t, store.Put(ctx, "v", []byte("newer")))

		got, err := ReadAll(ctx, store, "v")
		require.NoError(t, err)
		require.Equal(t, []byte("newer"), got)
	})

	t.Run("empty blob", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "empty", nil))

		got, err := ReadAll(ctx, store, "empty")
		require.NoError(t, err)
		require.Empty(t, got)
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreConformance(t, func(t *testing.T) BlobStore {
		return NewMemoryStore()
	})
}

func TestLocalStore(t *testing.T) {
	testStoreConformance(t, func(t *testing.T) BlobStore {
		store, err := NewLocalStore(t.TempDir())
		require.NoError(t, err)
		return store
	})
}

func TestCompressedStore(t *testing.T) {
	for _, codec := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		testStoreConformance(t, func(t *testing.T) BlobStore {
			return NewCompressedStore(NewMemoryStore(), codec)
		})
	}
}

func TestCachingStore(t *testing.T) {
	testStoreConformance(t, func(t *testing.T) BlobStore {
		return NewCachingStore(NewMemoryStore(), WithBlockSize(4))
	})
}

func TestMemoryStoreOpenIsStable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "k", []byte("first")))
	b, err := store.Open(ctx, "k")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, store.Put(ctx, "k", []byte("second")))

	buf := make([]byte, 5)
	_, err = b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("first"), buf)
}

func TestLocalStoreMappable(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	data := bytes.Repeat([]byte("abcd"), 1024)
	require.NoError(t, store.Put(ctx, "mapped", data))

	b, err := store.Open(ctx, "mapped")
	require.NoError(t, err)
	defer b.Close()

	m, ok := b.(Mappable)
	require.True(t, ok)
	require.Equal(t, data, m.Bytes())
}

func TestCompressedStoreShrinksRepetitiveData(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	store := NewCompressedStore(inner, CompressionZSTD)

	data := bytes.Repeat([]byte("aaaabbbb"), 4096)
	require.NoError(t, store.Put(ctx, "big", data))

	raw, err := ReadAll(ctx, inner, "big")
	require.NoError(t, err)
	require.Less(t, len(raw), len(data))

	got, err := ReadAll(ctx, store, "big")
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCompressedStoreIncompressibleFallsBack(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	store := NewCompressedStore(inner, CompressionLZ4)

	// Too short for LZ4 to shrink; must round-trip via a verbatim frame.
	data := []byte{0x01, 0x7f, 0xe3, 0x22}
	require.NoError(t, store.Put(ctx, "tiny", data))

	raw, err := ReadAll(ctx, inner, "tiny")
	require.NoError(t, err)
	require.Equal(t, byte(CompressionNone), raw[0])

	got, err := ReadAll(ctx, store, "tiny")
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCompressedStoreCorruptFrame(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	store := NewCompressedStore(inner, CompressionNone)

	require.NoError(t, inner.Put(ctx, "bad", []byte{0xAB, 0, 0, 0, 0}))
	_, err := store.Open(ctx, "bad")
	require.ErrorIs(t, err, ErrUnknownCompression)

	require.NoError(t, inner.Put(ctx, "short", []byte{0}))
	_, err = store.Open(ctx, "short")
	require.Error(t, err)
}

// countingStore counts ReadAt calls reaching the backend.
type countingStore struct {
	BlobStore
	reads atomic.Int64
}

func (s *countingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.BlobStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &countingBlob{Blob: b, store: s}, nil
}

type countingBlob struct {
	Blob
	store *countingStore
}

func (b *countingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	b.store.reads.Add(1)
	return b.Blob.ReadAt(ctx, p, off)
}

func TestCachingStoreServesRepeatsFromCache(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{BlobStore: NewMemoryStore()}
	require.NoError(t, backend.Put(ctx, "col", bytes.Repeat([]byte("x"), 1024)))

	store := NewCachingStore(backend, WithBlockSize(256))
	b, err := store.Open(ctx, "col")
	require.NoError(t, err)
	defer b.Close()

	buf := make([]byte, 512)
	_, err = b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	first := backend.reads.Load()
	require.Positive(t, first)

	// Same range again: no new backend reads.
	_, err = b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, first, backend.reads.Load())
}

func TestCachingStoreEvicts(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	require.NoError(t, backend.Put(ctx, "col", bytes.Repeat([]byte("y"), 4096)))

	store := NewCachingStore(backend, WithBlockSize(64), WithCacheCapacity(128))
	b, err := store.Open(ctx, "col")
	require.NoError(t, err)
	defer b.Close()

	// Sweeping the whole blob repeatedly must stay correct under eviction.
	for range 3 {
		got := make([]byte, 4096)
		n, err := b.ReadAt(ctx, got, 0)
		require.NoError(t, err)
		require.Equal(t, 4096, n)
		require.Equal(t, bytes.Repeat([]byte("y"), 4096), got)
	}
}

func TestCachingStorePutInvalidates(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	store := NewCachingStore(backend, WithBlockSize(8))

	require.NoError(t, store.Put(ctx, "k", []byte("11111111")))
	b, err := store.Open(ctx, "k")
	require.NoError(t, err)
	buf := make([]byte, 8)
	_, err = b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	require.NoError(t, store.Put(ctx, "k", []byte("22222222")))
	got, err := ReadAll(ctx, store, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("22222222"), got)
}

func TestCachingStoreRateLimited(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	require.NoError(t, backend.Put(ctx, "k", bytes.Repeat([]byte("z"), 256)))

	// A generous limit must not change results.
	store := NewCachingStore(backend, WithBlockSize(32), WithRateLimit(1<<20))
	got, err := ReadAll(ctx, store, "k")
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte("z"), 256), got)
}
