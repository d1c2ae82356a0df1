package blobstore

import (
	"container/list"
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// CachingStore wraps a BlobStore and adds block-level read caching. It is
// meant to sit in front of a remote backend so that repeated cursor passes
// over the same column arrays hit memory instead of the network.
type CachingStore struct {
	inner     BlobStore
	cache     *blockCache
	blockSize int64
	limiter   *rate.Limiter
}

// CachingOption customizes a CachingStore.
type CachingOption func(*CachingStore)

// WithBlockSize sets the cache block size in bytes (default 64 KiB).
func WithBlockSize(n int64) CachingOption {
	return func(s *CachingStore) {
		if n > 0 {
			s.blockSize = n
		}
	}
}

// WithCacheCapacity bounds the cache to roughly n bytes (default 256 MiB).
func WithCacheCapacity(n int64) CachingOption {
	return func(s *CachingStore) {
		if n > 0 {
			s.cache.capacity = n
		}
	}
}

// WithRateLimit throttles backend fetches to roughly bytesPerSec, guarding
// object stores against request throttling during bulk scans.
func WithRateLimit(bytesPerSec int) CachingOption {
	return func(s *CachingStore) {
		s.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
	}
}

// NewCachingStore wraps inner with a block cache.
func NewCachingStore(inner BlobStore, opts ...CachingOption) *CachingStore {
	s := &CachingStore{
		inner:     inner,
		cache:     newBlockCache(256 << 20),
		blockSize: 64 << 10,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens a blob whose reads go through the block cache.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachingBlob{store: s, inner: b, name: name}, nil
}

// Create passes through; writes are not cached (blobs are immutable, and a
// rewritten name invalidates its blocks).
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.cache.invalidate(name)
	return s.inner.Create(ctx, name)
}

// Put writes through and invalidates cached blocks for the name.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Delete removes a blob and its cached blocks.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List passes through to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type cachingBlob struct {
	store *CachingStore
	inner Blob
	name  string
}

func (b *cachingBlob) Close() error { return b.inner.Close() }

func (b *cachingBlob) Size() int64 { return b.inner.Size() }

func (b *cachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	size := b.inner.Size()
	if off < 0 || off >= size {
		return 0, io.EOF
	}

	bs := b.store.blockSize
	startBlock := off / bs
	endBlock := (off + int64(len(p)) - 1) / bs

	if err := b.fill(ctx, startBlock, endBlock); err != nil {
		return 0, err
	}

	total := 0
	for blk := startBlock; blk <= endBlock; blk++ {
		data, ok := b.store.cache.get(b.name, blk)
		if !ok {
			// Evicted between fill and read; fetch directly.
			var err error
			data, err = b.fetch(ctx, blk)
			if err != nil {
				return total, err
			}
		}

		blkStart := blk * bs
		from := max(off, blkStart) - blkStart
		if from >= int64(len(data)) {
			break
		}
		n := copy(p[total:], data[from:])
		total += n
	}
	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// fill fetches the missing blocks in [startBlock, endBlock], coalescing
// contiguous misses into single backend reads issued in parallel.
func (b *cachingBlob) fill(ctx context.Context, startBlock, endBlock int64) error {
	type run struct{ start, count int64 }
	var missing []run

	cur := run{start: -1}
	for blk := startBlock; blk <= endBlock; blk++ {
		if _, ok := b.store.cache.get(b.name, blk); ok {
			if cur.start != -1 {
				missing = append(missing, cur)
				cur = run{start: -1}
			}
			continue
		}
		if cur.start == -1 {
			cur = run{start: blk, count: 1}
		} else {
			cur.count++
		}
	}
	if cur.start != -1 {
		missing = append(missing, cur)
	}
	if len(missing) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, r := range missing {
		g.Go(func() error {
			bs := b.store.blockSize
			byteStart := r.start * bs
			byteLen := r.count * bs
			if byteStart >= b.inner.Size() {
				return nil
			}
			if byteStart+byteLen > b.inner.Size() {
				byteLen = b.inner.Size() - byteStart
			}

			if lim := b.store.limiter; lim != nil {
				if err := waitBytes(gctx, lim, int(byteLen)); err != nil {
					return err
				}
			}

			buf := make([]byte, byteLen)
			n, err := b.inner.ReadAt(gctx, buf, byteStart)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]

			for i := int64(0); i < r.count; i++ {
				lo := i * bs
				if lo >= int64(len(buf)) {
					break
				}
				hi := min(lo+bs, int64(len(buf)))
				block := make([]byte, hi-lo)
				copy(block, buf[lo:hi])
				b.store.cache.set(b.name, r.start+i, block)
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *cachingBlob) fetch(ctx context.Context, blk int64) ([]byte, error) {
	bs := b.store.blockSize
	off := blk * bs
	if off+bs > b.inner.Size() {
		bs = b.inner.Size() - off
	}
	buf := make([]byte, bs)
	n, err := b.inner.ReadAt(ctx, buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// waitBytes reserves n bytes from the limiter, splitting oversized requests
// the limiter would reject outright.
func waitBytes(ctx context.Context, lim *rate.Limiter, n int) error {
	burst := lim.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := lim.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

type cacheKey struct {
	name  string
	block int64
}

// blockCache is a size-bounded LRU of decoded blocks.
type blockCache struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	order    *list.List // front = most recent; values are cacheKey
	entries  map[cacheKey]*cacheEntry
}

type cacheEntry struct {
	data []byte
	elem *list.Element
}

func newBlockCache(capacity int64) *blockCache {
	return &blockCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[cacheKey]*cacheEntry),
	}
}

func (c *blockCache) get(name string, block int64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey{name, block}]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(e.elem)
	return e.data, true
}

func (c *blockCache) set(name string, block int64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{name, block}
	if e, ok := c.entries[key]; ok {
		c.used += int64(len(data)) - int64(len(e.data))
		e.data = data
		c.order.MoveToFront(e.elem)
	} else {
		c.entries[key] = &cacheEntry{data: data, elem: c.order.PushFront(key)}
		c.used += int64(len(data))
	}

	for c.used > c.capacity && c.order.Len() > 1 {
		back := c.order.Back()
		k := back.Value.(cacheKey)
		c.used -= int64(len(c.entries[k].data))
		delete(c.entries, k)
		c.order.Remove(back)
	}
}

func (c *blockCache) invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if k.name == name {
			c.used -= int64(len(e.data))
			c.order.Remove(e.elem)
			delete(c.entries, k)
		}
	}
}
