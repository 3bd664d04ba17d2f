package disk

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/ristretto/v2"
)

var _ Device = (*Buffered)(nil)

// Buffered puts a buffer pool in front of another Device. Blocks found in
// the pool are hits and cost nothing; misses are charged to the wrapped
// device and the block is offered to the pool.
//
// The pool is a ristretto cache, so admission is decided by its TinyLFU
// policy: a missed block is not guaranteed to be resident afterwards.
type Buffered struct {
	dev   Device
	pool  *ristretto.Cache[int64, struct{}]
	pages int64
	hits  atomic.Int64
}

// NewBuffered wraps dev with a pool holding up to pages blocks.
func NewBuffered(dev Device, pages int) (*Buffered, error) {
	if pages <= 0 {
		return nil, errors.Newf("disk: buffer pool needs at least one page, got %d", pages)
	}
	pool, err := newPool(int64(pages))
	if err != nil {
		return nil, err
	}
	return &Buffered{dev: dev, pool: pool, pages: int64(pages)}, nil
}

func newPool(pages int64) (*ristretto.Cache[int64, struct{}], error) {
	pool, err := ristretto.NewCache(&ristretto.Config[int64, struct{}]{
		NumCounters:        pages * 10,
		MaxCost:            pages,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "disk: create buffer pool")
	}
	return pool, nil
}

// Access charges id to the wrapped device unless the block is pooled.
func (b *Buffered) Access(id BlockID) {
	if _, ok := b.pool.Get(int64(id)); ok {
		b.hits.Add(1)
		return
	}
	b.dev.Access(id)
	b.pool.Set(int64(id), struct{}{}, 1)
	// Make the admission visible to the next Access.
	b.pool.Wait()
}

// Reset empties the pool and resets the wrapped device.
func (b *Buffered) Reset() {
	b.pool.Clear()
	b.hits.Store(0)
	b.dev.Reset()
}

// Metrics reports the wrapped device's counters together with the hits.
func (b *Buffered) Metrics() Metrics {
	m := b.dev.Metrics()
	m.Hits += b.hits.Load()
	return m
}

// Pages returns the pool capacity in blocks.
func (b *Buffered) Pages() int64 {
	return b.pages
}

// Close releases the pool. The Buffered must not be used afterwards.
func (b *Buffered) Close() {
	b.pool.Close()
}
