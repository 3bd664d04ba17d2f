// Package disk models the block I/O cost of index operations.
//
// Nothing is read or written. Every time an index touches a node it reports
// the node's block to a Device, which counts one transfer per access and a
// seek whenever the access breaks sequential locality:
//
//	seek  := no current block || (id != current && id != current+1)
//	current = id
//
// Re-reading the current block or reading its immediate successor is
// therefore seek-free, which is how the model rewards leaf-chain scans over
// blocks that were allocated next to each other.
package disk

import "sync/atomic"

// BlockID identifies one simulated disk block.
type BlockID int64

// Metrics is a snapshot of the counters of a Device.
type Metrics struct {
	Seeks     int64
	Transfers int64
	Hits      int64 // buffer pool hits, only reported by Buffered
}

// Sub returns the counter delta m - o.
func (m Metrics) Sub(o Metrics) Metrics {
	return Metrics{
		Seeks:     m.Seeks - o.Seeks,
		Transfers: m.Transfers - o.Transfers,
		Hits:      m.Hits - o.Hits,
	}
}

// Device is anything that can be charged for block accesses.
type Device interface {
	Access(id BlockID)
	Reset()
	Metrics() Metrics
}

var _ Device = (*Model)(nil)

// Model is the plain seek/transfer cost model.
//
// A Model is driven by a single goroutine. The counters are atomic only so
// that a metrics scrape can read them while the owner keeps running.
type Model struct {
	seeks     atomic.Int64
	transfers atomic.Int64

	current    BlockID
	hasCurrent bool
}

// NewModel returns a Model with zeroed counters and no current block.
func NewModel() *Model {
	return &Model{}
}

// Access charges one transfer for id, plus a seek if id is neither the
// current block nor the one right after it.
func (m *Model) Access(id BlockID) {
	m.transfers.Add(1)
	if !m.hasCurrent || (id != m.current && id != m.current+1) {
		m.seeks.Add(1)
	}
	m.current = id
	m.hasCurrent = true
}

// Reset zeroes both counters and forgets the current block, so the next
// access always pays a seek.
func (m *Model) Reset() {
	m.seeks.Store(0)
	m.transfers.Store(0)
	m.current = 0
	m.hasCurrent = false
}

// Metrics returns the counters without modifying them.
func (m *Model) Metrics() Metrics {
	return Metrics{
		Seeks:     m.seeks.Load(),
		Transfers: m.transfers.Load(),
	}
}

// ─── Block allocation ─────────────────────────────────────────────────────────

// Allocator hands out block ids in increasing order, starting at 0.
// Several trees may share one Allocator to live on the same simulated disk.
type Allocator struct {
	next BlockID
}

// Next reserves and returns the next block id.
func (a *Allocator) Next() BlockID {
	id := a.next
	a.next++
	return id
}

// Allocated returns the number of blocks handed out so far.
func (a *Allocator) Allocated() int64 {
	return int64(a.next)
}
