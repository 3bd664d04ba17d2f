package bptree

import (
	"log/slog"
	"slices"

	"github.com/btree-query-bench/bptsim/dbms/disk"
	"github.com/btree-query-bench/bptsim/dbms/index"
)

var _ index.Index = (*Tree)(nil)

// Tree is a B+ tree of int64 keys and values. A node holds at most 2·order
// keys. Trees are not safe for concurrent use.
type Tree struct {
	order int
	root  nodeID
	nodes *store
	dev   disk.Device
	log   *slog.Logger
	count int
}

// New builds an empty tree whose order is derived from cfg.
func New(cfg Config, opts ...Option) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := newTree(Order(cfg), opts)
	t.log.Debug("calculated order",
		slog.Int("order", t.order),
		slog.Int("block_size", cfg.BlockSize),
		slog.Int("key_size", cfg.KeySize),
		slog.Int("pointer_size", cfg.PointerSize))
	return t, nil
}

// NewWithOrder builds an empty tree with an explicit order.
func NewWithOrder(order int, opts ...Option) (*Tree, error) {
	if order < 1 {
		return nil, ErrDegenerateOrder
	}
	return newTree(order, opts), nil
}

func newTree(order int, opts []Option) *Tree {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	t := &Tree{
		order: order,
		nodes: newStore(o.blocks),
		dev:   o.device,
		log:   o.logger,
	}
	t.root, _ = t.nodes.alloc(true)
	return t
}

// Order returns the tree order.
func (t *Tree) Order() int { return t.order }

// Len returns the number of entries stored.
func (t *Tree) Len() int { return t.count }

func (t *Tree) full(n *node) bool {
	return len(n.keys) == 2*t.order
}

// ─── Insert ───────────────────────────────────────────────────────────────────

// Insert adds (key, value). Duplicate keys are kept, ordered by value.
func (t *Tree) Insert(key, value int64) {
	if root := t.nodes.get(t.root); t.full(root) {
		// The only place the tree grows in height.
		id, newRoot := t.nodes.alloc(false)
		newRoot.children = []nodeID{t.root}
		t.splitChild(newRoot, 0, t.root)
		t.root = id
		t.log.Debug("root split",
			slog.Int64("block", int64(newRoot.block)),
			slog.Int("height", t.Height()))
	}
	t.insertNonFull(t.root, key, value)
	t.count++
}

func (t *Tree) insertNonFull(id nodeID, key, value int64) {
	for {
		n := t.nodes.get(id)
		t.dev.Access(n.block)

		if n.leaf {
			e := Entry{Key: key, Value: value}
			pos, _ := slices.BinarySearchFunc(n.entries, e, compareEntries)
			n.entries = slices.Insert(n.entries, pos, e)
			n.syncKeys()
			return
		}

		i := upperBound(n.keys, key)
		if child := n.children[i]; t.full(t.nodes.get(child)) {
			t.splitChild(n, i, child)
			if n.keys[i] <= key {
				i++
			}
		}
		id = n.children[i]
	}
}

// splitChild splits the full child at parent.children[i]. The child keeps
// the lower half and a new right sibling takes the upper half.
func (t *Tree) splitChild(parent *node, i int, childID nodeID) {
	child := t.nodes.get(childID)
	t.dev.Access(child.block)

	sibID, sib := t.nodes.alloc(child.leaf)
	mid := t.order

	var sep int64
	if child.leaf {
		sib.entries = slices.Clone(child.entries[mid:])
		child.entries = slices.Clip(child.entries[:mid])
		child.syncKeys()
		sib.syncKeys()

		sib.next = child.next
		child.next = sibID

		// Copy-up: the separator stays in the sibling.
		sep = sib.entries[0].Key
	} else {
		// Push-up: the median leaves both halves.
		sep = child.keys[mid]
		sib.keys = slices.Clone(child.keys[mid+1:])
		sib.children = slices.Clone(child.children[mid+1:])
		child.keys = slices.Clip(child.keys[:mid])
		child.children = slices.Clip(child.children[:mid+1])
	}

	parent.keys = slices.Insert(parent.keys, i, sep)
	parent.children = slices.Insert(parent.children, i+1, sibID)
}

// ─── Search ───────────────────────────────────────────────────────────────────

// findLeaf descends by upper bound, charging every internal node on the way.
// The returned leaf is not charged.
func (t *Tree) findLeaf(key int64) *node {
	n := t.nodes.get(t.root)
	for !n.leaf {
		t.dev.Access(n.block)
		n = t.nodes.get(n.children[upperBound(n.keys, key)])
	}
	return n
}

// leftmostLeaf follows child 0 from the root, charging every internal node.
func (t *Tree) leftmostLeaf() *node {
	n := t.nodes.get(t.root)
	for !n.leaf {
		t.dev.Access(n.block)
		n = t.nodes.get(n.children[0])
	}
	return n
}

// Search returns the value of the first entry with the given key in the
// leaf the key routes to.
func (t *Tree) Search(key int64) (int64, bool) {
	leaf := t.findLeaf(key)
	t.dev.Access(leaf.block)
	for _, e := range leaf.entries {
		if e.Key == key {
			return e.Value, true
		}
		if e.Key > key {
			break
		}
	}
	return 0, false
}

// SearchLessThan returns the values of all entries with key < threshold in
// ascending key order. The scan starts at the leftmost leaf and stops at the
// first key ≥ threshold without touching later leaves.
func (t *Tree) SearchLessThan(threshold int64) []int64 {
	vals := []int64{}
	for n := t.leftmostLeaf(); ; {
		t.dev.Access(n.block)
		for _, e := range n.entries {
			if e.Key >= threshold {
				return vals
			}
			vals = append(vals, e.Value)
		}
		if n.next == nilNode {
			return vals
		}
		n = t.nodes.get(n.next)
	}
}

// SearchGreaterThan returns the values of all entries with key > threshold
// in ascending key order. The scan starts at the leaf threshold routes to
// and reads every leaf to the end of the chain.
func (t *Tree) SearchGreaterThan(threshold int64) []int64 {
	vals := []int64{}
	for n := t.findLeaf(threshold); ; {
		t.dev.Access(n.block)
		for _, e := range n.entries {
			if e.Key > threshold {
				vals = append(vals, e.Value)
			}
		}
		if n.next == nilNode {
			return vals
		}
		n = t.nodes.get(n.next)
	}
}

// ─── Range iterator ───────────────────────────────────────────────────────────

// Range returns an iterator over entries with start ≤ key ≤ end. The descent
// is charged now; each leaf is charged when the iterator first reads it.
func (t *Tree) Range(start, end int64) index.Iterator {
	it := &RangeIterator{tree: t, start: start, end: end}
	if start > end {
		return it
	}
	// Routing on start-1 lands on the leftmost leaf that may hold start even
	// when start equals a separator with duplicates to its left.
	from := start
	if start > minKey {
		from = start - 1
	}
	it.curr = t.findLeaf(from)
	return it
}

const minKey = -1 << 63

// RangeIterator walks the leaf chain for Range.
type RangeIterator struct {
	tree       *Tree
	curr       *node
	charged    bool
	i          int
	start, end int64
	key, val   int64
}

func (it *RangeIterator) Next() bool {
	for it.curr != nil {
		if !it.charged {
			it.tree.dev.Access(it.curr.block)
			it.charged = true
		}
		for it.i < len(it.curr.entries) {
			e := it.curr.entries[it.i]
			it.i++
			if e.Key > it.end {
				it.curr = nil
				return false
			}
			if e.Key >= it.start {
				it.key, it.val = e.Key, e.Value
				return true
			}
		}
		// Follow the leaf chain
		if it.curr.next == nilNode {
			it.curr = nil
			return false
		}
		it.curr = it.tree.nodes.get(it.curr.next)
		it.charged = false
		it.i = 0
	}
	return false
}

func (it *RangeIterator) Key() int64   { return it.key }
func (it *RangeIterator) Value() int64 { return it.val }
func (it *RangeIterator) Close() error { it.curr = nil; return nil }

// ─── Disk metrics ─────────────────────────────────────────────────────────────

// ResetDiskMetrics resets the tree's device.
func (t *Tree) ResetDiskMetrics() { t.dev.Reset() }

// DiskMetrics returns the tree's device counters.
func (t *Tree) DiskMetrics() disk.Metrics { return t.dev.Metrics() }

// Device returns the device the tree charges.
func (t *Tree) Device() disk.Device { return t.dev }
