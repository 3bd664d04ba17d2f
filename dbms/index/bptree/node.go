// Package bptree implements an in-memory B+ tree whose nodes each stand for
// one disk block, so every operation can be priced in simulated seeks and
// transfers.
//
// Node layout:
//
//	internal: keys k0..k(n-1), children c0..cn   (separators only)
//	leaf:     entries (key, value) sorted by (key, value), next leaf link
//
// Nodes live in an arena owned by the tree and refer to each other by arena
// index. A node's block id comes from a disk.Allocator when the node is
// created and never changes; it is only used for cost accounting.
//
// Splits are proactive: a full child is split before the descent enters it,
// so an insert is one downward pass. Leaves split with copy-up (the
// separator stays as the right sibling's first key), internal nodes with
// push-up (the median moves to the parent only).
package bptree

import (
	"cmp"
	"slices"

	"github.com/btree-query-bench/bptsim/dbms/disk"
)

// nodeID is an index into the node arena.
type nodeID int32

const nilNode nodeID = -1

// Entry is one key/value pair stored in a leaf.
type Entry struct {
	Key   int64
	Value int64
}

// compareEntries orders entries by key, then by value.
func compareEntries(a, b Entry) int {
	if c := cmp.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return cmp.Compare(a.Value, b.Value)
}

type node struct {
	leaf     bool
	keys     []int64
	children []nodeID // internal only
	entries  []Entry  // leaf only
	next     nodeID   // leaf only
	block    disk.BlockID
}

// syncKeys regenerates a leaf's keys from its entries.
func (n *node) syncKeys() {
	n.keys = n.keys[:0]
	for _, e := range n.entries {
		n.keys = append(n.keys, e.Key)
	}
}

// ─── Node store ───────────────────────────────────────────────────────────────

// store is the node arena. Nodes are only ever appended; the tree never
// frees one.
type store struct {
	nodes  []*node
	blocks *disk.Allocator
}

func newStore(blocks *disk.Allocator) *store {
	return &store{blocks: blocks}
}

// alloc creates a node with a fresh block id and returns its id.
func (s *store) alloc(leaf bool) (nodeID, *node) {
	n := &node{leaf: leaf, next: nilNode, block: s.blocks.Next()}
	s.nodes = append(s.nodes, n)
	return nodeID(len(s.nodes) - 1), n
}

func (s *store) get(id nodeID) *node {
	return s.nodes[id]
}

func (s *store) len() int {
	return len(s.nodes)
}

// upperBound returns the first index i with keys[i] > key, or len(keys).
func upperBound(keys []int64, key int64) int {
	i, found := slices.BinarySearch(keys, key)
	if !found {
		return i
	}
	// BinarySearch lands on some equal key; skip past the run.
	for i < len(keys) && keys[i] == key {
		i++
	}
	return i
}
