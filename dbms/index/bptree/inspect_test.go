package bptree

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btree-query-bench/bptsim/dbms/disk"
)

func TestIntrospectionIsFree(t *testing.T) {
	tree := newSampleTree(t)
	before := tree.DiskMetrics()

	tree.Height()
	tree.LevelOrder()
	tree.Stats()
	require.NoError(t, tree.Check())
	require.NoError(t, tree.Fprint(&bytes.Buffer{}))
	require.NoError(t, tree.WriteDOT(&bytes.Buffer{}))

	assert.Equal(t, before, tree.DiskMetrics())
}

func TestStats(t *testing.T) {
	tree := newSampleTree(t)
	assert.Equal(t, Stats{
		Order:    21,
		Height:   2,
		Nodes:    3,
		Internal: 1,
		Leaves:   2,
		Entries:  50,
	}, tree.Stats())
}

func TestFprint(t *testing.T) {
	tree, err := NewWithOrder(1)
	require.NoError(t, err)
	for k := int64(1); k <= 3; k++ {
		tree.Insert(k, k*100)
	}

	var buf bytes.Buffer
	require.NoError(t, tree.Fprint(&buf))
	assert.Equal(t, "Tree Structure:\n<2>\n[1:100]  [2:200 3:300]\n", buf.String())
}

func TestWriteDOT(t *testing.T) {
	tree := newSampleTree(t)

	var buf bytes.Buffer
	require.NoError(t, tree.WriteDOT(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "digraph BPlusTree {"))
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, "BLOCK 1 (INTERNAL)")
	assert.Contains(t, out, "BLOCK 0 (LEAF)")
	assert.Contains(t, out, "BLOCK 2 (LEAF)")
	assert.Contains(t, out, "block1:f0 -> block0;")
	assert.Contains(t, out, "block1:f1 -> block2;")
	assert.Contains(t, out, "block0:next -> block2 [style=dashed")
}

func TestCheckDetectsBrokenChain(t *testing.T) {
	tree := newSampleTree(t)
	leftmost := tree.nodes.get(tree.nodes.get(tree.root).children[0])
	leftmost.next = nilNode

	assert.Error(t, tree.Check())
}

func TestCheckDetectsUnsortedLeaf(t *testing.T) {
	tree := newSampleTree(t)
	leaf := tree.nodes.get(tree.nodes.get(tree.root).children[0])
	leaf.entries[0], leaf.entries[1] = leaf.entries[1], leaf.entries[0]
	leaf.syncKeys()

	assert.Error(t, tree.Check())
}

func TestBufferedDeviceAbsorbsRepeatedReads(t *testing.T) {
	buf, err := disk.NewBuffered(disk.NewModel(), 64)
	require.NoError(t, err)
	defer buf.Close()

	tree, err := New(DefaultConfig, WithDevice(buf))
	require.NoError(t, err)
	for i := int64(1); i <= 50; i++ {
		tree.Insert(i*10, i*100)
	}

	tree.ResetDiskMetrics()
	for i := 0; i < 10; i++ {
		v, ok := tree.Search(280)
		require.True(t, ok)
		require.Equal(t, int64(2800), v)
	}

	m := tree.DiskMetrics()
	assert.Equal(t, int64(20), m.Hits+m.Transfers)
	assert.LessOrEqual(t, m.Transfers, int64(20))
}
