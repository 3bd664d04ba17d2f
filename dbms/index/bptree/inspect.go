package bptree

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// Nothing in this file charges the device: introspection is a debugging
// aid, not a modelled cost.

// Height returns the number of levels, counting the leaf level.
func (t *Tree) Height() int {
	h := 1
	for n := t.nodes.get(t.root); !n.leaf; n = t.nodes.get(n.children[0]) {
		h++
	}
	return h
}

// levels returns the node ids of each level, root first.
func (t *Tree) levels() [][]nodeID {
	var out [][]nodeID
	level := []nodeID{t.root}
	for len(level) > 0 {
		out = append(out, level)
		var next []nodeID
		for _, id := range level {
			next = append(next, t.nodes.get(id).children...)
		}
		level = next
	}
	return out
}

// LevelOrder renders the tree breadth first, one string per level. Leaves
// print as [k:v k:v], internal nodes as <k k>.
func (t *Tree) LevelOrder() []string {
	var lines []string
	for _, level := range t.levels() {
		parts := make([]string, len(level))
		for i, id := range level {
			parts[i] = formatNode(t.nodes.get(id))
		}
		lines = append(lines, strings.Join(parts, "  "))
	}
	return lines
}

func formatNode(n *node) string {
	var b strings.Builder
	if n.leaf {
		b.WriteByte('[')
		for i, e := range n.entries {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%d:%d", e.Key, e.Value)
		}
		b.WriteByte(']')
		return b.String()
	}
	b.WriteByte('<')
	for i, k := range n.keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", k)
	}
	b.WriteByte('>')
	return b.String()
}

// Fprint writes the level-order dump to w.
func (t *Tree) Fprint(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Tree Structure:")
	for _, line := range t.LevelOrder() {
		fmt.Fprintln(bw, line)
	}
	return bw.Flush()
}

// Stats summarises the shape of a tree.
type Stats struct {
	Order    int
	Height   int
	Nodes    int
	Internal int
	Leaves   int
	Entries  int
}

// Stats walks the tree and counts its nodes.
func (t *Tree) Stats() Stats {
	s := Stats{Order: t.order, Height: t.Height(), Entries: t.count}
	for _, level := range t.levels() {
		for _, id := range level {
			if t.nodes.get(id).leaf {
				s.Leaves++
			} else {
				s.Internal++
			}
		}
	}
	s.Nodes = s.Leaves + s.Internal
	return s
}

// ─── Invariant checking ───────────────────────────────────────────────────────

// Check verifies the structural invariants of the tree and returns the first
// violation found.
func (t *Tree) Check() error {
	if t.nodes.len() == 0 {
		return errors.AssertionFailedf("bptree: empty arena")
	}
	blocks := make(map[int64]nodeID, t.nodes.len())
	for i, n := range t.nodes.nodes {
		if prev, ok := blocks[int64(n.block)]; ok {
			return errors.AssertionFailedf("bptree: nodes %d and %d share block %d", prev, i, n.block)
		}
		blocks[int64(n.block)] = nodeID(i)
	}

	var leaves []nodeID
	entries := 0
	var walk func(id nodeID, depth int, lo, hi *int64) error
	leafDepth := -1
	walk = func(id nodeID, depth int, lo, hi *int64) error {
		n := t.nodes.get(id)
		if len(n.keys) > 2*t.order {
			return errors.AssertionFailedf("bptree: block %d holds %d keys, max %d", n.block, len(n.keys), 2*t.order)
		}
		for i := 1; i < len(n.keys); i++ {
			if n.keys[i] < n.keys[i-1] {
				return errors.AssertionFailedf("bptree: block %d keys out of order at %d", n.block, i)
			}
		}
		for _, k := range n.keys {
			if (lo != nil && k < *lo) || (hi != nil && k > *hi) {
				return errors.AssertionFailedf("bptree: block %d key %d outside separator bounds", n.block, k)
			}
		}

		if n.leaf {
			if leafDepth == -1 {
				leafDepth = depth
			} else if depth != leafDepth {
				return errors.AssertionFailedf("bptree: leaf block %d at depth %d, want %d", n.block, depth, leafDepth)
			}
			if len(n.keys) != len(n.entries) {
				return errors.AssertionFailedf("bptree: leaf block %d has %d keys for %d entries", n.block, len(n.keys), len(n.entries))
			}
			for i, e := range n.entries {
				if n.keys[i] != e.Key {
					return errors.AssertionFailedf("bptree: leaf block %d key %d out of sync", n.block, i)
				}
				if i > 0 && compareEntries(n.entries[i-1], e) > 0 {
					return errors.AssertionFailedf("bptree: leaf block %d entries out of order at %d", n.block, i)
				}
			}
			entries += len(n.entries)
			leaves = append(leaves, id)
			return nil
		}

		if len(n.children) != len(n.keys)+1 {
			return errors.AssertionFailedf("bptree: block %d has %d keys and %d children", n.block, len(n.keys), len(n.children))
		}
		for i, c := range n.children {
			clo, chi := lo, hi
			if i > 0 {
				clo = &n.keys[i-1]
			}
			if i < len(n.keys) {
				chi = &n.keys[i]
			}
			if err := walk(c, depth+1, clo, chi); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t.root, 0, nil, nil); err != nil {
		return err
	}

	if entries != t.count {
		return errors.AssertionFailedf("bptree: %d entries reachable, %d inserted", entries, t.count)
	}

	// The chain must visit exactly the hierarchy's leaves, left to right.
	id := leaves[0]
	for i := range leaves {
		if id != leaves[i] {
			return errors.AssertionFailedf("bptree: leaf chain position %d is node %d, want %d", i, id, leaves[i])
		}
		id = t.nodes.get(id).next
	}
	if id != nilNode {
		return errors.AssertionFailedf("bptree: leaf chain continues past the rightmost leaf")
	}
	return nil
}

// ─── Graphviz export ──────────────────────────────────────────────────────────

// WriteDOT writes the tree as a Graphviz digraph. Leaves are ranked on one
// row and linked by dashed next-leaf edges.
func (t *Tree) WriteDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph BPlusTree {")
	fmt.Fprintln(bw, `  graph [ranksep=0.8, nodesep=0.5, bgcolor="#ffffff", rankdir=TB];`)
	fmt.Fprintln(bw, `  node [shape=none, fontname="Helvetica", fontsize=10];`)
	fmt.Fprintln(bw, `  edge [arrowsize=0.8, color="#444444"];`)

	name := func(id nodeID) string { return fmt.Sprintf("block%d", t.nodes.get(id).block) }
	capacity := float64(2 * t.order)

	var leaves []nodeID
	for _, level := range t.levels() {
		for _, id := range level {
			n := t.nodes.get(id)
			fill := float64(len(n.keys)) / capacity * 100

			if n.leaf {
				var cells strings.Builder
				for _, e := range n.entries {
					fmt.Fprintf(&cells, "<B>%d</B> <FONT COLOR='#666666'>[%d]</FONT><BR/>", e.Key, e.Value)
				}
				next := "NULL"
				if n.next != nilNode {
					next = fmt.Sprintf("%d", t.nodes.get(n.next).block)
				}
				fmt.Fprintf(bw, `  %s [label=<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`+
					`<TR><TD COLSPAN="2" BGCOLOR="#D5E8D4"><B>BLOCK %d (LEAF)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR>`+
					`<TR><TD PORT="keys" BGCOLOR="#F5F5F5" ALIGN="LEFT">%s</TD><TD PORT="next" BGCOLOR="#E1F5FE">Next: %s</TD></TR></TABLE>>];`+"\n",
					name(id), n.block, fill, cells.String(), next)
				leaves = append(leaves, id)
				continue
			}

			var cells strings.Builder
			for i, k := range n.keys {
				fmt.Fprintf(&cells, `<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD><TD BGCOLOR="#FFFFFF"><B>%d</B></TD>`,
					i, t.nodes.get(n.children[i]).block, k)
			}
			last := len(n.keys)
			fmt.Fprintf(&cells, `<TD PORT="f%d" BGCOLOR="#E1F5FE">P:%d</TD>`, last, t.nodes.get(n.children[last]).block)
			fmt.Fprintf(bw, `  %s [label=<<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="4">`+
				`<TR><TD COLSPAN="%d" BGCOLOR="#DAE8FC"><B>BLOCK %d (INTERNAL)</B><BR/><FONT POINT-SIZE="8">Fill: %.1f%%</FONT></TD></TR>`+
				`<TR>%s</TR></TABLE>>];`+"\n",
				name(id), 2*len(n.keys)+1, n.block, fill, cells.String())
			for i, c := range n.children {
				fmt.Fprintf(bw, "  %s:f%d -> %s;\n", name(id), i, name(c))
			}
		}
	}

	if len(leaves) > 1 {
		fmt.Fprintln(bw, "  { rank=same;")
		for _, id := range leaves {
			fmt.Fprintf(bw, "    %s;\n", name(id))
		}
		fmt.Fprintln(bw, "  }")
		for _, id := range leaves {
			if next := t.nodes.get(id).next; next != nilNode {
				fmt.Fprintf(bw, "  %s:next -> %s [style=dashed, color=\"#03A9F4\", constraint=false, tailclip=false];\n", name(id), name(next))
			}
		}
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
