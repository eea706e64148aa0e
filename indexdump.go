package grove

import (
	"bytes"
	"fmt"
	"strings"
)

// dumper renders an Index as an ASCII tree for debugging, in the same
// branch-drawing style the teacher's ART dumper uses (├──/└── with a
// running per-depth children-left stack) adapted to the dense 256-way
// branch nodes this index uses instead of ART's four node widths.
type dumper struct {
	buf         *bytes.Buffer
	nChildStack []int
}

// Dump renders idx's trie structure. Branch nodes show only the byte
// indices that are actually populated; leaves show the entry's resolved
// node, or "<expired>" if its weak reference no longer upgrades.
func (idx *Index) Dump() string {
	d := &dumper{buf: bytes.NewBufferString("")}
	if idx.root == nil {
		return "(empty)\n"
	}
	d.dumpNode(idx.root, 0)
	return d.buf.String()
}

func (d *dumper) padding() (string, string) {
	depth := len(d.nChildStack)
	if depth == 0 {
		return "───", "   "
	}
	pad := "    " + strings.Repeat("│  ", depth-1)
	left := d.nChildStack[len(d.nChildStack)-1]
	head, finalPad := "├──", "│  "
	if left == 1 {
		head, finalPad = "└──", "   "
	}
	return pad + head, pad + finalPad
}

func (d *dumper) pushNChildren(n int) { d.nChildStack = append(d.nChildStack, n) }

func (d *dumper) decNChildren() {
	if len(d.nChildStack) > 0 {
		d.nChildStack[len(d.nChildStack)-1]--
	}
}

func (d *dumper) popNChildren() {
	if depth := len(d.nChildStack); depth > 0 {
		d.nChildStack = d.nChildStack[:depth-1]
	}
}

func (d *dumper) dumpNode(n *indexNode, depth int) {
	headerPad, pad := d.padding()

	if depth == indexKeyBytes {
		node, ok := n.entry.upgrade()
		if !ok {
			fmt.Fprintf(d.buf, "%s leaf <expired>\n", headerPad)
			return
		}
		fmt.Fprintf(d.buf, "%s leaf id=%d (%p)\n", headerPad, node.Header().ID(), node)
		return
	}

	present := 0
	for _, c := range n.children {
		if c != nil {
			present++
		}
	}
	fmt.Fprintf(d.buf, "%s branch (%d live)\n", headerPad, present)

	d.pushNChildren(present)
	for c, child := range n.children {
		if child == nil {
			continue
		}
		fmt.Fprintf(d.buf, "%s  byte 0x%02x ->\n", pad, c)
		d.dumpNode(child, depth+1)
		d.decNChildren()
	}
	d.popNChildren()
}
