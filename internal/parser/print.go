package parser

import (
	"fmt"
	"io"
)

// printItem mirrors the original's PrintItem: a node's depth plus a
// per-ancestor-depth "was this the first child" bit, used to decide
// whether a vertical continuation bar is drawn at that column.
type printItem struct {
	depth      int
	firstChild []bool
}

// PrintTree writes a box-drawing visualization of tree to w, the
// supplemented feature from original_source/src/front/parse.c's
// print_parse_tree (spec.md §6 leaves the parse-tree dump format
// unspecified; this is the format the original ships).
//
// Node metadata (depth, connector shape) is computed with an explicit
// stack, in the same no-host-recursion style as the rest of this
// package, but the final print pass walks the tree's own post-order
// storage order — exactly what the original does, despite that order
// putting a node's children ahead of it on screen.
func PrintTree(w io.Writer, tree *ParseTree) {
	items := make([]printItem, len(tree.Nodes))

	type frame struct {
		nodeIndex  int
		depth      int
		firstChild []bool
	}

	root := frame{nodeIndex: tree.RootIndex(), depth: 0, firstChild: []bool{true}}
	stack := []frame{root}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		items[f.nodeIndex] = printItem{depth: f.depth, firstChild: f.firstChild}

		it := Children(tree.Nodes, f.nodeIndex)
		for it.More() {
			fc := make([]bool, f.depth+2)
			copy(fc, f.firstChild)
			if it.Index() == 0 {
				fc[f.depth+1] = true
			}
			stack = append(stack, frame{nodeIndex: it.Node(), depth: f.depth + 1, firstChild: fc})
			it.Next()
		}
	}

	for i, item := range items {
		for d := 1; d <= item.depth; d++ {
			first := d < len(item.firstChild) && item.firstChild[d]
			switch {
			case d == item.depth && first:
				fmt.Fprint(w, "┌─")
			case d == item.depth:
				fmt.Fprint(w, "├─")
			case first:
				fmt.Fprint(w, "  ")
			default:
				fmt.Fprint(w, "│ ")
			}
		}

		node := tree.Nodes[i]
		fmt.Fprintf(w, "%s: '%s'\n", node.Kind, node.Token.Text(tree.Source))
	}
}
