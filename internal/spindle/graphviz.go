package spindle

import (
	"fmt"
	"io"
)

// gvLabel returns the text shown inside node's GraphViz cell: the
// kind label for everything except CONSTANT, which shows its value.
func gvLabel(node *Node) string {
	if node.Kind == NodeConstant {
		return fmt.Sprintf("%d", node.Data.(uint64))
	}
	return node.Kind.String()
}

func hasProjUse(node *Node) bool {
	for u := node.Uses; u != nil; u = u.Next {
		if u.Node.Flags&FlagIsProj != 0 {
			return true
		}
	}
	return false
}

// Graphviz writes a DOT dump of f to w: one cluster node per
// non-projection node, with projections (START_CTRL/MEM,
// BRANCH_TRUE/FALSE) rendered as sub-cells of their parent via an
// HTML table label, and edges into a projection redirected to the
// parent's matching port — the same rendering as sb_graphviz_func.
func Graphviz(w io.Writer, f *Func) {
	nodes := postOrderWalkIns(f)

	fmt.Fprintln(w, "digraph G {")
	fmt.Fprintln(w, "  rankdir=BT;")
	fmt.Fprintln(w, "  subgraph cluster {")

	for _, node := range nodes {
		if node.Flags&FlagIsProj != 0 {
			continue
		}

		fmt.Fprintf(w, "    n%d [", node.ID)

		if !hasProjUse(node) {
			if node.Flags&FlagIsCFG != 0 {
				fmt.Fprint(w, "style=filled,fillcolor=yellow,")
			}
			fmt.Fprintf(w, "label=%q", gvLabel(node))
		} else {
			writeProjTable(w, node)
		}

		fmt.Fprintln(w, "];")

		for j, in := range node.Ins {
			if in == nil {
				continue
			}
			if in.Kind == NodeStart && node.Flags&FlagIsProj == 0 {
				continue
			}

			fmt.Fprintf(w, "    n%d -> ", node.ID)

			if in.Flags&FlagIsProj != 0 {
				fmt.Fprintf(w, "n%d:p%s", in.Ins[0].ID, in.Kind)
			} else {
				fmt.Fprintf(w, "n%d", in.ID)
			}

			fmt.Fprintf(w, "[taillabel=\"%d\"];\n", j)
		}
	}

	fmt.Fprintln(w, "  }")
	fmt.Fprintln(w, "}")
}

func writeProjTable(w io.Writer, node *Node) {
	fmt.Fprint(w, `shape=plaintext, label=<<table border="0" cellborder="1" cellspacing="0" cellpadding="4">`)

	if node.Flags&FlagIsCFG != 0 {
		fmt.Fprintf(w, `<tr><td bgcolor="yellow">%s</td></tr>`, node.Kind)
	} else {
		fmt.Fprintf(w, `<tr><td>%s</td></tr>`, node.Kind)
	}

	fmt.Fprint(w, `<tr><td><table border="0" cellborder="1" cellspacing="0" cellpadding="4"><tr>`)

	for u := node.Uses; u != nil; u = u.Next {
		if u.Node.Flags&FlagIsProj == 0 {
			continue
		}

		if u.Node.Flags&FlagIsCFG != 0 {
			fmt.Fprintf(w, `<td bgcolor="yellow" port="p%s">%s</td>`, u.Node.Kind, u.Node.Kind)
		} else {
			fmt.Fprintf(w, `<td port="p%s">%s</td>`, u.Node.Kind, u.Node.Kind)
		}
	}

	fmt.Fprint(w, `</tr></table></td></tr></table>>`)
}
