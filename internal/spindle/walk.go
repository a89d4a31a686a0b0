package spindle

import "github.com/aledsdavies/spindlec/internal/invariant"

// postOrderWalkIns walks f.End outward via Ins and returns every
// reachable node exactly once, children before parents (the same
// explicit-stack traversal as post_order_walk_ins: no host recursion,
// a visited bitset keyed by node id, and a "children processed" flag
// instead of two passes).
func postOrderWalkIns(f *Func) []*Node {
	type frame struct {
		childrenProcessed bool
		node              *Node
	}

	visited := make([]bool, f.NextID)
	nodes := make([]*Node, 0, f.NextID)

	stack := []frame{{node: f.End}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !top.childrenProcessed {
			if visited[top.node.ID] {
				continue
			}
			visited[top.node.ID] = true

			stack = append(stack, frame{childrenProcessed: true, node: top.node})

			for _, in := range top.node.Ins {
				if in != nil {
					stack = append(stack, frame{node: in})
				}
			}
		} else {
			nodes = append(nodes, top.node)
		}
	}

	return nodes
}

// FinishFunc prunes every use-record whose user is unreachable from
// END, the graph's only reclamation path (spec.md §4.5). It panics if
// START is unreachable ("function never terminates").
func FinishFunc(f *Func) {
	invariant.Precondition(f.Start != nil && f.End != nil, "FinishFunc requires Start and End")

	nodes := postOrderWalkIns(f)

	reachable := make([]bool, f.NextID)
	for _, n := range nodes {
		reachable[n.ID] = true
	}

	invariant.Invariant(reachable[f.Start.ID], "function never terminates (START unreachable from END)")

	for _, node := range nodes {
		var head *Use
		tail := &head
		for u := node.Uses; u != nil; u = u.Next {
			if reachable[u.Node.ID] {
				*tail = u
				tail = &u.Next
			}
		}
		*tail = nil
		node.Uses = head
	}
}
