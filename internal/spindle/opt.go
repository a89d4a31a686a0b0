package spindle

import "github.com/aledsdavies/spindlec/internal/invariant"

// worklist is the sparse-set worklist of spec.md §4.7: a packed slice
// for O(1) iteration plus a sparse id→position index for O(1)
// membership test/remove, the same structure as opt.c's Worklist.
type worklist struct {
	packed []*Node
	sparse []int // node id -> position in packed, or -1
	stack  []*Node
}

func (wl *worklist) ensureSparse(id int32) {
	for int32(len(wl.sparse)) <= id {
		wl.sparse = append(wl.sparse, -1)
	}
}

func (wl *worklist) add(node *Node) {
	wl.ensureSparse(node.ID)
	if wl.sparse[node.ID] == -1 {
		wl.sparse[node.ID] = len(wl.packed)
		wl.packed = append(wl.packed, node)
	}
}

func (wl *worklist) remove(node *Node) {
	if int(node.ID) >= len(wl.sparse) {
		return
	}
	index := wl.sparse[node.ID]
	if index == -1 {
		return
	}

	last := wl.packed[len(wl.packed)-1]
	wl.packed = wl.packed[:len(wl.packed)-1]

	if index < len(wl.packed) {
		wl.packed[index] = last
		wl.sparse[last.ID] = index
	}
	wl.sparse[node.ID] = -1
}

func (wl *worklist) pop() *Node {
	node := wl.packed[len(wl.packed)-1]
	wl.packed = wl.packed[:len(wl.packed)-1]
	wl.sparse[node.ID] = -1
	return node
}

func (wl *worklist) empty() bool {
	return len(wl.packed) == 0
}

func (wl *worklist) pushUses(node *Node) {
	for u := node.Uses; u != nil; u = u.Next {
		wl.add(u.Node)
	}
}

func removeUse(node, user *Node, index int) {
	for pu := &node.Uses; *pu != nil; {
		u := *pu
		if u.Node == user && u.Index == index {
			*pu = u.Next
			return
		}
		pu = &u.Next
	}
	invariant.Invariant(false, "removeUse found no matching use-record")
}

// removeNode reclaims first and, transitively, every input that loses
// its last use as a result — the only memory-reclamation path in this
// IR (spec.md §4.7).
func (wl *worklist) removeNode(first *Node) {
	wl.stack = wl.stack[:0]
	wl.stack = append(wl.stack, first)

	for len(wl.stack) > 0 {
		node := wl.stack[len(wl.stack)-1]
		wl.stack = wl.stack[:len(wl.stack)-1]

		invariant.Invariant(node.Uses == nil, "removeNode on a node that still has uses")

		wl.remove(node)

		for i, in := range node.Ins {
			if in == nil {
				continue
			}
			removeUse(in, node, i)
			if in.Uses == nil {
				wl.stack = append(wl.stack, in)
			}
		}
	}
}

// replaceNode moves every use of target onto source in one splice,
// then reclaims target (spec.md §4.7's only memory-reclamation path).
func replaceNode(wl *worklist, target, source *Node) {
	invariant.Precondition(target != source, "replaceNode target == source")

	wl.pushUses(target)

	for u := target.Uses; u != nil; u = u.Next {
		invariant.Invariant(u.Node.Ins[u.Index] == target, "replaceNode use-record points at the wrong input")
		u.Node.Ins[u.Index] = source
	}

	tail := &source.Uses
	for *tail != nil {
		tail = &(*tail).Next
	}
	*tail = target.Uses
	target.Uses = nil

	wl.removeNode(target)
}

// idealize is the idealize_table dispatch of opt.c: node kinds with no
// rewrite rule return node itself, unchanged.
func idealize(wl *worklist, node *Node) *Node {
	switch node.Kind {
	case NodePhi:
		return idealizePhi(wl, node)
	case NodeRegion:
		return idealizeRegion(node)
	case NodeLoad:
		return idealizeLoad(node)
	default:
		return node
	}
}

// idealizePhi collapses a PHI whose non-control inputs are all the
// same node down to that node.
func idealizePhi(wl *worklist, node *Node) *Node {
	var same *Node
	for i := 1; i < len(node.Ins); i++ {
		in := node.Ins[i]
		if in == nil {
			continue
		}
		if same == nil {
			same = in
		} else if same != in {
			return node
		}
	}

	if same == nil {
		return node
	}

	wl.add(node.Ins[0])
	return same
}

// idealizeRegion collapses a REGION with a single distinct predecessor
// down to that predecessor, unless a PHI still depends on it (a PHI
// needs the region identity to know which input corresponds to which
// predecessor).
func idealizeRegion(node *Node) *Node {
	for u := node.Uses; u != nil; u = u.Next {
		if u.Node.Kind == NodePhi {
			return node
		}
	}

	var same *Node
	for _, in := range node.Ins {
		if in == nil {
			continue
		}
		if same == nil {
			same = in
		} else if same != in {
			return node
		}
	}

	invariant.Invariant(same != nil, "idealizeRegion found no inputs")
	return same
}

// idealizeLoad forwards a load that reads exactly the value most
// recently stored to the same address (store-to-load forwarding).
func idealizeLoad(node *Node) *Node {
	mem := node.Ins[1]
	if mem.Kind == NodeStore && mem.Ins[2] == node.Ins[2] {
		return mem.Ins[3]
	}
	return node
}

// peeps drains wl, idealizing each popped node until fixpoint.
func peeps(wl *worklist) {
	for !wl.empty() {
		node := wl.pop()

		ideal := idealize(wl, node)
		if ideal != node {
			replaceNode(wl, node, ideal)
		}
	}
}

type dseState int

const (
	dseNoReads dseState = iota
	dseReads
)

// deadStoreElim finds every STORE whose value is never observed by a
// LOAD or MEM_ESCAPE reachable from END, and replaces it with its
// input memory token, eliding the write entirely (spec.md §4.7).
func deadStoreElim(f *Func, wl *worklist) {
	nodes := postOrderWalkIns(f)

	states := make([]dseState, f.NextID)

	var reachesObserver []*Node
	var stores []*Node

	for _, node := range nodes {
		if node.Flags&FlagReadsMem != 0 {
			invariant.Invariant(node.Flags&FlagHasMemDep != 0, "READS_MEM node missing HAS_MEM_DEP")
			reachesObserver = append(reachesObserver, node)
		}
		if node.Kind == NodeStore {
			stores = append(stores, node)
		}
	}

	stack := reachesObserver
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if states[node.ID] == dseReads {
			continue
		}
		states[node.ID] = dseReads

		if node.Kind == NodePhi {
			for i := 1; i < len(node.Ins); i++ {
				if node.Ins[i] != nil {
					stack = append(stack, node.Ins[i])
				}
			}
		} else if node.Flags&FlagHasMemDep != 0 {
			stack = append(stack, node.Ins[1])
		}
	}

	for _, store := range stores {
		if states[store.ID] == dseReads {
			continue
		}
		replaceNode(wl, store, store.Ins[1])
	}
}

// Opt runs the optimizer to a fixpoint: alternating dead-store
// elimination and peephole idealization until a DSE pass leaves the
// worklist empty (spec.md §4.7).
func Opt(ctx *Context, f *Func) {
	wl := &worklist{}

	for _, node := range postOrderWalkIns(f) {
		wl.add(node)
	}

	for {
		deadStoreElim(f, wl)

		if !wl.empty() {
			peeps(wl)
		} else {
			break
		}
	}
}
