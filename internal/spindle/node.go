// Package spindle implements the sea-of-nodes IR of spec.md §3/§4.5:
// a typed node graph with use-chains, a peephole/dead-store optimizer
// driven by a sparse-set worklist, and GraphViz DOT emission.
//
// Where original_source/src/spindle/core.c hands nodes out of an
// arena and reclaims them only by orphaning their use-chains, this
// package lets Go's garbage collector own node memory; the logical-
// deletion semantics (a node is "dead" once unreachable from END, not
// because its storage was freed) are kept exactly, since that is an
// IR invariant and not a memory-management detail.
package spindle

import (
	"fmt"

	"github.com/aledsdavies/spindlec/internal/invariant"
)

// NodeKind identifies a Spindle node's operation.
type NodeKind int

const (
	NodeUninitialized NodeKind = iota
	NodeStart
	NodeStartCtrl
	NodeStartMem
	NodeEnd
	NodeNull
	NodeRegion
	NodePhi
	NodeBranch
	NodeBranchTrue
	NodeBranchFalse
	NodeStore
	NodeLoad
	NodeMemEscape
	NodeAlloca
	NodeConstant
	NodeAdd
	NodeSub
	NodeMul
	NodeSdiv

	numNodeKinds
)

var nodeKindLabel = [numNodeKinds]string{
	NodeUninitialized: "!!uninitialized!!",
	NodeStart:         "START",
	NodeStartCtrl:     "START_CTRL",
	NodeStartMem:      "START_MEM",
	NodeEnd:           "END",
	NodeNull:          "NULL",
	NodeRegion:        "REGION",
	NodePhi:           "PHI",
	NodeBranch:        "BRANCH",
	NodeBranchTrue:    "BRANCH_TRUE",
	NodeBranchFalse:   "BRANCH_FALSE",
	NodeStore:         "STORE",
	NodeLoad:          "LOAD",
	NodeMemEscape:     "MEM_ESCAPE",
	NodeAlloca:        "ALLOCA",
	NodeConstant:      "CONSTANT",
	NodeAdd:           "ADD",
	NodeSub:           "SUB",
	NodeMul:           "MUL",
	NodeSdiv:          "SDIV",
}

func (k NodeKind) String() string {
	if k >= 0 && int(k) < len(nodeKindLabel) {
		return nodeKindLabel[k]
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// Flags is the per-node attribute bitset of spec.md §3.
type Flags uint8

const (
	FlagNone       Flags = 0
	FlagIsProj     Flags = 1 << 0
	FlagIsCFG      Flags = 1 << 1
	FlagReadsMem   Flags = 1 << 2
	FlagHasMemDep  Flags = 1 << 3
)

// Use is one entry of a node's use-chain: (user node, input index).
type Use struct {
	Next  *Use
	Index int
	Node  *Node
}

// Node is a single Spindle graph node. REGION and PHI have an empty
// Ins until their two-phase construction installs it (spec.md §9 open
// question 3), and MEM_ESCAPE keeps a nil Ins[0].
type Node struct {
	ID    int32
	Flags Flags
	Kind  NodeKind

	Ins []*Node

	Uses *Use

	// Data carries the opaque per-kind payload: a uint64 for CONSTANT,
	// nothing for every other kind.
	Data any
}

// Func is a single Spindle function: its Start/End anchors and the
// id allocator used while building it.
type Func struct {
	ctx *Context

	NextID int32

	Start *Node
	End   *Node
}

// Context is what Funcs are begun from; node ids are allocated per
// Func, not by the Context. The original also owns an arena; Go needs
// none, so Context here is a thin shell kept for API parity with
// sb_init/sb_cleanup.
type Context struct{}

// NewContext returns a fresh Spindle context.
func NewContext() *Context {
	return &Context{}
}

// BeginFunc starts a new function with its id counter at 1 (0 is
// reserved, matching the original's next_id=1 convention).
func (ctx *Context) BeginFunc() *Func {
	return &Func{ctx: ctx, NextID: 1}
}

func (f *Func) allocID() int32 {
	id := f.NextID
	f.NextID++
	return id
}

func newNode(f *Func, kind NodeKind, numIns int) *Node {
	return &Node{ID: f.allocID(), Kind: kind, Ins: make([]*Node, numIns)}
}

func setInput(node *Node, index int, input *Node) {
	invariant.Precondition(input != nil, "setInput: input must not be nil")
	invariant.Precondition(node.Ins[index] == nil, "setInput: overwriting an already-set input")

	node.Ins[index] = input
	input.Uses = &Use{Next: input.Uses, Node: node, Index: index}
}

func newLeaf(f *Func, kind NodeKind) *Node {
	invariant.Precondition(f.Start != nil, "newLeaf: Start must exist")
	node := newNode(f, kind, 1)
	setInput(node, 0, f.Start)
	return node
}

func newProj(f *Func, kind NodeKind, parent *Node) *Node {
	node := newNode(f, kind, 1)
	node.Flags |= FlagIsProj
	setInput(node, 0, parent)
	return node
}

// NewStart creates the function's single START node.
func (f *Func) NewStart() *Node {
	invariant.Precondition(f.Start == nil, "NewStart: Start already created")
	f.Start = newNode(f, NodeStart, 0)
	f.Start.Flags |= FlagIsCFG
	return f.Start
}

// StartCtrl projects the control token off START.
func (f *Func) StartCtrl(start *Node) *Node {
	invariant.Precondition(start.Kind == NodeStart, "StartCtrl requires a START node")
	node := newProj(f, NodeStartCtrl, start)
	node.Flags |= FlagIsCFG
	return node
}

// StartMem projects the initial memory token off START.
func (f *Func) StartMem(start *Node) *Node {
	invariant.Precondition(start.Kind == NodeStart, "StartMem requires a START node")
	return newProj(f, NodeStartMem, start)
}

// NewEnd creates the function's single END node, joining final control,
// memory, and the return value.
func (f *Func) NewEnd(ctrl, mem, returnValue *Node) *Node {
	invariant.Precondition(f.End == nil, "NewEnd: End already created")

	node := newNode(f, NodeEnd, 3)
	setInput(node, 0, ctrl)
	setInput(node, 1, mem)
	setInput(node, 2, returnValue)
	node.Flags |= FlagIsCFG

	f.End = node
	return node
}

// Null returns a placeholder value node (e.g. the return value of a
// bare "return;").
func (f *Func) Null() *Node {
	return newLeaf(f, NodeNull)
}

// Region creates an empty REGION; its inputs are filled later via
// SetRegionIns once every predecessor is known (two-phase
// construction, required for loop back-edges).
func (f *Func) Region() *Node {
	node := newNode(f, NodeRegion, 0)
	node.Flags |= FlagIsCFG
	return node
}

// SetRegionIns installs region's control predecessors.
func (f *Func) SetRegionIns(region *Node, ins []*Node) {
	invariant.Precondition(len(ins) > 0, "SetRegionIns requires at least one input")
	invariant.Precondition(region.Kind == NodeRegion, "SetRegionIns requires a REGION node")

	region.Ins = make([]*Node, len(ins))
	for i, in := range ins {
		setInput(region, i, in)
	}
}

// Phi creates a PHI with an empty Ins. Its controlling region (Ins[0])
// and values are only installed by SetPhiIns; any graph walk over a
// not-yet-installed PHI must tolerate a PHI with no inputs (spec.md §9
// open question 3).
func (f *Func) Phi() *Node {
	return newNode(f, NodePhi, 0)
}

// SetPhiIns installs phi's controlling region at Ins[0] and its
// per-predecessor values at Ins[1:]. Precondition: len(ins) ==
// len(region.Ins) (spec.md §4.5).
//
// The original source asserts phi->kind == SB_NODE_PHI at this call
// but region->kind == SB_NODE_PHI too (a bug introduced in one
// revision); spindlec asserts region.Kind == NodeRegion, the corrected
// precondition (spec.md §9 open question 2).
func (f *Func) SetPhiIns(phi, region *Node, ins []*Node) {
	invariant.Precondition(phi.Kind == NodePhi, "SetPhiIns requires a PHI node")
	invariant.Precondition(region.Kind == NodeRegion, "SetPhiIns requires a REGION controlling node")
	invariant.Precondition(len(ins) == len(region.Ins), "SetPhiIns input count must match region's predecessor count")

	phi.Ins = make([]*Node, len(ins)+1)
	setInput(phi, 0, region)
	for i, in := range ins {
		setInput(phi, i+1, in)
	}
}

// Branch creates a BRANCH over pred, controlled by ctrl.
func (f *Func) Branch(ctrl, pred *Node) *Node {
	node := newNode(f, NodeBranch, 2)
	setInput(node, 0, ctrl)
	setInput(node, 1, pred)
	node.Flags |= FlagIsCFG
	return node
}

// BranchTrue projects the taken-edge control token off branch.
func (f *Func) BranchTrue(branch *Node) *Node {
	invariant.Precondition(branch.Kind == NodeBranch, "BranchTrue requires a BRANCH node")
	node := newProj(f, NodeBranchTrue, branch)
	node.Flags |= FlagIsCFG
	return node
}

// BranchFalse projects the not-taken-edge control token off branch.
func (f *Func) BranchFalse(branch *Node) *Node {
	invariant.Precondition(branch.Kind == NodeBranch, "BranchFalse requires a BRANCH node")
	node := newProj(f, NodeBranchFalse, branch)
	node.Flags |= FlagIsCFG
	return node
}

// Store writes value to address, producing a new memory token.
func (f *Func) Store(ctrl, mem, address, value *Node) *Node {
	node := newNode(f, NodeStore, 4)
	setInput(node, 0, ctrl)
	setInput(node, 1, mem)
	setInput(node, 2, address)
	setInput(node, 3, value)
	node.Flags |= FlagHasMemDep
	return node
}

// Load reads from address, producing a value that also depends on mem.
func (f *Func) Load(ctrl, mem, address *Node) *Node {
	node := newNode(f, NodeLoad, 3)
	setInput(node, 0, ctrl)
	setInput(node, 1, mem)
	setInput(node, 2, address)
	node.Flags |= FlagReadsMem | FlagHasMemDep
	return node
}

// MemEscape forces every live store reachable through mem to be
// observed; Ins[0] is deliberately left nil (spec.md §9 open question
// 4) since it has no control input of its own.
func (f *Func) MemEscape(mem *Node) *Node {
	node := newNode(f, NodeMemEscape, 2)
	setInput(node, 1, mem)
	node.Flags |= FlagReadsMem | FlagHasMemDep
	return node
}

// Alloca reserves a stack slot, anchored to START so it stays
// reachable even with no other users.
func (f *Func) Alloca() *Node {
	return newLeaf(f, NodeAlloca)
}

// Constant creates an integer literal value node.
func (f *Func) Constant(value uint64) *Node {
	node := newLeaf(f, NodeConstant)
	node.Data = value
	return node
}

func (f *Func) newBinary(kind NodeKind, lhs, rhs *Node) *Node {
	node := newNode(f, kind, 2)
	setInput(node, 0, lhs)
	setInput(node, 1, rhs)
	return node
}

func (f *Func) Add(lhs, rhs *Node) *Node  { return f.newBinary(NodeAdd, lhs, rhs) }
func (f *Func) Sub(lhs, rhs *Node) *Node  { return f.newBinary(NodeSub, lhs, rhs) }
func (f *Func) Mul(lhs, rhs *Node) *Node  { return f.newBinary(NodeMul, lhs, rhs) }
func (f *Func) Sdiv(lhs, rhs *Node) *Node { return f.newBinary(NodeSdiv, lhs, rhs) }
