// Package parser implements an iterative, explicit-stack recursive
// descent / Pratt parser that lowers a token stream into a flat
// post-order parse tree (spec.md §3, §4.2).
package parser

import (
	"fmt"

	"github.com/aledsdavies/spindlec/internal/token"
)

// NodeKind identifies the syntactic category of a ParseNode.
type NodeKind int

const (
	NodeUninitialized NodeKind = iota
	NodeInteger
	NodeSymbol
	NodeIdentifier
	NodeTypename
	NodeAdd
	NodeSub
	NodeMul
	NodeDiv
	NodeAssign
	NodeBlock
	NodeLocal
	NodeIf
	NodeWhile
	NodeReturn

	numNodeKinds
)

var nodeKindLabel = [numNodeKinds]string{
	NodeUninitialized: "!!uninitialized!!",
	NodeInteger:       "INTEGER",
	NodeSymbol:        "SYMBOL",
	NodeIdentifier:    "IDENTIFIER",
	NodeTypename:      "TYPENAME",
	NodeAdd:           "ADD",
	NodeSub:           "SUB",
	NodeMul:           "MUL",
	NodeDiv:           "DIV",
	NodeAssign:        "ASSIGN",
	NodeBlock:         "BLOCK",
	NodeLocal:         "LOCAL",
	NodeIf:            "IF",
	NodeWhile:         "WHILE",
	NodeReturn:        "RETURN",
}

func (k NodeKind) String() string {
	if k >= 0 && int(k) < len(nodeKindLabel) {
		return nodeKindLabel[k]
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// ParseNode is one entry of the flat post-order tree: children precede
// their parent, and SubtreeSize = 1 + sum(child subtree sizes) lets a
// reader walk back from the node to find each child without pointers.
type ParseNode struct {
	Kind        NodeKind
	Token       token.Token
	NumChildren int
	SubtreeSize int
}

// ParseTree is the parser's output: an ordered, post-order sequence of
// ParseNodes. The last node is the root.
type ParseTree struct {
	Source []byte
	Nodes  []ParseNode
}

// Root returns the tree's root node (the last node in post-order).
func (t *ParseTree) Root() *ParseNode {
	return &t.Nodes[len(t.Nodes)-1]
}

// RootIndex returns the index of the root node within t.Nodes.
func (t *ParseTree) RootIndex() int {
	return len(t.Nodes) - 1
}

// ChildIterator walks a node's children back-to-front, the order
// spec.md §3 describes: "the k-th previous sibling starts
// subtree_size positions back".
type ChildIterator struct {
	nodes []ParseNode
	index int // child index, counting down from NumChildren-1
	child int // index into nodes of the current child
}

// Children begins an iteration over node's children, where nodeIndex
// is node's position in nodes.
func Children(nodes []ParseNode, nodeIndex int) ChildIterator {
	node := &nodes[nodeIndex]
	return ChildIterator{
		nodes: nodes,
		index: node.NumChildren - 1,
		child: nodeIndex - 1,
	}
}

// More reports whether there is a current child to visit.
func (it *ChildIterator) More() bool {
	return it.index >= 0
}

// Node returns the current child's index into the tree's Nodes slice.
func (it *ChildIterator) Node() int {
	return it.child
}

// Index returns the child's logical, left-to-right position (0 for
// the first child), even though iteration walks backward through
// memory from the last child to the first.
func (it *ChildIterator) Index() int {
	return it.index
}

// Next advances to the previous sibling.
func (it *ChildIterator) Next() {
	it.child -= it.nodes[it.child].SubtreeSize
	it.index--
}
