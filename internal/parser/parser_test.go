package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/spindlec/internal/lexer"
)

func mustParse(t *testing.T, src string) *ParseTree {
	t.Helper()
	source := []byte(src)
	tokens := lexer.Lex(source)
	tree, d := Parse("test.sp", source, tokens)
	require.Nil(t, d, "unexpected parse diagnostic: %v", d)
	return tree
}

func TestParseEmptyBlock(t *testing.T) {
	t.Parallel()

	tree := mustParse(t, "{}")

	require.Len(t, tree.Nodes, 1)
	root := tree.Root()
	assert.Equal(t, NodeBlock, root.Kind)
	assert.Equal(t, 0, root.NumChildren)
	assert.Equal(t, 1, root.SubtreeSize)
}

func TestParseLocalWithInitializer(t *testing.T) {
	t.Parallel()

	tree := mustParse(t, "{ x: int = 1; }")

	root := tree.Root()
	assert.Equal(t, NodeBlock, root.Kind)
	assert.Equal(t, 1, root.NumChildren)

	it := Children(tree.Nodes, tree.RootIndex())
	require.True(t, it.More())
	local := tree.Nodes[it.Node()]
	assert.Equal(t, NodeLocal, local.Kind)
	assert.Equal(t, 3, local.NumChildren)
}

func TestParseLocalWithoutInitializer(t *testing.T) {
	t.Parallel()

	tree := mustParse(t, "{ x: int; }")

	it := Children(tree.Nodes, tree.RootIndex())
	require.True(t, it.More())
	local := tree.Nodes[it.Node()]
	assert.Equal(t, NodeLocal, local.Kind)
	assert.Equal(t, 2, local.NumChildren)
}

func TestParseBinaryPrecedence(t *testing.T) {
	t.Parallel()

	// 1 + 2 * 3 should parse as 1 + (2 * 3): the ADD's second child
	// (the MUL) must be the very last node before ADD in post-order.
	tree := mustParse(t, "{ 1 + 2 * 3; }")

	var kinds []NodeKind
	for _, n := range tree.Nodes {
		kinds = append(kinds, n.Kind)
	}

	require.Contains(t, kinds, NodeMul)
	require.Contains(t, kinds, NodeAdd)

	var mulIdx, addIdx int
	for i, k := range kinds {
		if k == NodeMul {
			mulIdx = i
		}
		if k == NodeAdd {
			addIdx = i
		}
	}
	assert.Less(t, mulIdx, addIdx, "MUL must be emitted before ADD in post-order")
}

func TestParseAssignIsRightAssociative(t *testing.T) {
	t.Parallel()

	// x = y = 1 should parse as x = (y = 1): two ASSIGN nodes, and the
	// outer one's right-hand (last) child is the inner ASSIGN.
	tree := mustParse(t, "{ x = y = 1; }")

	count := 0
	for _, n := range tree.Nodes {
		if n.Kind == NodeAssign {
			count++
		}
	}
	assert.Equal(t, 2, count)

	stmt := Children(tree.Nodes, tree.RootIndex())
	require.True(t, stmt.More())
	outer := stmt.Node()
	require.Equal(t, NodeAssign, tree.Nodes[outer].Kind)

	rhs := Children(tree.Nodes, outer)
	require.True(t, rhs.More())
	assert.Equal(t, NodeAssign, tree.Nodes[rhs.Node()].Kind)
}

func TestParseIfNoElse(t *testing.T) {
	t.Parallel()

	tree := mustParse(t, "{ if 1 { x = 2; } }")

	it := Children(tree.Nodes, tree.RootIndex())
	require.True(t, it.More())
	ifNode := tree.Nodes[it.Node()]
	assert.Equal(t, NodeIf, ifNode.Kind)
	assert.Equal(t, 2, ifNode.NumChildren)
}

func TestParseIfElse(t *testing.T) {
	t.Parallel()

	tree := mustParse(t, "{ if 1 { x = 2; } else { x = 3; } }")

	it := Children(tree.Nodes, tree.RootIndex())
	require.True(t, it.More())
	ifNode := tree.Nodes[it.Node()]
	assert.Equal(t, NodeIf, ifNode.Kind)
	assert.Equal(t, 3, ifNode.NumChildren)
}

func TestParseElseIfChain(t *testing.T) {
	t.Parallel()

	tree := mustParse(t, "{ if 1 { x = 1; } else if 2 { x = 2; } }")

	it := Children(tree.Nodes, tree.RootIndex())
	require.True(t, it.More())
	outer := tree.Nodes[it.Node()]
	assert.Equal(t, NodeIf, outer.Kind)
	assert.Equal(t, 3, outer.NumChildren)
}

func TestParseWhile(t *testing.T) {
	t.Parallel()

	tree := mustParse(t, "{ while 1 { x = 1; } }")

	it := Children(tree.Nodes, tree.RootIndex())
	require.True(t, it.More())
	whileNode := tree.Nodes[it.Node()]
	assert.Equal(t, NodeWhile, whileNode.Kind)
	assert.Equal(t, 2, whileNode.NumChildren)
}

func TestParseReturnWithValue(t *testing.T) {
	t.Parallel()

	tree := mustParse(t, "{ return 1; }")

	it := Children(tree.Nodes, tree.RootIndex())
	require.True(t, it.More())
	ret := tree.Nodes[it.Node()]
	assert.Equal(t, NodeReturn, ret.Kind)
	assert.Equal(t, 1, ret.NumChildren)
}

func TestParseBareReturn(t *testing.T) {
	t.Parallel()

	tree := mustParse(t, "{ return; }")

	it := Children(tree.Nodes, tree.RootIndex())
	require.True(t, it.More())
	ret := tree.Nodes[it.Node()]
	assert.Equal(t, NodeReturn, ret.Kind)
	assert.Equal(t, 0, ret.NumChildren)
}

func TestParseUnterminatedBlockReportsDiagnostic(t *testing.T) {
	t.Parallel()

	source := []byte("{ x = 1;")
	tokens := lexer.Lex(source)
	_, d := Parse("test.sp", source, tokens)
	require.NotNil(t, d)
	assert.Contains(t, d.Error(), "no matching")
}

func TestParseNestedBlocks(t *testing.T) {
	t.Parallel()

	tree := mustParse(t, "{ { x = 1; } }")

	require.Len(t, tree.Nodes, 5) // SYMBOL, INTEGER, ASSIGN, inner BLOCK, outer BLOCK
	assert.Equal(t, NodeBlock, tree.Root().Kind)
}
