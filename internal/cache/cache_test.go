package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/spindlec/internal/lexer"
	"github.com/aledsdavies/spindlec/internal/parser"
	"github.com/aledsdavies/spindlec/internal/sem"
)

func mustCheck(t *testing.T, src string) (*parser.ParseTree, *sem.Func) {
	t.Helper()
	source := []byte(src)
	tokens := lexer.Lex(source)
	tree, pd := parser.Parse("test.sp", source, tokens)
	require.Nil(t, pd)

	fn, cd := sem.Check("test.sp", source, tree, nil)
	require.Nil(t, cd)
	return tree, fn
}

func TestDigestIsStableAndContentAddressed(t *testing.T) {
	t.Parallel()

	a := Digest([]byte("{ x: int; }"))
	b := Digest([]byte("{ x: int; }"))
	c := Digest([]byte("{ y: int; }"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestStoreRoundTripsSimpleFunc(t *testing.T) {
	t.Parallel()

	tree, fn := mustCheck(t, "{ x: int = 1; x = x + 2; }")

	store, err := Open(t.TempDir())
	require.NoError(t, err)

	key := Digest([]byte("irrelevant"))
	require.NoError(t, store.Put(key, tree, fn))

	gotTree, gotFn, ok, err := store.Get(key)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, len(tree.Nodes), len(gotTree.Nodes))

	var wantBlocks, gotBlocks int
	fn.Blocks(func(*sem.Block) { wantBlocks++ })
	gotFn.Blocks(func(*sem.Block) { gotBlocks++ })
	assert.Equal(t, wantBlocks, gotBlocks)
	assert.Equal(t, fn.NumPlaces, gotFn.NumPlaces)
}

// The checker's while-loop lowering produces a GOTO whose Inst.Data
// targets an earlier block in emission order: a genuine pointer cycle
// through sem.Block that the flat snapshot representation exists to
// survive without infinite recursion.
func TestStoreRoundTripsWhileLoopBackEdge(t *testing.T) {
	t.Parallel()

	tree, fn := mustCheck(t, "{ x: int; while x { x = x - 1; } }")

	store, err := Open(t.TempDir())
	require.NoError(t, err)

	key := Digest([]byte("loop"))
	require.NoError(t, store.Put(key, tree, fn))

	_, gotFn, ok, err := store.Get(key)
	require.NoError(t, err)
	require.True(t, ok)

	// Find the GOTO that targets an earlier block (the back-edge) and
	// confirm it survived the round trip as a real block reference.
	var blocks []*sem.Block
	gotFn.Blocks(func(b *sem.Block) { blocks = append(blocks, b) })

	foundBackEdge := false
	for i, b := range blocks {
		for _, inst := range b.Code {
			if inst.Op == sem.OpGoto {
				target := inst.Data.(*sem.Block)
				for j := 0; j <= i; j++ {
					if blocks[j] == target {
						foundBackEdge = true
					}
				}
			}
		}
	}
	assert.True(t, foundBackEdge, "expected a GOTO targeting an earlier-or-same block after round trip")
}

func TestGetOnMissingKeyIsCacheMissNotError(t *testing.T) {
	t.Parallel()

	store, err := Open(t.TempDir())
	require.NoError(t, err)

	_, _, ok, err := store.Get(Key("does-not-exist"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetOnCorruptEntryIsCacheMissNotError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	key := Key("corrupt")
	require.NoError(t, os.WriteFile(filepath.Join(dir, string(key)+".cbor"), []byte("not cbor"), 0o644))

	_, _, ok, err := store.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)
}
