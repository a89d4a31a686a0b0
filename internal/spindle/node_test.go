package spindle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStartPanicsOnSecondCall(t *testing.T) {
	t.Parallel()

	f := NewContext().BeginFunc()
	f.NewStart()
	assert.Panics(t, func() { f.NewStart() })
}

func TestAllocaAnchorsToStartViaUseChain(t *testing.T) {
	t.Parallel()

	f := NewContext().BeginFunc()
	start := f.NewStart()
	alloca := f.Alloca()

	require.Len(t, alloca.Ins, 1)
	assert.Same(t, start, alloca.Ins[0])

	require.NotNil(t, start.Uses)
	assert.Same(t, alloca, start.Uses.Node)
}

func TestConstantCarriesValueInData(t *testing.T) {
	t.Parallel()

	f := NewContext().BeginFunc()
	f.NewStart()
	c := f.Constant(42)
	assert.Equal(t, uint64(42), c.Data.(uint64))
}

func TestSetRegionInsWiresUseChainBothWays(t *testing.T) {
	t.Parallel()

	f := NewContext().BeginFunc()
	start := f.NewStart()
	ctrl := f.StartCtrl(start)

	region := f.Region()
	f.SetRegionIns(region, []*Node{ctrl, ctrl})

	require.Len(t, region.Ins, 2)
	assert.Same(t, ctrl, region.Ins[0])
	assert.Same(t, ctrl, region.Ins[1])

	uses := 0
	for u := ctrl.Uses; u != nil; u = u.Next {
		uses++
		assert.Same(t, region, u.Node)
	}
	assert.Equal(t, 2, uses)
}

func TestSetRegionInsRejectsEmptyInputs(t *testing.T) {
	t.Parallel()

	f := NewContext().BeginFunc()
	f.NewStart()
	region := f.Region()
	assert.Panics(t, func() { f.SetRegionIns(region, nil) })
}

func TestSetPhiInsRequiresRegionController(t *testing.T) {
	t.Parallel()

	f := NewContext().BeginFunc()
	start := f.NewStart()
	ctrl := f.StartCtrl(start)

	phi := f.Phi()
	// ctrl is a START_CTRL projection, not a REGION: must panic.
	assert.Panics(t, func() { f.SetPhiIns(phi, ctrl, []*Node{f.Constant(1)}) })
}

func TestSetPhiInsRequiresMatchingArity(t *testing.T) {
	t.Parallel()

	f := NewContext().BeginFunc()
	start := f.NewStart()
	ctrl := f.StartCtrl(start)

	region := f.Region()
	f.SetRegionIns(region, []*Node{ctrl, ctrl})

	phi := f.Phi()
	assert.Panics(t, func() { f.SetPhiIns(phi, region, []*Node{f.Constant(1)}) })
}

func TestSetPhiInsSucceedsAndWiresController(t *testing.T) {
	t.Parallel()

	f := NewContext().BeginFunc()
	start := f.NewStart()
	ctrl := f.StartCtrl(start)

	region := f.Region()
	f.SetRegionIns(region, []*Node{ctrl, ctrl})

	one := f.Constant(1)
	two := f.Constant(2)
	phi := f.Phi()
	f.SetPhiIns(phi, region, []*Node{one, two})

	require.Len(t, phi.Ins, 3)
	assert.Same(t, region, phi.Ins[0])
	assert.Same(t, one, phi.Ins[1])
	assert.Same(t, two, phi.Ins[2])
}

func TestMemEscapeLeavesFirstInputNil(t *testing.T) {
	t.Parallel()

	f := NewContext().BeginFunc()
	start := f.NewStart()
	mem := f.StartMem(start)

	esc := f.MemEscape(mem)
	require.Len(t, esc.Ins, 2)
	assert.Nil(t, esc.Ins[0])
	assert.Same(t, mem, esc.Ins[1])
	assert.NotZero(t, esc.Flags&FlagReadsMem)
	assert.NotZero(t, esc.Flags&FlagHasMemDep)
}

func TestSetInputPanicsOnDoubleSet(t *testing.T) {
	t.Parallel()

	f := NewContext().BeginFunc()
	start := f.NewStart()
	ctrl1 := f.StartCtrl(start)
	ctrl2 := f.StartCtrl(start)

	branch := f.Branch(ctrl1, f.Constant(1))
	assert.Panics(t, func() { setInput(branch, 0, ctrl2) })
}
