package spindle

import (
	"github.com/aledsdavies/spindlec/internal/invariant"
	"github.com/aledsdavies/spindlec/internal/sem"
)

// blockData accumulates, per SemBlock, the REGION/PHI pair that will
// stand in for it in the Spindle graph plus the (ctrl, mem) pairs fed
// in by every predecessor edge lowered so far — mirrors lower.c's
// BlockData, populated incrementally since predecessors are only
// known after every block's code has been walked once.
type blockData struct {
	region *Node
	memPhi *Node

	ctrlIn []*Node
	memIn  []*Node
}

func (bd *blockData) pushEntry(ctrl, mem *Node) {
	bd.ctrlIn = append(bd.ctrlIn, ctrl)
	bd.memIn = append(bd.memIn, mem)
}

// lowerCtx carries the running control/memory tokens while lowering
// one SemBlock's instructions in order.
type lowerCtx struct {
	f      *Func
	blocks map[*sem.Block]*blockData
	places []*Node

	ctrl *Node
	mem  *Node

	hadReturn bool

	endCtrl []*Node
	endMem  []*Node
	endVal  []*Node
}

func (lc *lowerCtx) in(inst *sem.Inst, idx int) *Node {
	return lc.f.Load(lc.ctrl, lc.mem, lc.places[inst.Reads[idx]])
}

func (lc *lowerCtx) pushFuncExit(ctrl, mem, retVal *Node) {
	lc.endCtrl = append(lc.endCtrl, ctrl)
	lc.endMem = append(lc.endMem, mem)
	lc.endVal = append(lc.endVal, retVal)
}

func (lc *lowerCtx) lowerInst(inst *sem.Inst) *Node {
	var result *Node

	switch inst.Op {
	case sem.OpIntegerConst:
		result = lc.f.Constant(inst.Data.(uint64))
	case sem.OpAdd:
		result = lc.f.Add(lc.in(inst, 0), lc.in(inst, 1))
	case sem.OpSub:
		result = lc.f.Sub(lc.in(inst, 0), lc.in(inst, 1))
	case sem.OpMul:
		result = lc.f.Mul(lc.in(inst, 0), lc.in(inst, 1))
	case sem.OpDiv:
		result = lc.f.Sdiv(lc.in(inst, 0), lc.in(inst, 1))
	case sem.OpCopy:
		result = lc.in(inst, 0)
	case sem.OpGoto:
		target := inst.Data.(*sem.Block)
		lc.blocks[target].pushEntry(lc.ctrl, lc.mem)
		return nil
	case sem.OpBranch:
		targets := inst.Data.(sem.BranchTargets)

		branch := lc.f.Branch(lc.ctrl, lc.in(inst, 0))
		lc.ctrl = branch

		branchTrue := lc.f.BranchTrue(branch)
		branchFalse := lc.f.BranchFalse(branch)

		lc.blocks[targets.Then].pushEntry(branchTrue, lc.mem)
		lc.blocks[targets.Else].pushEntry(branchFalse, lc.mem)
		return nil
	case sem.OpReturn:
		var retVal *Node
		if inst.NumReads == 0 {
			retVal = lc.f.Null()
		} else {
			retVal = lc.in(inst, 0)
		}
		lc.hadReturn = true
		lc.pushFuncExit(lc.ctrl, lc.mem, retVal)
		return nil
	default:
		invariant.Invariant(false, "lowerInst hit an unhandled SemInst op %s", inst.Op)
		return nil
	}

	if inst.Write != sem.NullPlace {
		lc.mem = lc.f.Store(lc.ctrl, lc.mem, lc.places[inst.Write], result)
	}

	return result
}

// LowerSemFunc turns a checked, pruned SemFunc into a Spindle graph
// (spec.md §4.6): every place becomes an ALLOCA; every block becomes
// a REGION/memory-PHI pair, populated in two phases since a block's
// predecessors (needed for the REGION's inputs) are only known once
// every block that can jump to it has been walked.
func LowerSemFunc(ctx *Context, f *sem.Func) *Func {
	sbFunc := ctx.BeginFunc()

	start := sbFunc.NewStart()
	startCtrl := sbFunc.StartCtrl(start)
	startMem := sbFunc.StartMem(start)

	places := make([]*Node, f.NumPlaces)
	for i := range places {
		places[i] = sbFunc.Alloca()
	}

	blocks := map[*sem.Block]*blockData{}
	f.Blocks(func(b *sem.Block) {
		blocks[b] = &blockData{
			region: sbFunc.Region(),
			memPhi: sbFunc.Phi(),
		}
	})

	lc := &lowerCtx{f: sbFunc, blocks: blocks, places: places}

	f.Blocks(func(b *sem.Block) {
		bd := blocks[b]

		lc.ctrl = bd.region
		lc.mem = bd.memPhi
		lc.hadReturn = false

		for i := range b.Code {
			lc.lowerInst(&b.Code[i])
		}

		if len(b.Successors()) == 0 && !lc.hadReturn {
			lc.pushFuncExit(lc.ctrl, lc.mem, sbFunc.Null())
		}
	})

	blocks[f.CFG].pushEntry(startCtrl, startMem)

	f.Blocks(func(b *sem.Block) {
		bd := blocks[b]
		sbFunc.SetRegionIns(bd.region, bd.ctrlIn)
		sbFunc.SetPhiIns(bd.memPhi, bd.region, bd.memIn)
	})

	endRegion := sbFunc.Region()
	endMem := sbFunc.Phi()
	endVal := sbFunc.Phi()

	sbFunc.SetRegionIns(endRegion, lc.endCtrl)
	sbFunc.SetPhiIns(endMem, endRegion, lc.endMem)
	sbFunc.SetPhiIns(endVal, endRegion, lc.endVal)

	sbFunc.NewEnd(endRegion, sbFunc.MemEscape(endMem), endVal)

	FinishFunc(sbFunc)

	return sbFunc
}
