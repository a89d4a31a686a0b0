// Package sem lowers a parse tree into a control-flow graph of
// three-address instructions over abstract memory "places" (spec.md
// §3, §4.3).
package sem

import (
	"fmt"
	"io"

	"github.com/aledsdavies/spindlec/internal/token"
)

// Place is an abstract, SSA-unique memory cell index introduced by the
// checker and later lowered to an ALLOCA in Spindle.
type Place uint32

// NullPlace is the sentinel meaning "no write".
const NullPlace Place = 0xffffffff

// Op identifies a SemInst's operation.
type Op int

const (
	OpUninitialized Op = iota
	OpIntegerConst
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpCopy
	OpGoto
	OpBranch
	OpReturn

	numOps
)

var opLabel = [numOps]string{
	OpUninitialized: "!!uninitialized!!",
	OpIntegerConst:  "INTEGER_CONST",
	OpAdd:           "ADD",
	OpSub:           "SUB",
	OpMul:           "MUL",
	OpDiv:           "DIV",
	OpCopy:          "COPY",
	OpGoto:          "GOTO",
	OpBranch:        "BRANCH",
	OpReturn:        "RETURN",
}

func (op Op) String() string {
	if op >= 0 && int(op) < len(opLabel) {
		return opLabel[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// IsTerminator reports whether op ends a block.
func (op Op) IsTerminator() bool {
	return op == OpGoto || op == OpBranch || op == OpReturn
}

// BranchTargets is the payload of a BRANCH instruction's Data field:
// the then- and else-block successors, in that order.
type BranchTargets struct {
	Then *Block
	Else *Block
}

// Inst is one instruction within a Block: up to 4 reads, an optional
// write, and an opaque payload (the literal value of an INTEGER_CONST,
// the target of a GOTO, the BranchTargets of a BRANCH).
type Inst struct {
	Op    Op
	Token token.Token

	Reads    [4]Place
	NumReads int

	Write Place

	Data any
}

// Block is a straight-line run of instructions, optionally ending in a
// terminator (GOTO/BRANCH/RETURN); a block with no terminator is a
// function exit. Blocks form a singly-linked list in emission order.
type Block struct {
	ID               int
	Next             *Block
	Code             []Inst
	ContainsUserCode bool

	// MarkToken is the token of the statement whose mark frame stamped
	// ContainsUserCode on this block. It is set even when the statement
	// never appends an Inst (e.g. an empty nested block), so a
	// reachability diagnostic always has a real source location to
	// point at instead of falling back to a zero Token.
	MarkToken token.Token
}

// Terminator returns the block's terminating instruction, or nil if
// the block has none (i.e. it is a function exit).
func (b *Block) Terminator() *Inst {
	if len(b.Code) == 0 {
		return nil
	}
	last := &b.Code[len(b.Code)-1]
	if !last.Op.IsTerminator() {
		return nil
	}
	return last
}

// Successors returns the block's CFG successors, derived from its
// terminator (spec.md §4.4): none, one (GOTO), or two (BRANCH, in
// [then, else] order).
func (b *Block) Successors() []*Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	switch term.Op {
	case OpGoto:
		return []*Block{term.Data.(*Block)}
	case OpBranch:
		bt := term.Data.(BranchTargets)
		return []*Block{bt.Then, bt.Else}
	default:
		return nil
	}
}

// Func is a function-level IR unit: a CFG of blocks in emission order,
// and a table of abstract places (indexed by Place).
type Func struct {
	CFG       *Block
	NumPlaces int
}

// Blocks iterates the CFG in emission order.
func (f *Func) Blocks(yield func(*Block)) {
	for b := f.CFG; b != nil; b = b.Next {
		yield(b)
	}
}

// assignBlockIDs numbers blocks by CFG order, used by Print (spec.md
// §4.4's "Assigns each block an id by CFG-order traversal").
func assignBlockIDs(f *Func) {
	id := 0
	f.Blocks(func(b *Block) {
		b.ID = id
		id++
	})
}

// Print writes the per-function textual dump specified in spec.md §6:
//
//	bb_<id>:
//	  _<write> = <op> _<r0>, _<r1>[, ...] [<trailing data>]
func Print(w io.Writer, f *Func) {
	assignBlockIDs(f)

	f.Blocks(func(b *Block) {
		fmt.Fprintf(w, "bb_%d:\n", b.ID)

		for _, inst := range b.Code {
			fmt.Fprint(w, "  ")

			if inst.Write != NullPlace {
				fmt.Fprintf(w, "_%-3d = ", inst.Write)
			} else {
				fmt.Fprint(w, "       ")
			}

			fmt.Fprintf(w, "%s ", inst.Op)

			for i := 0; i < inst.NumReads; i++ {
				if i > 0 {
					fmt.Fprint(w, ", ")
				}
				fmt.Fprintf(w, "_%d", inst.Reads[i])
			}

			switch inst.Op {
			case OpIntegerConst:
				fmt.Fprintf(w, "%d", inst.Data.(uint64))
			case OpGoto:
				fmt.Fprintf(w, "bb_%d", inst.Data.(*Block).ID)
			case OpBranch:
				bt := inst.Data.(BranchTargets)
				fmt.Fprintf(w, " [bb_%d, bb_%d]", bt.Then.ID, bt.Else.ID)
			}

			fmt.Fprintln(w)
		}
	})
}
