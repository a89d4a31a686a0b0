// Package reach implements the reachability / dead-block elimination
// pass of spec.md §4.4: it walks the checker's CFG from the entry
// block, splices out every block the walk never reaches, and fails
// with a diagnostic if a removed block held user code.
package reach

import (
	"github.com/aledsdavies/spindlec/internal/diag"
	"github.com/aledsdavies/spindlec/internal/sem"
)

// Prune removes every block in f.CFG that the entry block cannot
// reach, in place. path and source are only used to format the
// diagnostic if a removed block contained user code.
func Prune(path string, source []byte, f *sem.Func) *diag.Diagnostic {
	reachable := walkReachable(f.CFG)

	var (
		newHead *sem.Block
		tail    *sem.Block
	)

	for b := f.CFG; b != nil; b = b.Next {
		if !reachable[b] {
			if b.ContainsUserCode {
				return userCodeDiagnostic(path, source, b)
			}
			continue
		}

		if newHead == nil {
			newHead = b
		} else {
			tail.Next = b
		}
		tail = b
	}

	if tail != nil {
		tail.Next = nil
	}
	f.CFG = newHead

	return nil
}

// walkReachable does an explicit-stack (no host recursion, matching
// the rest of this checker's iterative style) traversal of the CFG
// from its entry block, following Successors.
func walkReachable(entry *sem.Block) map[*sem.Block]bool {
	visited := map[*sem.Block]bool{}
	if entry == nil {
		return visited
	}

	stack := []*sem.Block{entry}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[b] {
			continue
		}
		visited[b] = true

		for _, s := range b.Successors() {
			if !visited[s] {
				stack = append(stack, s)
			}
		}
	}

	return visited
}

// userCodeDiagnostic reports "this code is unreachable" at the first
// instruction's token in the removed block, or at the token of the
// statement that marked the block if it never emitted an Inst (e.g. an
// empty nested block) (spec.md §7's Reachability error entry).
func userCodeDiagnostic(path string, source []byte, b *sem.Block) *diag.Diagnostic {
	tok := b.MarkToken
	if len(b.Code) > 0 {
		tok = b.Code[0].Token
	}
	return diag.New(path, source, tok, "this code is unreachable")
}
