// Package cache implements the content-addressed build cache of
// SPEC_FULL.md §5: a BLAKE2b-256 digest of the source text keys a
// CBOR-encoded snapshot of the parse tree and checked CFG, so the CLI
// can skip the lexer, parser, and checker on an unchanged file and go
// on with reachability pruning and IR lowering. It is purely
// a CLI-layer optimization — disabling it never changes a build's
// result.
package cache

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/aledsdavies/spindlec/internal/parser"
	"github.com/aledsdavies/spindlec/internal/sem"
	"github.com/aledsdavies/spindlec/internal/token"
)

// Key is the content hash of a source file, hex-encoded for use as a
// filename.
type Key string

// Digest computes the cache key for source.
func Digest(source []byte) Key {
	sum := blake2b.Sum256(source)
	return Key(hex.EncodeToString(sum[:]))
}

// snapshotInst is sem.Inst with its block-pointer payloads (GOTO's
// target, BRANCH's then/else) rewritten as indices into snapshotFunc's
// Blocks slice. sem.Func's CFG can contain back edges (a while loop's
// body jumps to a block earlier in emission order), so encoding the
// live *sem.Block pointers directly would walk the same cycle forever;
// indices make the graph a plain tree for encoding purposes, the same
// trick the parse tree already uses for its own backward-navigation.
type snapshotInst struct {
	Op    sem.Op
	Token tokenSnapshot

	Reads    [4]sem.Place
	NumReads int
	Write    sem.Place

	IntegerConst uint64
	GotoTarget   int // -1 if Op != OpGoto
	BranchThen   int // -1 if Op != OpBranch
	BranchElse   int // -1 if Op != OpBranch
}

type tokenSnapshot struct {
	Kind   int
	Start  int
	Length int
	Line   int
}

type snapshotBlock struct {
	ContainsUserCode bool
	MarkToken        tokenSnapshot
	Code             []snapshotInst
}

type snapshotFunc struct {
	NumPlaces int
	Blocks    []snapshotBlock
}

// entry is the on-disk cached artifact: everything the driver needs
// to skip re-running the lexer/parser/checker for an unchanged file.
type entry struct {
	Tree *parser.ParseTree
	Func snapshotFunc
}

func tokenFromSnapshot(ts tokenSnapshot) token.Token {
	return token.Token{
		Kind:   token.Kind(ts.Kind),
		Start:  ts.Start,
		Length: ts.Length,
		Line:   ts.Line,
	}
}

// toSnapshot flattens fn's CFG into index-addressed form.
func toSnapshot(fn *sem.Func) snapshotFunc {
	index := map[*sem.Block]int{}
	i := 0
	fn.Blocks(func(b *sem.Block) {
		index[b] = i
		i++
	})

	snap := snapshotFunc{NumPlaces: fn.NumPlaces}

	fn.Blocks(func(b *sem.Block) {
		sb := snapshotBlock{
			ContainsUserCode: b.ContainsUserCode,
			MarkToken: tokenSnapshot{
				Kind:   int(b.MarkToken.Kind),
				Start:  b.MarkToken.Start,
				Length: b.MarkToken.Length,
				Line:   b.MarkToken.Line,
			},
		}

		for _, inst := range b.Code {
			si := snapshotInst{
				Op: inst.Op,
				Token: tokenSnapshot{
					Kind:   int(inst.Token.Kind),
					Start:  inst.Token.Start,
					Length: inst.Token.Length,
					Line:   inst.Token.Line,
				},
				Reads:      inst.Reads,
				NumReads:   inst.NumReads,
				Write:      inst.Write,
				GotoTarget: -1,
				BranchThen: -1,
				BranchElse: -1,
			}

			switch inst.Op {
			case sem.OpIntegerConst:
				si.IntegerConst = inst.Data.(uint64)
			case sem.OpGoto:
				si.GotoTarget = index[inst.Data.(*sem.Block)]
			case sem.OpBranch:
				targets := inst.Data.(sem.BranchTargets)
				si.BranchThen = index[targets.Then]
				si.BranchElse = index[targets.Else]
			}

			sb.Code = append(sb.Code, si)
		}

		snap.Blocks = append(snap.Blocks, sb)
	})

	return snap
}

// fromSnapshot rebuilds a live, pointer-linked sem.Func from a flat
// snapshot, re-materializing the block linked list and patching every
// GOTO/BRANCH back-reference now that every block exists.
func fromSnapshot(snap snapshotFunc) *sem.Func {
	blocks := make([]*sem.Block, len(snap.Blocks))
	for i := range blocks {
		blocks[i] = &sem.Block{
			ContainsUserCode: snap.Blocks[i].ContainsUserCode,
			MarkToken:        tokenFromSnapshot(snap.Blocks[i].MarkToken),
		}
	}
	for i := 0; i < len(blocks)-1; i++ {
		blocks[i].Next = blocks[i+1]
	}

	for i, sb := range snap.Blocks {
		for _, si := range sb.Code {
			inst := sem.Inst{
				Op:       si.Op,
				Token:    tokenFromSnapshot(si.Token),
				Reads:    si.Reads,
				NumReads: si.NumReads,
				Write:    si.Write,
			}

			switch si.Op {
			case sem.OpIntegerConst:
				inst.Data = si.IntegerConst
			case sem.OpGoto:
				inst.Data = blocks[si.GotoTarget]
			case sem.OpBranch:
				inst.Data = sem.BranchTargets{Then: blocks[si.BranchThen], Else: blocks[si.BranchElse]}
			}

			blocks[i].Code = append(blocks[i].Code, inst)
		}
	}

	var cfg *sem.Block
	if len(blocks) > 0 {
		cfg = blocks[0]
	}

	return &sem.Func{CFG: cfg, NumPlaces: snap.NumPlaces}
}

// Store reads and writes entries under dir, one CBOR file per key.
type Store struct {
	dir string
}

// Open prepares a Store rooted at dir, creating it if necessary.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(key Key) string {
	return filepath.Join(s.dir, string(key)+".cbor")
}

// Get loads the cached tree/func pair for key, if present.
func (s *Store) Get(key Key) (*parser.ParseTree, *sem.Func, bool, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, fmt.Errorf("cache: reading entry %s: %w", key, err)
	}

	var e entry
	if err := cbor.Unmarshal(raw, &e); err != nil {
		// A corrupt cache entry is never fatal: fall back to
		// recomputing it, the same "cache is never authoritative"
		// guarantee SPEC_FULL.md §5 requires.
		return nil, nil, false, nil
	}

	return e.Tree, fromSnapshot(e.Func), true, nil
}

// Put stores tree/fn under key.
func (s *Store) Put(key Key, tree *parser.ParseTree, fn *sem.Func) error {
	raw, err := cbor.Marshal(entry{Tree: tree, Func: toSnapshot(fn)})
	if err != nil {
		return fmt.Errorf("cache: encoding entry %s: %w", key, err)
	}

	if err := os.WriteFile(s.path(key), raw, 0o644); err != nil {
		return fmt.Errorf("cache: writing entry %s: %w", key, err)
	}

	return nil
}
