package sem

import (
	"log/slog"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/aledsdavies/spindlec/internal/diag"
	"github.com/aledsdavies/spindlec/internal/invariant"
	"github.com/aledsdavies/spindlec/internal/parser"
	"github.com/aledsdavies/spindlec/internal/token"
)

// symbolEntry is one binding in a scope's symbol table: a linked list,
// the way the original front end's SymbolTable is (with a TODO to
// switch to a hash map once scopes get large, which they never do in
// this language).
type symbolEntry struct {
	next  *symbolEntry
	name  string
	place Place
}

type scope struct {
	parent *scope
	head   *symbolEntry
}

func (s *scope) find(name string) (Place, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		for e := sc.head; e != nil; e = e.next {
			if e.name == name {
				return e.place, true
			}
		}
	}
	return NullPlace, false
}

// declaredInScope reports whether name is declared directly in s
// (not an ancestor), for shadowing checks.
func (s *scope) declaredInScope(name string) bool {
	for e := s.head; e != nil; e = e.next {
		if e.name == name {
			return true
		}
	}
	return false
}

func (s *scope) add(name string, place Place) {
	s.head = &symbolEntry{next: s.head, name: name, place: place}
}

// allVisibleNames collects every name visible from s, used to build
// "did you mean" suggestions on an undeclared-symbol error.
func (s *scope) allVisibleNames() []string {
	var names []string
	for sc := s; sc != nil; sc = sc.parent {
		for e := sc.head; e != nil; e = e.next {
			names = append(names, e.name)
		}
	}
	return names
}

// checkItem is a tree_stack frame: a stage index into the handler for
// node.Kind, plus a per-kind continuation payload (populated at stage
// 0, read back in later stages) — the Go equivalent of the original
// CheckItem's tagged union.
type checkItem struct {
	stage     int
	nodeIndex int
	data      any

	// mark, when set, is a bare "this statement begins here" frame:
	// it stamps ContainsUserCode on whatever block is current at the
	// moment it is popped, then is discarded without dispatch. Blocks
	// the checker synthesizes purely for control-flow joins are never
	// stamped this way (spec.md §4.4).
	mark bool
}

type blockFrame struct {
	initialPlaceDepth int
}

type ifFrame struct {
	condPlace Place
	condTail  *Block
	thenHead  *Block
	thenTail  *Block
	elseHead  *Block
}

type whileFrame struct {
	condPlace Place
	entryHead *Block
	entryTail *Block
	bodyHead  *Block
}

type checker struct {
	path   string
	source []byte
	tree   *parser.ParseTree
	logger *slog.Logger

	treeStack  []checkItem
	placeStack []Place
	numPlaces  int

	scope        *scope
	currentBlock *Block

	diags []*diag.Diagnostic
}

// Check lowers tree into a Func, the iterative checker of spec.md
// §4.3. On failure it returns the first diagnostic encountered; the
// checker never attempts recovery.
func Check(path string, source []byte, tree *parser.ParseTree, logger *slog.Logger) (*Func, *diag.Diagnostic) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &checker{path: path, source: source, tree: tree, logger: logger}

	root := &Block{}
	c.currentBlock = root

	c.push(checkItem{nodeIndex: tree.RootIndex()})

	for len(c.treeStack) > 0 {
		item := c.pop()

		if item.mark {
			c.currentBlock.ContainsUserCode = true
			c.currentBlock.MarkToken = c.node(item.nodeIndex).Token
			continue
		}

		if !c.dispatch(item) {
			logger.Debug("check failed", "node", tree.Nodes[item.nodeIndex].Kind)
			return nil, c.diags[0]
		}
	}

	logger.Debug("check complete", "places", c.numPlaces)

	return &Func{CFG: root, NumPlaces: c.numPlaces}, nil
}

func (c *checker) push(item checkItem)      { c.treeStack = append(c.treeStack, item) }
func (c *checker) nextStage(item checkItem) { item.stage++; c.push(item) }

func (c *checker) pop() checkItem {
	item := c.treeStack[len(c.treeStack)-1]
	c.treeStack = c.treeStack[:len(c.treeStack)-1]
	return item
}

func (c *checker) pushPlace(p Place) { c.placeStack = append(c.placeStack, p) }

func (c *checker) popPlace() Place {
	invariant.Invariant(len(c.placeStack) > 0, "popPlace: place_stack underflow")
	p := c.placeStack[len(c.placeStack)-1]
	c.placeStack = c.placeStack[:len(c.placeStack)-1]
	return p
}

func (c *checker) newPlace() Place {
	p := Place(c.numPlaces)
	c.numPlaces++
	return p
}

func (c *checker) newBlock() *Block {
	b := &Block{}
	c.currentBlock.Next = b
	c.currentBlock = b
	return b
}

func (c *checker) errorf(tok token.Token, format string, args ...any) bool {
	c.diags = append(c.diags, diag.New(c.path, c.source, tok, format, args...))
	return false
}

func (c *checker) errorSuggest(tok token.Token, name string, candidates []string, format string, args ...any) bool {
	d := diag.New(c.path, c.source, tok, format, args...)
	if ranks := fuzzy.RankFindFold(name, candidates); len(ranks) > 0 {
		d = d.WithSuggestion(ranks[0].Target)
	}
	c.diags = append(c.diags, d)
	return false
}

func appendInst(b *Block, inst Inst) {
	b.Code = append(b.Code, inst)
}

// makeInstBase pops numReads places in the order the original
// make_inst_base does — assigning reads[numReads-1] first so that
// reads[0] ends up holding the operand pushed earliest (the lexically
// leftmost operand).
func (c *checker) makeInstBase(b *Block, write Place, op Op, numReads int, data any, tok token.Token) {
	inst := Inst{Op: op, Token: tok, NumReads: numReads, Write: write, Data: data}
	for i := numReads - 1; i >= 0; i-- {
		inst.Reads[i] = c.popPlace()
	}
	appendInst(b, inst)
}

// makeInst is makeInstBase against the current block, optionally
// allocating and pushing a fresh write place.
func (c *checker) makeInst(writes bool, op Op, numReads int, data any, tok token.Token) {
	write := NullPlace
	if writes {
		write = c.newPlace()
		c.pushPlace(write)
	}
	c.makeInstBase(c.currentBlock, write, op, numReads, data, tok)
}

func (c *checker) node(idx int) *parser.ParseNode {
	return &c.tree.Nodes[idx]
}

// children returns the indices of node's children, in left-to-right
// logical order.
func (c *checker) children(idx int) []int {
	n := c.node(idx)
	out := make([]int, n.NumChildren)
	it := parser.Children(c.tree.Nodes, idx)
	for it.More() {
		out[it.Index()] = it.Node()
		it.Next()
	}
	return out
}

func (c *checker) dispatch(item checkItem) bool {
	n := c.node(item.nodeIndex)

	switch n.Kind {
	case parser.NodeInteger:
		return c.checkInteger(item)
	case parser.NodeAdd:
		return c.checkBinary(item, OpAdd)
	case parser.NodeSub:
		return c.checkBinary(item, OpSub)
	case parser.NodeMul:
		return c.checkBinary(item, OpMul)
	case parser.NodeDiv:
		return c.checkBinary(item, OpDiv)
	case parser.NodeAssign:
		return c.checkAssign(item)
	case parser.NodeBlock:
		return c.checkBlock(item)
	case parser.NodeLocal:
		return c.checkLocal(item)
	case parser.NodeSymbol:
		return c.checkSymbol(item)
	case parser.NodeIf:
		return c.checkIf(item)
	case parser.NodeWhile:
		return c.checkWhile(item)
	case parser.NodeReturn:
		return c.checkReturn(item)
	case parser.NodeIdentifier, parser.NodeTypename:
		invariant.Invariant(false, "checker hit unreachable node kind %s", n.Kind)
		return false
	default:
		invariant.Invariant(false, "checker hit unexpected node kind %s", n.Kind)
		return false
	}
}

func (c *checker) checkInteger(item checkItem) bool {
	n := c.node(item.nodeIndex)
	text := n.Token.Text(c.source)

	var value uint64
	for i := 0; i < len(text); i++ {
		value = value*10 + uint64(text[i]-'0')
	}

	c.makeInst(true, OpIntegerConst, 0, value, n.Token)
	return true
}

func (c *checker) checkBinary(item checkItem, op Op) bool {
	switch item.stage {
	case 0:
		kids := c.children(item.nodeIndex)
		invariant.Invariant(len(kids) == 2, "binary op must have 2 children")
		c.nextStage(item)
		for i := len(kids) - 1; i >= 0; i-- {
			c.push(checkItem{nodeIndex: kids[i]})
		}
		return true
	case 1:
		c.makeInst(true, op, 2, nil, c.node(item.nodeIndex).Token)
		return true
	}
	invariant.Invariant(false, "bad stage %d in checkBinary", item.stage)
	return false
}

func canTakeAddress(kind parser.NodeKind) bool {
	return kind == parser.NodeSymbol
}

func (c *checker) checkAssign(item checkItem) bool {
	switch item.stage {
	case 0:
		kids := c.children(item.nodeIndex)
		invariant.Invariant(len(kids) == 2, "assign must have 2 children")

		if !canTakeAddress(c.node(kids[0]).Kind) {
			return c.errorf(c.node(kids[0]).Token, "cannot assign this value")
		}

		c.nextStage(item)
		for i := len(kids) - 1; i >= 0; i-- {
			c.push(checkItem{nodeIndex: kids[i]})
		}
		return true
	case 1:
		value := c.popPlace()
		dest := c.popPlace()
		c.pushPlace(value)
		c.makeInstBase(c.currentBlock, dest, OpCopy, 1, nil, c.node(item.nodeIndex).Token)
		c.pushPlace(value)
		return true
	}
	invariant.Invariant(false, "bad stage %d in checkAssign", item.stage)
	return false
}

func (c *checker) checkBlock(item checkItem) bool {
	switch item.stage {
	case 0:
		sc := &scope{parent: c.scope}
		c.scope = sc

		kids := c.children(item.nodeIndex)

		item.data = blockFrame{initialPlaceDepth: len(c.placeStack)}
		c.nextStage(item)

		// Each statement is preceded by a mark frame so that whichever
		// block happens to be current when the statement actually runs
		// (not when it is pushed — an earlier sibling may have opened
		// new blocks) gets ContainsUserCode stamped on it.
		for i := len(kids) - 1; i >= 0; i-- {
			c.push(checkItem{nodeIndex: kids[i]})
			c.push(checkItem{mark: true, nodeIndex: kids[i]})
		}
		return true
	case 1:
		frame := item.data.(blockFrame)
		c.placeStack = c.placeStack[:frame.initialPlaceDepth]
		c.scope = c.scope.parent
		return true
	}
	invariant.Invariant(false, "bad stage %d in checkBlock", item.stage)
	return false
}

// checkLocal implements spec.md §4.3's LOCAL lowering. A bare
// declaration (name, type) just binds a fresh place. A declaration
// with an initializer (name, type, expr) additionally evaluates expr
// and emits a COPY into the new place, the same shape checkAssign
// uses for plain assignment.
func (c *checker) checkLocal(item checkItem) bool {
	kids := c.children(item.nodeIndex)
	nameTok := c.node(kids[0]).Token
	name := nameTok.Text(c.source)

	switch item.stage {
	case 0:
		if c.scope.declaredInScope(name) {
			return c.errorf(nameTok, "this name clashes with an existing symbol")
		}

		if len(kids) == 2 {
			c.scope.add(name, c.newPlace())
			return true
		}

		c.nextStage(item)
		c.push(checkItem{nodeIndex: kids[2]})
		return true

	case 1:
		place := c.newPlace()
		c.makeInstBase(c.currentBlock, place, OpCopy, 1, nil, c.node(item.nodeIndex).Token)
		c.scope.add(name, place)
		return true
	}

	invariant.Invariant(false, "bad stage %d in checkLocal", item.stage)
	return false
}

func (c *checker) checkSymbol(item checkItem) bool {
	n := c.node(item.nodeIndex)
	name := n.Token.Text(c.source)

	place, ok := c.scope.find(name)
	if !ok {
		return c.errorSuggest(n.Token, name, c.scope.allVisibleNames(), "symbol does not exist in this scope")
	}

	c.pushPlace(place)
	return true
}

// checkIf implements spec.md §4.3's IF lowering:
//
//  1. Evaluate cond (falls into current block).
//  2. Create then_head; recurse on the then body.
//  3. Create else_head; emit BRANCH in the conditional's tail block
//     targeting (then_head, else_head). No else: a GOTO from then_tail
//     to else_head makes it the join. Else: recurse on else.
//  4. Create end; GOTO from then_tail and else_tail to end.
func (c *checker) checkIf(item checkItem) bool {
	kids := c.children(item.nodeIndex)
	tok := c.node(item.nodeIndex).Token

	switch item.stage {
	case 0:
		c.nextStage(item)
		c.push(checkItem{nodeIndex: kids[0]})
		return true

	case 1:
		frame := ifFrame{condPlace: c.popPlace(), condTail: c.currentBlock}
		frame.thenHead = c.newBlock()

		item.data = frame
		c.nextStage(item)
		c.push(checkItem{nodeIndex: kids[1]})
		return true

	case 2:
		frame := item.data.(ifFrame)
		frame.thenTail = c.currentBlock
		frame.elseHead = c.newBlock()

		appendInst(frame.condTail, Inst{
			Op: OpBranch, Token: tok, NumReads: 1, Reads: [4]Place{frame.condPlace}, Write: NullPlace,
			Data: BranchTargets{Then: frame.thenHead, Else: frame.elseHead},
		})

		if len(kids) == 2 {
			appendInst(frame.thenTail, Inst{Op: OpGoto, Token: tok, Write: NullPlace, Data: frame.elseHead})
			return true
		}

		item.data = frame
		c.nextStage(item)
		c.push(checkItem{nodeIndex: kids[2]})
		return true

	case 3:
		frame := item.data.(ifFrame)
		elseTail := c.currentBlock
		end := c.newBlock()

		appendInst(frame.thenTail, Inst{Op: OpGoto, Token: tok, Write: NullPlace, Data: end})
		appendInst(elseTail, Inst{Op: OpGoto, Token: tok, Write: NullPlace, Data: end})
		return true
	}

	invariant.Invariant(false, "bad stage %d in checkIf", item.stage)
	return false
}

// checkWhile implements spec.md §4.3's WHILE lowering:
//
//  1. Create entry_head; GOTO into it from the previous block.
//  2. Evaluate cond within entry_head.
//  3. Create body_head, recurse on body.
//  4. Create end_head. BRANCH at entry_tail (body_head, end_head).
//     GOTO from body_tail back to entry_head.
func (c *checker) checkWhile(item checkItem) bool {
	kids := c.children(item.nodeIndex)
	tok := c.node(item.nodeIndex).Token

	switch item.stage {
	case 0:
		prev := c.currentBlock
		entryHead := c.newBlock()
		appendInst(prev, Inst{Op: OpGoto, Token: tok, Write: NullPlace, Data: entryHead})

		item.data = whileFrame{entryHead: entryHead}
		c.nextStage(item)
		c.push(checkItem{nodeIndex: kids[0]})
		return true

	case 1:
		frame := item.data.(whileFrame)
		frame.condPlace = c.popPlace()
		frame.entryTail = c.currentBlock
		frame.bodyHead = c.newBlock()

		item.data = frame
		c.nextStage(item)
		c.push(checkItem{nodeIndex: kids[1]})
		return true

	case 2:
		frame := item.data.(whileFrame)
		bodyTail := c.currentBlock
		endHead := c.newBlock()

		appendInst(frame.entryTail, Inst{
			Op: OpBranch, Token: tok, NumReads: 1, Reads: [4]Place{frame.condPlace}, Write: NullPlace,
			Data: BranchTargets{Then: frame.bodyHead, Else: endHead},
		})
		appendInst(bodyTail, Inst{Op: OpGoto, Token: tok, Write: NullPlace, Data: frame.entryHead})
		return true
	}

	invariant.Invariant(false, "bad stage %d in checkWhile", item.stage)
	return false
}

// checkReturn emits RETURN then starts a fresh block, so that any
// lexically-following code in the same scope still has an emission
// target (spec.md §4.3); the reachability pass later deletes that
// block unless something reaches it.
func (c *checker) checkReturn(item checkItem) bool {
	n := c.node(item.nodeIndex)

	if n.NumChildren == 0 {
		c.makeInst(false, OpReturn, 0, nil, n.Token)
		c.newBlock()
		return true
	}

	switch item.stage {
	case 0:
		kids := c.children(item.nodeIndex)
		invariant.Invariant(len(kids) == 1, "return must have 0 or 1 children")
		c.nextStage(item)
		c.push(checkItem{nodeIndex: kids[0]})
		return true
	case 1:
		c.makeInst(false, OpReturn, 1, nil, n.Token)
		c.newBlock()
		return true
	}

	invariant.Invariant(false, "bad stage %d in checkReturn", item.stage)
	return false
}
