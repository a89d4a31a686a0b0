package parser

import (
	"log/slog"

	"github.com/aledsdavies/spindlec/internal/diag"
	"github.com/aledsdavies/spindlec/internal/token"
)

// stateKind enumerates the grammar continuations the driver processes.
// Each one carries exactly the state that would otherwise be locals of
// a recursive-descent call (spec.md §4.2, §9 "Iterative tree walks").
type stateKind int

const (
	statePrimary stateKind = iota
	stateBinary
	stateBinaryInfix
	stateSemicolon
	stateExpr
	stateBlock
	stateBlockStmt
	stateLocal
	stateIf
	stateElse
	stateWhile
	stateReturn
	stateComplete
)

type completeState struct {
	kind        NodeKind
	token       token.Token
	numChildren int
}

type blockStmtState struct {
	lbrace token.Token
	count  int
}

// state is a tagged union of parser continuations; only the field(s)
// relevant to kind are populated.
type state struct {
	kind stateKind

	binaryPrec int
	complete   completeState
	blockStmt  blockStmtState
	elseIfTok  token.Token
}

// Options configures parsing, the teaching repo's ParserOpt pattern.
type Options struct {
	Logger *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithLogger attaches a structured logger to the parse.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

type parser struct {
	path   string
	source []byte
	tokens []token.Token
	cur    int

	nodes []ParseNode
	stack []state

	errs []*diag.Diagnostic
}

// Parse lexes nothing itself — it consumes an already-produced token
// stream — and drives the grammar with an explicit stack until either
// the stack empties (success) or a production fails (parse error,
// reported via the returned diagnostic; no recovery is attempted).
func Parse(path string, source []byte, tokens []token.Token, opts ...Option) (*ParseTree, *diag.Diagnostic) {
	cfg := &Options{}
	for _, o := range opts {
		o(cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &parser{path: path, source: source, tokens: tokens}
	p.push(state{kind: stateBlock})

	for len(p.stack) > 0 {
		s := p.pop()
		if !p.handle(s) {
			logger.Debug("parse failed", "tokens_consumed", p.cur)
			if len(p.errs) > 0 {
				return nil, p.errs[0]
			}
			return nil, diag.New(path, source, p.peek(), "parse failed")
		}
	}

	logger.Debug("parse complete", "nodes", len(p.nodes))

	return &ParseTree{Source: source, Nodes: p.nodes}, nil
}

func (p *parser) push(s state)   { p.stack = append(p.stack, s) }
func (p *parser) pop() state {
	s := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return s
}

func (p *parser) peek() token.Token      { return p.tokens[p.cur] }
func (p *parser) peekN(offset int) token.Token {
	idx := p.cur + offset
	if idx >= len(p.tokens) {
		idx = len(p.tokens) - 1
	}
	return p.tokens[idx]
}

func (p *parser) lex() token.Token {
	t := p.peek()
	if p.cur < len(p.tokens)-1 {
		p.cur++
	}
	return t
}

func (p *parser) errorToken(t token.Token, format string, args ...any) {
	p.errs = append(p.errs, diag.New(p.path, p.source, t, format, args...))
}

func (p *parser) match(kind token.Kind, message string) bool {
	t := p.peek()
	if t.Kind == kind {
		p.lex()
		return true
	}
	p.errorToken(t, "%s", message)
	return false
}

// makeNode appends a new post-order node, computing SubtreeSize by
// walking back over the already-emitted numChildren siblings — the
// same backward scan as the original make_node.
func (p *parser) makeNode(kind NodeKind, tok token.Token, numChildren int) {
	n := ParseNode{Kind: kind, Token: tok, NumChildren: numChildren, SubtreeSize: 1}

	child := len(p.nodes) - 1
	for i := 0; i < numChildren; i++ {
		sts := p.nodes[child].SubtreeSize
		n.SubtreeSize += sts
		child -= sts
	}

	p.nodes = append(p.nodes, n)
}

// binaryPrec mirrors the C front end's binary_prec: assignment is made
// right-associative by lowering its effective precedence by one when
// queried while deciding whether to recurse into the right operand
// ("calling").
func binaryPrec(op token.Token, calling bool) int {
	i := 0
	if calling {
		i = 1
	}

	if ch, ok := op.Kind.IsPunct(); ok {
		switch ch {
		case '*', '/':
			return 20
		case '+', '-':
			return 10
		case '=':
			return 5 - i
		}
	}
	return 0
}

func binaryKind(op token.Token) NodeKind {
	if ch, ok := op.Kind.IsPunct(); ok {
		switch ch {
		case '*':
			return NodeMul
		case '/':
			return NodeDiv
		case '+':
			return NodeAdd
		case '-':
			return NodeSub
		case '=':
			return NodeAssign
		}
	}
	return NodeUninitialized
}

func canTakeAddress(kind NodeKind) bool {
	return kind == NodeSymbol
}

// handle processes one state frame, pushing continuations as needed.
// It returns false on a parse error (already recorded via errorToken).
func (p *parser) handle(s state) bool {
	switch s.kind {
	case statePrimary:
		switch p.peek().Kind {
		case token.IDENTIFIER:
			tok := p.lex()
			p.makeNode(NodeSymbol, tok, 0)
			return true
		case token.INTEGER:
			tok := p.lex()
			p.makeNode(NodeInteger, tok, 0)
			return true
		default:
			p.errorToken(p.peek(), "expected an expression")
			return false
		}

	case stateBinary:
		p.push(state{kind: stateBinaryInfix, binaryPrec: s.binaryPrec})
		p.push(state{kind: statePrimary})
		return true

	case stateBinaryInfix:
		if binaryPrec(p.peek(), false) > s.binaryPrec {
			op := p.lex()
			p.push(state{kind: stateBinaryInfix, binaryPrec: s.binaryPrec})
			p.push(state{kind: stateComplete, complete: completeState{kind: binaryKind(op), token: op, numChildren: 2}})
			p.push(state{kind: stateBinary, binaryPrec: binaryPrec(op, true)})
		}
		return true

	case stateComplete:
		p.makeNode(s.complete.kind, s.complete.token, s.complete.numChildren)
		return true

	case stateSemicolon:
		return p.match(token.Punct(';'), "ill-formed expression, consider adding a ';' here")

	case stateExpr:
		p.push(state{kind: stateBinary, binaryPrec: 0})
		return true

	case stateBlock:
		lbrace := p.peek()
		if !p.match(token.Punct('{'), "expected a block '{'") {
			return false
		}
		p.push(state{kind: stateBlockStmt, blockStmt: blockStmtState{lbrace: lbrace, count: 0}})
		return true

	case stateBlockStmt:
		return p.handleBlockStmt(s)

	case stateLocal:
		return p.handleLocal()

	case stateIf:
		ifTok := p.peek()
		if !p.match(token.KeywordIf, "expected an if statement") {
			return false
		}
		p.push(state{kind: stateElse, elseIfTok: ifTok})
		p.push(state{kind: stateBlock})
		p.push(state{kind: stateExpr})
		return true

	case stateElse:
		return p.handleElse(s)

	case stateWhile:
		whileTok := p.peek()
		if !p.match(token.KeywordWhile, "expected a while statement") {
			return false
		}
		p.push(state{kind: stateComplete, complete: completeState{kind: NodeWhile, token: whileTok, numChildren: 2}})
		p.push(state{kind: stateBlock})
		p.push(state{kind: stateExpr})
		return true

	case stateReturn:
		return p.handleReturn()
	}

	return false
}

func (p *parser) handleBlockStmt(s state) bool {
	if p.peek().Kind == token.Punct('}') {
		p.lex()
		p.makeNode(NodeBlock, s.blockStmt.lbrace, s.blockStmt.count)
		return true
	}

	if p.peek().Kind == token.EOF {
		p.errorToken(s.blockStmt.lbrace, "no matching '}' to close this block")
		return false
	}

	p.push(state{kind: stateBlockStmt, blockStmt: blockStmtState{lbrace: s.blockStmt.lbrace, count: s.blockStmt.count + 1}})

	switch p.peek().Kind {
	case token.Punct('{'):
		p.push(state{kind: stateBlock})
	case token.IDENTIFIER:
		p.push(state{kind: stateSemicolon})
		if p.peekN(1).Kind == token.Punct(':') {
			p.push(state{kind: stateLocal})
		} else {
			p.push(state{kind: stateExpr})
		}
	case token.KeywordIf:
		p.push(state{kind: stateIf})
	case token.KeywordWhile:
		p.push(state{kind: stateWhile})
	case token.KeywordReturn:
		p.push(state{kind: stateSemicolon})
		p.push(state{kind: stateReturn})
	default:
		p.push(state{kind: stateSemicolon})
		p.push(state{kind: stateExpr})
	}

	return true
}

func (p *parser) handleLocal() bool {
	name := p.peek()
	if !p.match(token.IDENTIFIER, "expected a local declaration") {
		return false
	}

	colon := p.peek()
	if !p.match(token.Punct(':'), "expected local declaration, consider adding a ':' here") {
		return false
	}

	typ := p.peek()
	if !p.match(token.IDENTIFIER, "expected a typename") {
		return false
	}

	p.makeNode(NodeIdentifier, name, 0)
	p.makeNode(NodeTypename, typ, 0)

	if p.peek().Kind == token.Punct('=') {
		p.lex()
		p.push(state{kind: stateComplete, complete: completeState{kind: NodeLocal, token: colon, numChildren: 3}})
		p.push(state{kind: stateExpr})
	} else {
		p.makeNode(NodeLocal, colon, 2)
	}

	return true
}

func (p *parser) handleElse(s state) bool {
	if p.peek().Kind == token.KeywordElse {
		p.lex()

		p.push(state{kind: stateComplete, complete: completeState{kind: NodeIf, token: s.elseIfTok, numChildren: 3}})

		switch p.peek().Kind {
		case token.KeywordIf:
			p.push(state{kind: stateIf})
		case token.Punct('{'):
			p.push(state{kind: stateBlock})
		default:
			p.errorToken(p.peek(), "an else clause must be followed by an if statement or a block")
			return false
		}
	} else {
		p.makeNode(NodeIf, s.elseIfTok, 2)
	}

	return true
}

func (p *parser) handleReturn() bool {
	returnTok := p.peek()
	if !p.match(token.KeywordReturn, "expected a return statement") {
		return false
	}

	if p.peek().Kind == token.Punct(';') {
		p.makeNode(NodeReturn, returnTok, 0)
		return true
	}

	p.push(state{kind: stateComplete, complete: completeState{kind: NodeReturn, token: returnTok, numChildren: 1}})
	p.push(state{kind: stateExpr})
	return true
}
