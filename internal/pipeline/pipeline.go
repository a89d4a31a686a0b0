// Package pipeline wires the compiler stages together: lex, parse,
// check, prune, lower, optimize. It is the in-process equivalent of
// spec.md §1's "top-level command-line driver that wires lexing →
// parsing → checking → lowering → optimization → GraphViz dump",
// which spec.md explicitly keeps out of scope for its hard engineering
// but still requires to exist; SPEC_FULL.md §2 grounds it on the
// teacher's habit of threading a *slog.Logger through stage
// constructors (lexer.NewLexer, runtime/lexer).
package pipeline

import (
	"log/slog"

	"github.com/aledsdavies/spindlec/internal/cache"
	"github.com/aledsdavies/spindlec/internal/diag"
	"github.com/aledsdavies/spindlec/internal/lexer"
	"github.com/aledsdavies/spindlec/internal/parser"
	"github.com/aledsdavies/spindlec/internal/reach"
	"github.com/aledsdavies/spindlec/internal/sem"
	"github.com/aledsdavies/spindlec/internal/spindle"
)

// Options configures a single Run.
type Options struct {
	Logger   *slog.Logger
	Optimize bool
	Cache    *cache.Store // nil disables the build cache
}

// Result carries every stage's frozen output, for the CLI to dump.
type Result struct {
	Tree    *parser.ParseTree
	Func    *sem.Func
	Spindle *spindle.Func
}

// Run executes the full pipeline over source, returning the first
// diagnostic encountered (lex errors surface as a parse diagnostic at
// the offending token, matching spec.md §4.1's "no separate lex-error
// diagnostic path").
func Run(path string, source []byte, opts Options) (*Result, *diag.Diagnostic) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Cache != nil {
		if tree, fn, hit, err := opts.Cache.Get(cache.Digest(source)); err == nil && hit {
			logger.Debug("cache hit", "path", path)
			return finishFromCheckedFunc(logger, opts, path, source, tree, fn)
		}
	}

	tokens := lexer.Lex(source)

	tree, d := parser.Parse(path, source, tokens, parser.WithLogger(logger))
	if d != nil {
		return nil, d
	}

	fn, d := sem.Check(path, source, tree, logger)
	if d != nil {
		return nil, d
	}

	if opts.Cache != nil {
		if err := opts.Cache.Put(cache.Digest(source), tree, fn); err != nil {
			logger.Debug("cache write failed", "path", path, "error", err)
		}
	}

	return finishFromCheckedFunc(logger, opts, path, source, tree, fn)
}

func finishFromCheckedFunc(logger *slog.Logger, opts Options, path string, source []byte, tree *parser.ParseTree, fn *sem.Func) (*Result, *diag.Diagnostic) {
	if d := reach.Prune(path, source, fn); d != nil {
		return nil, d
	}

	ctx := spindle.NewContext()
	sbFunc := spindle.LowerSemFunc(ctx, fn)

	if opts.Optimize {
		spindle.Opt(ctx, sbFunc)
	}

	logger.Debug("pipeline complete", "path", path)

	return &Result{Tree: tree, Func: fn, Spindle: sbFunc}, nil
}

