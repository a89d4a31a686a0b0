// Package diag formats diagnostics the way spec.md §6/§7 requires:
//
//	<path>(<line>): error: <line of source>
//	                      ^ <message>
//
// with the caret aligned under the offending token.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/aledsdavies/spindlec/internal/token"
)

// Diagnostic is a single fatal compiler error, carried as data (the
// teacher's runtime/parser.ParseError shape) rather than formatted
// inline at the point of detection.
type Diagnostic struct {
	Path    string
	Source  []byte
	Token   token.Token
	Message string

	// Suggestion, if non-empty, is appended as "(did you mean 'x'?)".
	Suggestion string
}

// New builds a Diagnostic for tok with a formatted message.
func New(path string, source []byte, tok token.Token, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Path:    path,
		Source:  source,
		Token:   tok,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithSuggestion attaches a "did you mean" hint and returns d for chaining.
func (d *Diagnostic) WithSuggestion(name string) *Diagnostic {
	d.Suggestion = name
	return d
}

// lineSlice returns the full source line containing tok, and the
// column offset (in bytes) of tok within that line. It reproduces
// front/error.c's scan-backward-to-newline, then skip-leading-space
// algorithm exactly.
func lineSlice(source []byte, tok token.Token) (line []byte, col int) {
	start := tok.Start
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	for start < len(source) && isSpace(source[start]) {
		start++
	}

	end := start
	for end < len(source) && source[end] != '\n' && source[end] != '\r' {
		end++
	}

	return source[start:end], tok.Start - start
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\f'
}

// Format writes the diagnostic in spec.md's caret format to w.
func (d *Diagnostic) Format(w io.Writer) {
	line, col := lineSlice(d.Source, d.Token)

	prefix := fmt.Sprintf("%s(%d): error: ", d.Path, d.Token.Line)
	fmt.Fprintf(w, "%s%s\n", prefix, line)

	pad := strings.Repeat(" ", len(prefix)+col)
	msg := d.Message
	if d.Suggestion != "" {
		msg = fmt.Sprintf("%s (did you mean '%s'?)", msg, d.Suggestion)
	}
	fmt.Fprintf(w, "%s^ %s\n", pad, msg)
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	d.Format(&b)
	return strings.TrimRight(b.String(), "\n")
}
