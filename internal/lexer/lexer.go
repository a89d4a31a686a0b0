// Package lexer turns source bytes into a flat token stream.
//
// The scan is a single pass with no lookahead beyond the current byte:
// skip whitespace (counting newlines), skip "//" line comments, then
// classify the next byte. This mirrors the original front end's
// front/lexer.c rather than a generated scanner — nothing in the
// reference pack lexes a language this small with a library.
package lexer

import (
	"log/slog"

	"github.com/aledsdavies/spindlec/internal/token"
)

// ASCII classification tables, built once at init time the way the
// teacher's runtime/lexer builds its single-character lookup tables.
var (
	isDigit     [128]bool
	isIdentPart [128]bool
	isIdentHead [128]bool
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isDigit[i] = ch >= '0' && ch <= '9'
		isIdentHead[i] = ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
		isIdentPart[i] = isIdentHead[i] || isDigit[i]
	}
}

func classify(ch byte) (digit, identHead, identPart bool) {
	if ch >= 128 {
		return false, false, false
	}
	return isDigit[ch], isIdentHead[ch], isIdentPart[ch]
}

// Lexer scans a fixed source buffer into tokens.
type Lexer struct {
	src    []byte
	pos    int
	line   int
	logger *slog.Logger
}

// New creates a Lexer over src. A nil logger falls back to slog.Default().
func New(src []byte, logger *slog.Logger) *Lexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lexer{src: src, pos: 0, line: 1, logger: logger}
}

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) byteAt(offset int) byte {
	idx := l.pos + offset
	if idx >= len(l.src) {
		return 0
	}
	return l.src[idx]
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\f' || ch == '\n'
}

func (l *Lexer) skipTrivia() {
	for {
		for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
			if l.src[l.pos] == '\n' {
				l.line++
			}
			l.pos++
		}

		if l.peekByte() == '/' && l.byteAt(1) == '/' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}

		break
	}
}

// Lex scans the entire buffer and returns the token stream, terminated
// by a single EOF token. The lexer never fails (spec.md §7: "Lex
// error: currently none; lexer is total").
func (l *Lexer) Lex() []token.Token {
	var tokens []token.Token

	for {
		l.skipTrivia()

		if l.pos >= len(l.src) {
			break
		}

		start := l.pos
		startLine := l.line
		ch := l.src[l.pos]

		digit, identHead, _ := classify(ch)

		switch {
		case digit:
			l.pos++
			for {
				d, _, _ := classify(l.peekByte())
				if !d {
					break
				}
				l.pos++
			}
			tokens = append(tokens, token.Token{Kind: token.INTEGER, Start: start, Length: l.pos - start, Line: startLine})

		case identHead:
			l.pos++
			for {
				_, _, part := classify(l.peekByte())
				if !part {
					break
				}
				l.pos++
			}
			text := string(l.src[start:l.pos])
			kind := token.IDENTIFIER
			if kw, ok := token.LookupKeyword(text); ok {
				kind = kw
			}
			tokens = append(tokens, token.Token{Kind: kind, Start: start, Length: l.pos - start, Line: startLine})

		default:
			l.pos++
			tokens = append(tokens, token.Token{Kind: token.Punct(ch), Start: start, Length: 1, Line: startLine})
		}
	}

	tokens = append(tokens, token.Token{Kind: token.EOF, Start: l.pos, Length: 0, Line: l.line})

	l.logger.Debug("lex complete", "tokens", len(tokens), "lines", l.line)

	return tokens
}

// Lex is a convenience wrapper for one-shot lexing without a logger.
func Lex(src []byte) []token.Token {
	return New(src, nil).Lex()
}
