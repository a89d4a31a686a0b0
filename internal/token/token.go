// Package token defines the lexical tokens produced by the lexer and
// consumed by the parser.
package token

// Kind identifies the lexical class of a Token. EOF, integers,
// identifiers, and keywords take the small dedicated values below;
// ASCII punctuation is encoded as its byte value plus 256 (see Punct),
// so a punctuation Kind is not numerically equal to its character.
type Kind int

const (
	EOF Kind = iota
	INTEGER
	IDENTIFIER

	KeywordIf
	KeywordElse
	KeywordWhile
	KeywordReturn
)

// Punct wraps an ASCII punctuation byte as a Kind, mirroring the C
// front end's "otherwise one-character token whose kind equals the
// byte" rule (spec.md §4.1).
func Punct(ch byte) Kind {
	return Kind(256 + int(ch))
}

// IsPunct reports whether k was produced by Punct, and returns the
// original byte.
func (k Kind) IsPunct() (byte, bool) {
	if int(k) >= 256 {
		return byte(int(k) - 256), true
	}
	return 0, false
}

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case INTEGER:
		return "INTEGER"
	case IDENTIFIER:
		return "IDENTIFIER"
	case KeywordIf:
		return "if"
	case KeywordElse:
		return "else"
	case KeywordWhile:
		return "while"
	case KeywordReturn:
		return "return"
	}
	if ch, ok := k.IsPunct(); ok {
		return string(ch)
	}
	return "UNKNOWN"
}

var keywords = map[string]Kind{
	"if":     KeywordIf,
	"else":   KeywordElse,
	"while":  KeywordWhile,
	"return": KeywordReturn,
}

// LookupKeyword returns the keyword Kind for ident, or (IDENTIFIER,
// false) if ident is not a keyword.
func LookupKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	if !ok {
		return IDENTIFIER, false
	}
	return k, true
}

// Token is a single lexical unit: its kind, its source span (byte
// offset + length into the original source), and the 1-based line of
// its first character.
type Token struct {
	Kind   Kind
	Start  int
	Length int
	Line   int
}

// Text returns the token's source slice out of src.
func (t Token) Text(src []byte) string {
	return string(src[t.Start : t.Start+t.Length])
}
