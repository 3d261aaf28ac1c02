package polish

import (
	"strconv"
	"strings"
)

// Token is a token of an expression. The same Token values are shared by the
// token stream, compiled notations, and step descriptors. ID is a stable
// handle for correlating them: it is the token's index in the stream returned
// by Tokenize.
type Token struct {
	ID   int
	Kind TokenKind
	// Text is the matched text. For function calls, it is the function name.
	Text string
	// Match holds the raw submatches of the grammar rule.
	Match []string
	// Pos and End are the byte offsets of the token in the input.
	Pos, End int
	// Params holds one notation per argument of a function call token. The
	// notation compiler fills it; compiling the same tokens again replaces it.
	Params [][]*Token
}

func (t *Token) String() string {
	return t.Kind.String() + ":" + strconv.Quote(t.Text) + "@" + strconv.Itoa(t.Pos)
}

// TokenKind is the kind of a token.
type TokenKind int8

const (
	KindNone TokenKind = iota
	// KindNumber is a signed numeric literal.
	KindNumber
	// KindVariable is the name of a constant.
	KindVariable
	// KindFuncCall is a function name. It is always followed by
	// KindOpenBracket.
	KindFuncCall
	// KindOperator is a binary operator.
	KindOperator
	// KindOpenBracket is (.
	KindOpenBracket
	// KindCloseBracket is ).
	KindCloseBracket
	// KindSeparator is the , between function arguments.
	KindSeparator
)

var kindnames = [...]string{
	KindNone:         "None",
	KindNumber:       "number",
	KindVariable:     "variable",
	KindFuncCall:     "funcCall",
	KindOperator:     "operator",
	KindOpenBracket:  "openBracket",
	KindCloseBracket: "closeBracket",
	KindSeparator:    "argumentSeparator",
}

func (k TokenKind) String() string {
	if k < 0 || int(k) >= len(kindnames) {
		return "TokenKind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindnames[k]
}

// kindOf gets the token kind for a grammar token kind name.
func kindOf(name string) TokenKind {
	for k, v := range kindnames {
		if k != 0 && v == name {
			return TokenKind(k)
		}
	}
	return KindNone
}

// Format writes the texts of tokens separated by spaces. Function calls are
// written with their parameters in brackets.
func Format(tokens []*Token) string {
	var b strings.Builder
	format(&b, tokens)
	return b.String()
}

func format(b *strings.Builder, tokens []*Token) {
	for i, tok := range tokens {
		if i != 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(tok.Text))
		if tok.Kind != KindFuncCall {
			continue
		}
		b.WriteByte('[')
		for j, p := range tok.Params {
			if j != 0 {
				b.WriteString(", ")
			}
			format(b, p)
		}
		b.WriteByte(']')
	}
}
