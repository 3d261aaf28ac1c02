package polish

import (
	"cmp"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/zephyrtronium/polish/tokenizer"
)

// base is the expression grammar without operators. Contexts clone it and add
// an operatorToken rule matching their registered operator symbols.
var base = func() *tokenizer.Tokenizer {
	t, err := tokenizer.New([]tokenizer.Rule{
		{
			Name:    "number",
			Pattern: tokenizer.MustSticky(`[-+]?\d+(\.\d*)?([eE][-+]?\d+)?`),
			Next:    []string{"operator"},
		},
		{
			// RE2 has no lookahead, so the pattern consumes the bracket and
			// the hook gives it back.
			Name:    "funcCall",
			Pattern: tokenizer.MustSticky(`([a-zA-Z_]\w*)\s*\(`),
			Next:    []string{"openBracket"},
			Hook: func(tok *tokenizer.Token, _ []*tokenizer.Token, _ string) error {
				tok.Text = tok.Match[1]
				tok.End = tok.Pos + len(tok.Match[1])
				return nil
			},
		},
		{
			Name:    "variable",
			Pattern: tokenizer.MustSticky(`[a-zA-Z_]\w*`),
			Next:    []string{"operator"},
		},
		{
			Name:    "openBracket",
			Pattern: tokenizer.MustSticky(`\s*\(\s*`),
			Next:    []string{"value"},
		},
		{
			Name:    "closeBracket",
			Pattern: tokenizer.MustSticky(`\s*\)\s*`),
			Next:    []string{"operator"},
		},
		{
			Name:    "argumentSeparator",
			Pattern: tokenizer.MustSticky(`,`),
			Next:    []string{"value"},
		},
		{
			Name:    "valueSpace",
			Pattern: tokenizer.MustSticky(`\s*`),
			Next:    []string{"openBracket", "closeBracket", "number", "funcCall", "variable"},
			Ignore:  true,
		},
		{
			Name:    "operatorSpace",
			Pattern: tokenizer.MustSticky(`\s*`),
			Next:    []string{"closeBracket", "argumentSeparator", "operatorToken"},
			Ignore:  true,
		},
	}, map[string][]string{
		"value":    {"valueSpace"},
		"operator": {"operatorSpace"},
	}, "value")
	if err != nil {
		panic(err)
	}
	return t.SetFinal("number", "variable", "closeBracket")
}()

// nomatch is a pattern which never matches, for grammars without operators.
const nomatch = `[^\x00-\x{10FFFF}]`

// grammar creates the tokenizer for a set of operators. Longer symbols are
// tried first so that e.g. << is not read as two <.
func grammar(ops map[string]Operator, log *slog.Logger) *tokenizer.Tokenizer {
	syms := make([]string, 0, len(ops))
	for k := range ops {
		syms = append(syms, k)
	}
	slices.SortFunc(syms, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	alts := make([]string, len(syms))
	for i, s := range syms {
		alts[i] = regexp.QuoteMeta(s)
	}
	pat := strings.Join(alts, "|")
	if pat == "" {
		pat = nomatch
	}
	t := base.Clone()
	err := t.AddRule(tokenizer.Rule{
		Name:    "operatorToken",
		Pattern: tokenizer.MustSticky(pat),
		Next:    []string{"value"},
		Alias:   "operator",
	})
	if err != nil {
		panic(err)
	}
	return t.SetLogger(log)
}

// Tokenize converts an expression to tokens using the context's grammar.
// Errors are *tokenizer.LexError for malformed input.
func (ctx *Context) Tokenize(src string) ([]*Token, error) {
	raw, err := ctx.lex.Parse(src)
	if err != nil {
		return nil, err
	}
	toks := make([]*Token, len(raw))
	for i, t := range raw {
		toks[i] = &Token{
			ID:    i,
			Kind:  kindOf(t.Kind),
			Text:  t.Text,
			Match: t.Match,
			Pos:   t.Pos,
			End:   t.End,
		}
	}
	ctx.log.Debug("tokenized", slog.String("src", src), slog.Int("tokens", len(toks)))
	return toks, nil
}
