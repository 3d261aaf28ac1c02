// Package tokenizer implements a scanner driven by a graph of pattern rules.
//
// Each Rule names the rules or next-sets which may follow it. Parsing starts
// from an entry rule or set and, at every offset, takes the first reachable
// rule in declaration order whose pattern matches exactly at that offset.
// Patterns never scan forward, so every rule's pattern must be anchored at
// the beginning of text.
package tokenizer

import (
	"log/slog"
	"regexp"
	"regexp/syntax"
	"sort"
)

// DefaultSameIndexLimit is the number of consecutive matches without progress
// that Parse tolerates before reporting a StallError.
const DefaultSameIndexLimit = 100

// Rule is a syntax rule.
type Rule struct {
	// Name identifies the rule in Next lists and next-sets.
	Name string
	// Pattern must be anchored at the beginning of text. The tokenizer matches
	// it against the input starting at the current offset.
	Pattern *regexp.Regexp
	// Next lists the names of rules or next-sets which may follow the rule.
	Next []string
	// Hook, if not nil, is called after the rule matches. It may inspect the
	// tokens emitted so far, modify tok, and change the number of bytes
	// consumed by setting tok.End. A non-nil error ends parsing with a
	// LexError at tok.Pos.
	Hook Hook
	// Ignore suppresses emitting tokens for the rule. The rule still selects
	// the next reachable rules.
	Ignore bool
	// Alias, if not empty, is used as the Kind of emitted tokens instead of
	// Name.
	Alias string
}

// Hook is a side effect run when a rule matches.
type Hook func(tok *Token, tokens []*Token, input string) error

// Token is a matched piece of input.
type Token struct {
	// Kind is the alias of the matching rule, or its name if it has none.
	Kind string
	// Rule is the name of the matching rule.
	Rule string
	// Text is the matched text. Hooks may change it.
	Text string
	// Match holds the pattern's submatches. Match[0] is the raw match.
	Match []string
	// Pos and End are the byte offsets of the consumed input.
	Pos, End int
}

// Tokenizer is a configurable syntax graph. The zero value is not usable;
// create one with New.
type Tokenizer struct {
	rules  map[string]*Rule
	order  []string
	sets   map[string][]string
	snames []string
	final  map[string]bool
	entry  string
	log    *slog.Logger
}

// New creates a tokenizer from rules, named next-sets, and an entry point
// naming either a rule or a set. References between rules are checked when
// parsing, so rules may refer to rules added later.
func New(rules []Rule, sets map[string][]string, entry string) (*Tokenizer, error) {
	t := &Tokenizer{
		rules: make(map[string]*Rule, len(rules)),
		sets:  make(map[string][]string, len(sets)),
		entry: entry,
	}
	// Map iteration order is random; keep set names sorted so that
	// configuration errors are reported deterministically.
	names := make([]string, 0, len(sets))
	for k := range sets {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, r := range rules {
		if err := t.AddRule(r); err != nil {
			return nil, err
		}
	}
	for _, k := range names {
		t.AddNextSet(k, sets[k]...)
	}
	return t, nil
}

// AddRule adds a rule, replacing any existing rule with the same name. The
// rule's pattern must be anchored at the beginning of text.
func (t *Tokenizer) AddRule(r Rule) error {
	if r.Pattern == nil {
		return &ConfigError{Rule: r.Name, Msg: "rule has no pattern"}
	}
	if !anchored(r.Pattern) {
		return &ConfigError{Rule: r.Name, Msg: "pattern " + r.Pattern.String() + " is not anchored at the start of text"}
	}
	r.Next = append([]string(nil), r.Next...)
	if _, ok := t.rules[r.Name]; !ok {
		t.order = append(t.order, r.Name)
	}
	t.rules[r.Name] = &r
	return nil
}

// AddNextSet adds a named set of rule names, replacing any set with the same
// name. The order of names is the order in which rules are tried.
func (t *Tokenizer) AddNextSet(name string, names ...string) *Tokenizer {
	if _, ok := t.sets[name]; !ok {
		t.snames = append(t.snames, name)
	}
	t.sets[name] = append([]string(nil), names...)
	return t
}

// SetFinal declares the rules whose tokens may end non-empty input. With no
// final rules, any input that is consumed entirely is accepted.
func (t *Tokenizer) SetFinal(names ...string) *Tokenizer {
	t.final = make(map[string]bool, len(names))
	for _, name := range names {
		t.final[name] = true
	}
	return t
}

// SetLogger sets a logger which receives a debug record for every match.
func (t *Tokenizer) SetLogger(l *slog.Logger) *Tokenizer {
	t.log = l
	return t
}

// Rule returns a copy of the named rule.
func (t *Tokenizer) Rule(name string) (Rule, bool) {
	r, ok := t.rules[name]
	if !ok {
		return Rule{}, false
	}
	c := *r
	c.Next = append([]string(nil), r.Next...)
	return c, true
}

// Clone creates an independent copy of the grammar.
func (t *Tokenizer) Clone() *Tokenizer {
	c := &Tokenizer{
		rules:  make(map[string]*Rule, len(t.rules)),
		order:  append([]string(nil), t.order...),
		sets:   make(map[string][]string, len(t.sets)),
		snames: append([]string(nil), t.snames...),
		entry:  t.entry,
		log:    t.log,
	}
	for k := range t.rules {
		r, _ := t.Rule(k)
		c.rules[k] = &r
	}
	for k, v := range t.sets {
		c.sets[k] = append([]string(nil), v...)
	}
	if t.final != nil {
		c.final = make(map[string]bool, len(t.final))
		for k := range t.final {
			c.final[k] = true
		}
	}
	return c
}

// node is a rule resolved into the syntax graph.
type node struct {
	rule *Rule
	next []*node
}

// graph resolves every rule's Next list and returns the nodes reachable from
// the entry point.
func (t *Tokenizer) graph() ([]*node, error) {
	nodes := make(map[string]*node, len(t.rules))
	for _, name := range t.order {
		nodes[name] = &node{rule: t.rules[name]}
	}
	sets := make(map[string][]*node, len(t.sets))
	for _, name := range t.snames {
		set := make([]*node, 0, len(t.sets[name]))
		for _, r := range t.sets[name] {
			n := nodes[r]
			if n == nil {
				return nil, &ConfigError{Set: name, Ref: r, Msg: "next-set refers to nonexistent rule"}
			}
			set = append(set, n)
		}
		sets[name] = set
	}
	for _, name := range t.order {
		n := nodes[name]
		seen := make(map[*node]bool)
		add := func(m *node) {
			if !seen[m] {
				seen[m] = true
				n.next = append(n.next, m)
			}
		}
		for _, ref := range n.rule.Next {
			m, isRule := nodes[ref]
			set, isSet := sets[ref]
			if !isRule && !isSet {
				return nil, &ConfigError{Rule: name, Ref: ref, Msg: "rule refers to nonexistent rule or set"}
			}
			if isRule {
				add(m)
			}
			for _, m := range set {
				add(m)
			}
		}
	}
	if n := nodes[t.entry]; n != nil {
		return []*node{n}, nil
	}
	if set, ok := sets[t.entry]; ok {
		return set, nil
	}
	return nil, &ConfigError{Ref: t.entry, Msg: "unknown entry point"}
}

// Parse converts input to tokens using DefaultSameIndexLimit.
func (t *Tokenizer) Parse(input string) ([]*Token, error) {
	return t.ParseLimit(input, DefaultSameIndexLimit)
}

// ParseLimit converts input to tokens. If more than limit consecutive matches
// consume nothing, the result is a StallError. The graph is resolved anew on
// each call, so configuration errors are reported here.
func (t *Tokenizer) ParseLimit(input string, limit int) ([]*Token, error) {
	cur, err := t.graph()
	if err != nil {
		return nil, err
	}
	var (
		tokens []*Token
		last   *Rule
		i      int
		same   int
	)
	for i < len(input) {
		if len(cur) == 0 {
			return nil, &LexError{Index: i, Message: "expecting end of input"}
		}
		var hit *node
		var tok *Token
		for _, n := range cur {
			loc := n.rule.Pattern.FindStringSubmatchIndex(input[i:])
			if loc == nil {
				continue
			}
			hit, tok = n, newToken(n.rule, input, i, loc)
			break
		}
		if hit == nil {
			exp := expected(cur)
			return nil, &LexError{Index: i, Expected: exp, Message: expecting(exp)}
		}
		if hit.rule.Hook != nil {
			if err := hit.rule.Hook(tok, tokens, input); err != nil {
				return nil, &LexError{Index: tok.Pos, Expected: expected(cur), Message: err.Error(), Err: err}
			}
			if tok.End < i || tok.End > len(input) {
				return nil, &ConfigError{Rule: hit.rule.Name, Msg: "hook moved end offset outside the input"}
			}
		}
		if tok.End == i {
			same++
			if same > limit {
				return nil, &StallError{Index: i, Limit: limit, Rule: hit.rule.Name}
			}
		} else {
			same = 0
		}
		if t.log != nil {
			t.log.Debug("match", slog.String("rule", hit.rule.Name), slog.Int("pos", i), slog.Int("end", tok.End), slog.Bool("ignore", hit.rule.Ignore))
		}
		i = tok.End
		if !hit.rule.Ignore {
			tokens = append(tokens, tok)
			last = hit.rule
		}
		cur = hit.next
	}
	if len(t.final) != 0 && len(input) != 0 && (last == nil || !t.final[last.Name]) {
		exp := expected(cur)
		return nil, &LexError{Index: len(input), Expected: exp, Message: "unexpected end of input, " + expecting(exp)}
	}
	return tokens, nil
}

func newToken(r *Rule, input string, pos int, loc []int) *Token {
	m := make([]string, len(loc)/2)
	for k := range m {
		if loc[2*k] >= 0 {
			m[k] = input[pos+loc[2*k] : pos+loc[2*k+1]]
		}
	}
	kind := r.Alias
	if kind == "" {
		kind = r.Name
	}
	return &Token{
		Kind:  kind,
		Rule:  r.Name,
		Text:  m[0],
		Match: m,
		Pos:   pos,
		End:   pos + loc[1],
	}
}

// expected lists the names of rules in cur, replacing ignored rules which can
// match empty input with the rules they lead to.
func expected(cur []*node) []string {
	var names []string
	seen := make(map[*node]bool)
	var walk func([]*node)
	walk = func(ns []*node) {
		for _, n := range ns {
			if seen[n] {
				continue
			}
			seen[n] = true
			if n.rule.Ignore && n.rule.Pattern.MatchString("") {
				walk(n.next)
				continue
			}
			names = append(names, n.rule.Name)
		}
	}
	walk(cur)
	return names
}

// anchored reports whether every match of re must begin at the start of text.
func anchored(re *regexp.Regexp) bool {
	s, err := syntax.Parse(re.String(), syntax.Perl)
	if err != nil {
		return false
	}
	prog, err := syntax.Compile(s.Simplify())
	if err != nil {
		return false
	}
	return prog.StartCond()&syntax.EmptyBeginText != 0
}

// Sticky compiles expr so that it only matches at the offset where matching
// starts.
func Sticky(expr string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + expr + `)`)
}

// MustSticky is like Sticky but panics if expr does not compile.
func MustSticky(expr string) *regexp.Regexp {
	return regexp.MustCompile(`^(?:` + expr + `)`)
}
