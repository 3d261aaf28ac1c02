package polish

import (
	"fmt"
	"log/slog"
	"slices"
)

// Mode is the order of a notation.
type Mode int8

const (
	// RPN is Reverse Polish Notation: operators follow their operands.
	RPN Mode = iota
	// PN is Polish Notation: operators precede their operands.
	PN
)

func (m Mode) String() string {
	switch m {
	case RPN:
		return "RPN"
	case PN:
		return "PN"
	default:
		return fmt.Sprintf("Mode(%d)", int8(m))
	}
}

// ParseMode converts "rpn" or "pn", in any case, to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "rpn", "RPN", "Rpn":
		return RPN, nil
	case "pn", "PN", "Pn":
		return PN, nil
	}
	return 0, fmt.Errorf("unknown notation mode %q", s)
}

// Notation is a compiled expression. Function call tokens in Tokens carry
// their arguments in Params, each in the same mode.
type Notation struct {
	Mode   Mode
	Tokens []*Token
	// Evaluable reports whether every operator, function, and constant in
	// the notation was registered in the compiling context.
	Evaluable bool
}

func (n *Notation) String() string {
	return Format(n.Tokens)
}

// StepKind is the kind of a compile step.
type StepKind int8

const (
	// StepLookup is the lookup of an operator's precedence.
	StepLookup StepKind = iota
	// StepInsertValue is the move of a number, constant, or function call
	// to the output.
	StepInsertValue
	// StepInsertOpStack is the push of an operator or bracket to the
	// operator stack.
	StepInsertOpStack
	// StepPopMoveOpStack is the move of an operator from the operator stack
	// to the output.
	StepPopMoveOpStack
	// StepPopDiscardBracket is the removal of a bracket from the operator
	// stack.
	StepPopDiscardBracket
	// StepAttachParams is the move of a function argument from the output
	// to the function call's parameters.
	StepAttachParams
)

var stepnames = [...]string{
	StepLookup:            "lookup",
	StepInsertValue:       "insert-value",
	StepInsertOpStack:     "insert-op-stack",
	StepPopMoveOpStack:    "pop-move-op-stack",
	StepPopDiscardBracket: "pop-discard-bracket",
	StepAttachParams:      "attach-params",
}

func (k StepKind) String() string {
	if k < 0 || int(k) >= len(stepnames) {
		return fmt.Sprintf("StepKind(%d)", int8(k))
	}
	return stepnames[k]
}

// NotationStep describes one step of compiling a notation. Output and Stack
// are snapshots taken after the step.
type NotationStep struct {
	Kind StepKind
	// Index is the index in the token stream of the token being scanned, or
	// the length of the stream while flushing the operator stack.
	Index int
	// Token is the token the step acts on.
	Token       *Token
	Output      []*Token
	Stack       []*Token
	Description string
}

// Compile converts a token stream to a notation.
func (ctx *Context) Compile(tokens []*Token, mode Mode) (*Notation, error) {
	return ctx.compile(tokens, mode, nil)
}

// CompileSteps returns a stepper which compiles a token stream to a notation,
// yielding a descriptor for every step. Call Stop on a stepper abandoned
// before it finishes.
func (ctx *Context) CompileSteps(tokens []*Token, mode Mode) *Stepper[NotationStep, *Notation] {
	return newStepper(func(yield func(NotationStep) bool) (*Notation, error) {
		return ctx.compile(tokens, mode, yield)
	})
}

func (ctx *Context) compile(tokens []*Token, mode Mode, yield func(NotationStep) bool) (*Notation, error) {
	c := compiler{ctx: ctx, tokens: tokens, yield: yield}
	var (
		out []*Token
		err error
	)
	switch mode {
	case RPN:
		out, err = c.rpn()
	case PN:
		out, err = c.pn()
	default:
		panic("polish: invalid notation mode " + mode.String())
	}
	if err != nil {
		ctx.log.Debug("compile failed", slog.String("mode", mode.String()), slog.Any("err", err))
		return nil, err
	}
	n := &Notation{Mode: mode, Tokens: out}
	n.Evaluable = ctx.Evaluable(out) == nil
	ctx.log.Debug("compiled", slog.String("mode", mode.String()), slog.String("notation", n.String()), slog.Bool("evaluable", n.Evaluable))
	return n, nil
}

// Evaluable checks that every operator, function, and constant in a notation,
// including function parameters, is registered in the context. The error
// names the first missing one.
func (ctx *Context) Evaluable(tokens []*Token) error {
	for i, tok := range tokens {
		switch tok.Kind {
		case KindOperator:
			if _, ok := ctx.ops[tok.Text]; !ok {
				return &OperatorError{Index: i, Tok: tok}
			}
		case KindVariable:
			if ctx.consts[tok.Text] == nil {
				return &EvalError{Index: i, Tok: tok, Err: ctx.nameError(tok.Text, false)}
			}
		case KindFuncCall:
			if ctx.funcs[tok.Text] == nil {
				return &EvalError{Index: i, Tok: tok, Err: ctx.nameError(tok.Text, true)}
			}
			for _, p := range tok.Params {
				if err := ctx.Evaluable(p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// frame is an open bracketed group during compilation.
type frame struct {
	// start is the length of the output when the group opened.
	start int
	// index is the index of the opening bracket in the token stream.
	index int
	// call is the function whose argument list the group is, if any.
	call *Token
	// params holds the arguments scanned so far in PN.
	params [][]*Token
	// sep is the index of a separator in the group in PN, or -1.
	sep int
}

type compiler struct {
	ctx    *Context
	tokens []*Token
	out    []*Token
	ops    []*Token
	frames []frame
	// pending holds the parameters of the function call preceding the
	// current token in PN.
	pending [][]*Token
	yield   func(NotationStep) bool
	i       int
}

// step reports a step. The result is false if the compilation should stop.
func (c *compiler) step(kind StepKind, tok *Token, desc string) bool {
	if c.yield == nil {
		return true
	}
	return c.yield(NotationStep{
		Kind:        kind,
		Index:       c.i,
		Token:       tok,
		Output:      slices.Clone(c.out),
		Stack:       slices.Clone(c.ops),
		Description: desc,
	})
}

// splice removes and returns the output from start.
func (c *compiler) splice(start int) []*Token {
	arg := slices.Clone(c.out[start:])
	c.out = c.out[:start]
	return arg
}

func (c *compiler) rpn() ([]*Token, error) {
	for c.i = 0; c.i < len(c.tokens); c.i++ {
		tok := c.tokens[c.i]
		switch tok.Kind {
		case KindNumber, KindVariable:
			c.out = append(c.out, tok)
			if !c.step(StepInsertValue, tok, "Insert value into output") {
				return nil, ErrStopped
			}
		case KindFuncCall:
			if c.i+1 >= len(c.tokens) || c.tokens[c.i+1].Kind != KindOpenBracket {
				return nil, &CallError{Index: c.i, Tok: tok, Len: -1}
			}
			tok.Params = nil
			c.out = append(c.out, tok)
			if !c.step(StepInsertValue, tok, "Insert function call into output") {
				return nil, ErrStopped
			}
		case KindOperator:
			if err := c.operator(tok, false); err != nil {
				return nil, err
			}
		case KindOpenBracket:
			f := frame{start: len(c.out), index: c.i, sep: -1}
			if c.i > 0 && c.tokens[c.i-1].Kind == KindFuncCall {
				f.call = c.tokens[c.i-1]
			}
			c.frames = append(c.frames, f)
			c.ops = append(c.ops, tok)
			if !c.step(StepInsertOpStack, tok, "Insert open bracket into operator stack") {
				return nil, ErrStopped
			}
		case KindCloseBracket:
			if len(c.frames) == 0 {
				return nil, &BracketError{Index: c.i, Tok: tok}
			}
			if !c.unwind(KindOpenBracket) {
				return nil, ErrStopped
			}
			open := c.ops[len(c.ops)-1]
			c.ops = c.ops[:len(c.ops)-1]
			if !c.step(StepPopDiscardBracket, open, "Discard matching open bracket") {
				return nil, ErrStopped
			}
			f := c.frames[len(c.frames)-1]
			c.frames = c.frames[:len(c.frames)-1]
			if f.call == nil {
				break
			}
			arg := c.splice(f.start)
			if len(arg) == 0 {
				if len(f.call.Params) != 0 {
					return nil, &EmptyExpressionError{Index: c.i, Tok: tok}
				}
				break
			}
			f.call.Params = append(f.call.Params, arg)
			if !c.step(StepAttachParams, f.call, "Move last argument into function parameters") {
				return nil, ErrStopped
			}
		case KindSeparator:
			if len(c.frames) == 0 || c.frames[len(c.frames)-1].call == nil {
				return nil, &SeparatorError{Index: c.i, Tok: tok}
			}
			if !c.unwind(KindOpenBracket) {
				return nil, ErrStopped
			}
			f := &c.frames[len(c.frames)-1]
			arg := c.splice(f.start)
			if len(arg) == 0 {
				return nil, &EmptyExpressionError{Index: c.i, Tok: tok}
			}
			f.call.Params = append(f.call.Params, arg)
			if !c.step(StepAttachParams, f.call, "Move argument into function parameters") {
				return nil, ErrStopped
			}
		default:
			panic("polish: cannot compile token " + tok.String())
		}
	}
	return c.flush()
}

func (c *compiler) pn() ([]*Token, error) {
	for c.i = len(c.tokens) - 1; c.i >= 0; c.i-- {
		tok := c.tokens[c.i]
		switch tok.Kind {
		case KindNumber, KindVariable:
			c.out = append(c.out, tok)
			if !c.step(StepInsertValue, tok, "Insert value into output") {
				return nil, ErrStopped
			}
		case KindFuncCall:
			if c.i+1 >= len(c.tokens) || c.tokens[c.i+1].Kind != KindOpenBracket {
				return nil, &CallError{Index: c.i, Tok: tok, Len: -1}
			}
			// Arguments were collected last to first.
			tok.Params = c.pending
			slices.Reverse(tok.Params)
			c.pending = nil
			if !c.step(StepAttachParams, tok, "Attach arguments to function call") {
				return nil, ErrStopped
			}
			c.out = append(c.out, tok)
			if !c.step(StepInsertValue, tok, "Insert function call into output") {
				return nil, ErrStopped
			}
		case KindOperator:
			if err := c.operator(tok, true); err != nil {
				return nil, err
			}
		case KindCloseBracket:
			c.frames = append(c.frames, frame{start: len(c.out), index: c.i, sep: -1})
			c.ops = append(c.ops, tok)
			if !c.step(StepInsertOpStack, tok, "Insert close bracket into operator stack") {
				return nil, ErrStopped
			}
		case KindOpenBracket:
			if len(c.frames) == 0 {
				return nil, &BracketError{Index: c.i, Tok: tok}
			}
			if !c.unwind(KindCloseBracket) {
				return nil, ErrStopped
			}
			cl := c.ops[len(c.ops)-1]
			c.ops = c.ops[:len(c.ops)-1]
			if !c.step(StepPopDiscardBracket, cl, "Discard matching close bracket") {
				return nil, ErrStopped
			}
			f := c.frames[len(c.frames)-1]
			c.frames = c.frames[:len(c.frames)-1]
			if c.i == 0 || c.tokens[c.i-1].Kind != KindFuncCall {
				if f.sep >= 0 {
					return nil, &SeparatorError{Index: f.sep, Tok: c.tokens[f.sep]}
				}
				break
			}
			arg := c.splice(f.start)
			if len(arg) == 0 {
				if len(f.params) != 0 {
					return nil, &EmptyExpressionError{Index: c.i + 1, Tok: c.tokens[c.i+1]}
				}
			} else {
				slices.Reverse(arg)
				f.params = append(f.params, arg)
			}
			c.pending = f.params
		case KindSeparator:
			if len(c.frames) == 0 {
				return nil, &SeparatorError{Index: c.i, Tok: tok}
			}
			if !c.unwind(KindCloseBracket) {
				return nil, ErrStopped
			}
			f := &c.frames[len(c.frames)-1]
			if f.sep < 0 {
				f.sep = c.i
			}
			arg := c.splice(f.start)
			if len(arg) == 0 {
				return nil, &EmptyExpressionError{Index: c.i + 1, Tok: c.tokens[c.i+1]}
			}
			slices.Reverse(arg)
			f.params = append(f.params, arg)
			if !c.step(StepAttachParams, tok, "Move argument into pending parameters") {
				return nil, ErrStopped
			}
		default:
			panic("polish: cannot compile token " + tok.String())
		}
	}
	c.i = len(c.tokens)
	out, err := c.flush()
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// operator handles an operator token. In reverse scans, operators of equal
// precedence are popped only for right-associative operators.
func (c *compiler) operator(tok *Token, reverse bool) error {
	op, ok := c.ctx.ops[tok.Text]
	if !ok {
		return &OperatorError{Index: c.i, Tok: tok}
	}
	if !c.step(StepLookup, tok, fmt.Sprintf("Operator %s has precedence %d", tok.Text, op.Level)) {
		return ErrStopped
	}
	for len(c.ops) > 0 {
		top := c.ops[len(c.ops)-1]
		if top.Kind != KindOperator {
			break
		}
		t := c.ctx.ops[top.Text]
		if t.Level < op.Level || t.Level == op.Level && op.Right != reverse {
			break
		}
		c.ops = c.ops[:len(c.ops)-1]
		c.out = append(c.out, top)
		if !c.step(StepPopMoveOpStack, top, fmt.Sprintf("Move %s with precedence %d to output", top.Text, t.Level)) {
			return ErrStopped
		}
	}
	c.ops = append(c.ops, tok)
	if !c.step(StepInsertOpStack, tok, "Insert operator into operator stack") {
		return ErrStopped
	}
	return nil
}

// unwind moves operators to the output until the top of the operator stack is
// a bracket of the given kind. There must be such a bracket.
func (c *compiler) unwind(bracket TokenKind) bool {
	for {
		top := c.ops[len(c.ops)-1]
		if top.Kind == bracket {
			return true
		}
		c.ops = c.ops[:len(c.ops)-1]
		c.out = append(c.out, top)
		if !c.step(StepPopMoveOpStack, top, "Move operator inside brackets to output") {
			return false
		}
	}
}

// flush moves the remaining operators to the output.
func (c *compiler) flush() ([]*Token, error) {
	for len(c.ops) > 0 {
		top := c.ops[len(c.ops)-1]
		if top.Kind != KindOperator {
			f := c.frames[len(c.frames)-1]
			return nil, &BracketError{Index: f.index, Tok: c.tokens[f.index]}
		}
		c.ops = c.ops[:len(c.ops)-1]
		c.out = append(c.out, top)
		if !c.step(StepPopMoveOpStack, top, "Move remaining operator to output") {
			return nil, ErrStopped
		}
	}
	return c.out, nil
}
