package polish

import (
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"strings"
)

// EvalStepKind is the kind of an evaluation step.
type EvalStepKind int8

const (
	// EvalInsertValue is the push of a number or constant.
	EvalInsertValue EvalStepKind = iota
	// EvalApplyOperator is the application of an operator to the top two
	// values.
	EvalApplyOperator
	// EvalApplyFunction is the application of a function to its evaluated
	// parameters.
	EvalApplyFunction
	// EvalSnapshot reports the stack when evaluation enters or leaves the
	// parameters of a function call.
	EvalSnapshot
	// EvalResult reports the final value.
	EvalResult
)

var evalstepnames = [...]string{
	EvalInsertValue:   "insert-value",
	EvalApplyOperator: "apply-operator",
	EvalApplyFunction: "apply-function",
	EvalSnapshot:      "snapshot",
	EvalResult:        "result",
}

func (k EvalStepKind) String() string {
	if k < 0 || int(k) >= len(evalstepnames) {
		return fmt.Sprintf("EvalStepKind(%d)", int8(k))
	}
	return evalstepnames[k]
}

// EvalStep describes one step of evaluating a notation.
type EvalStep struct {
	Kind EvalStepKind
	// Index is the index of Token in the sequence being evaluated, or -1 for
	// snapshots and results.
	Index int
	// Token is the token being evaluated, or nil for snapshots and results.
	Token *Token
	// Stack is a copy of the value stack after the step.
	Stack []*big.Float
	// Value is the value pushed by the step or the final result.
	Value *big.Float
	// Nested is true while evaluating function parameters.
	Nested bool
}

// Eval evaluates a notation.
func (ctx *Context) Eval(n *Notation) (*big.Float, error) {
	return ctx.EvalNotation(n.Tokens, n.Mode)
}

// EvalNotation evaluates a token sequence in the given mode.
func (ctx *Context) EvalNotation(tokens []*Token, mode Mode) (*big.Float, error) {
	e := evaluator{ctx: ctx, mode: mode}
	r, err := e.run(tokens)
	if err != nil {
		ctx.log.Debug("eval failed", slog.String("mode", mode.String()), slog.Any("err", err))
		return nil, err
	}
	ctx.log.Debug("evaluated", slog.String("mode", mode.String()), slog.String("result", r.Text('g', -1)))
	return r, nil
}

// EvalSteps returns a stepper which evaluates a notation, yielding a
// descriptor for every step. Call Stop on a stepper abandoned before it
// finishes.
func (ctx *Context) EvalSteps(n *Notation) *Stepper[EvalStep, *big.Float] {
	return ctx.EvalNotationSteps(n.Tokens, n.Mode)
}

// EvalNotationSteps returns a stepper which evaluates a token sequence in the
// given mode, yielding a descriptor for every step. Call Stop on a stepper
// abandoned before it finishes.
func (ctx *Context) EvalNotationSteps(tokens []*Token, mode Mode) *Stepper[EvalStep, *big.Float] {
	return newStepper(func(yield func(EvalStep) bool) (*big.Float, error) {
		e := evaluator{ctx: ctx, mode: mode, yield: yield}
		return e.run(tokens)
	})
}

// Calculate tokenizes, compiles, and evaluates an expression.
func (ctx *Context) Calculate(src string, mode Mode) (*big.Float, error) {
	toks, err := ctx.Tokenize(src)
	if err != nil {
		return nil, err
	}
	n, err := ctx.Compile(toks, mode)
	if err != nil {
		return nil, err
	}
	return ctx.Eval(n)
}

// EvalString is a shortcut to evaluate an expression in a new context with
// the default registries.
func EvalString(src string, mode Mode, opts ...ContextOption) (*big.Float, error) {
	return NewContext(opts...).Calculate(src, mode)
}

type evaluator struct {
	ctx   *Context
	mode  Mode
	yield func(EvalStep) bool
}

func (e *evaluator) run(tokens []*Token) (*big.Float, error) {
	r, err := e.eval(tokens, false)
	if err != nil {
		return nil, err
	}
	if !e.step(EvalStep{Kind: EvalResult, Index: -1, Stack: []*big.Float{r}, Value: r}) {
		return nil, ErrStopped
	}
	return r, nil
}

// step reports a step. The result is false if evaluation should stop.
func (e *evaluator) step(s EvalStep) bool {
	if e.yield == nil {
		return true
	}
	return e.yield(s)
}

// eval evaluates a sequence in a fresh stack.
func (e *evaluator) eval(seq []*Token, nested bool) (*big.Float, error) {
	var stack []*big.Float
	if nested && !e.step(EvalStep{Kind: EvalSnapshot, Index: -1, Nested: true}) {
		return nil, ErrStopped
	}
	for k := range seq {
		i := k
		if e.mode == PN {
			i = len(seq) - 1 - k
		}
		tok := seq[i]
		fail := func(err error) error {
			return &EvalError{Index: i, Tok: tok, Stack: slices.Clone(stack), Err: err}
		}
		var v *big.Float
		kind := EvalInsertValue
		switch tok.Kind {
		case KindNumber:
			var err error
			v, err = e.ctx.num(tok.Text)
			if err != nil {
				return nil, fail(err)
			}
		case KindVariable:
			c := e.ctx.consts[tok.Text]
			if c == nil {
				return nil, fail(e.ctx.nameError(tok.Text, false))
			}
			v = c
		case KindFuncCall:
			f := e.ctx.funcs[tok.Text]
			if f == nil {
				return nil, fail(e.ctx.nameError(tok.Text, true))
			}
			if !f.CanCall(len(tok.Params)) {
				return nil, fail(&CallError{Index: i, Tok: tok, Len: len(tok.Params)})
			}
			args := make([]*big.Float, len(tok.Params))
			for j, p := range tok.Params {
				a, err := e.eval(p, true)
				if err != nil {
					return nil, err
				}
				// Funcs may modify their arguments.
				args[j] = new(big.Float).Copy(a)
			}
			if len(tok.Params) != 0 && !e.step(EvalStep{Kind: EvalSnapshot, Index: -1, Stack: slices.Clone(stack), Nested: nested}) {
				return nil, ErrStopped
			}
			v = new(big.Float).SetPrec(e.ctx.prec)
			if err := f.Call(e.ctx, args, v); err != nil {
				return nil, fail(err)
			}
			kind = EvalApplyFunction
		case KindOperator:
			op, ok := e.ctx.ops[tok.Text]
			if !ok {
				return nil, fail(&OperatorError{Index: i, Tok: tok})
			}
			if len(stack) < 2 {
				return nil, fail(&StackError{Op: tok.Text, Len: len(stack)})
			}
			// The first value popped is the right operand in RPN and the
			// left operand in PN.
			x, y := stack[len(stack)-2], stack[len(stack)-1]
			if e.mode == PN {
				x, y = y, x
			}
			v = new(big.Float).SetPrec(e.ctx.prec)
			if err := op.Fn(v, x, y); err != nil {
				return nil, fail(err)
			}
			stack = stack[:len(stack)-2]
			kind = EvalApplyOperator
		case KindOpenBracket, KindCloseBracket:
			return nil, fail(&BracketError{Index: i, Tok: tok})
		case KindSeparator:
			return nil, fail(&SeparatorError{Index: i, Tok: tok})
		default:
			panic("polish: cannot evaluate token " + tok.String())
		}
		stack = append(stack, v)
		if !e.step(EvalStep{Kind: kind, Index: i, Token: tok, Stack: slices.Clone(stack), Value: v, Nested: nested}) {
			return nil, ErrStopped
		}
	}
	if len(stack) != 1 {
		return nil, &EvalError{Index: -1, Stack: stack, Err: &StackError{Len: len(stack)}}
	}
	return stack[0], nil
}

// num parses a number literal at the context's precision.
func (ctx *Context) num(s string) (*big.Float, error) {
	r, _, err := new(big.Float).SetPrec(ctx.prec).Parse(s, 0)
	switch {
	case err == nil: // do nothing
	case err.Error() == "exponent overflow",
		strings.HasSuffix(err.Error(), ": value out of range"):
		// There isn't realistically any better way to detect this error.
		// N.B. s is non-empty, otherwise we couldn't overflow.
		r = new(big.Float).SetPrec(ctx.prec).SetInf(s[0] == '-')
	default:
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return r, nil
}

func (ctx *Context) nameError(name string, fn bool) *NameError {
	var cands []string
	if fn {
		cands = sortedKeys(ctx.funcs)
	} else {
		cands = sortedKeys(ctx.consts)
	}
	return &NameError{Name: name, Func: fn, Suggest: suggest(name, cands)}
}
