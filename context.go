package polish

import (
	"log/slog"
	"math/big"
	"slices"

	"github.com/zephyrtronium/polish/tokenizer"
)

// Context holds the registries of operators, functions, and constants used to
// tokenize, compile, and evaluate expressions. A Context is not modified
// after creation, so it is safe to use concurrently; use Clone to derive a
// context with different settings.
type Context struct {
	ops    map[string]Operator
	funcs  map[string]Func
	consts map[string]*big.Float
	// builtin marks constants which still have their default values, so that
	// Clone can recompute them at a new precision.
	builtin map[string]bool
	prec    uint
	lex     *tokenizer.Tokenizer
	log     *slog.Logger
}

// ContextOption is an option used when creating a context.
type ContextOption interface {
	ctxOption()
}

type (
	constopt struct {
		name string
		val  *big.Float
	}
	constsopt map[string]*big.Float
	funcopt   struct {
		name string
		f    Func
	}
	funcsopt map[string]Func
	opopt    struct {
		sym string
		op  Operator
	}
	precopt uint
	logopt  struct {
		l *slog.Logger
	}
)

func (constopt) ctxOption()  {}
func (constsopt) ctxOption() {}
func (funcopt) ctxOption()   {}
func (funcsopt) ctxOption()  {}
func (opopt) ctxOption()     {}
func (precopt) ctxOption()   {}
func (logopt) ctxOption()    {}

// SetConst sets the value of a constant in the context. A nil value removes
// the constant.
func SetConst(name string, val *big.Float) ContextOption {
	return constopt{name, val}
}

// SetConsts sets the values of any number of constants in the context.
func SetConsts(consts map[string]*big.Float) ContextOption {
	return constsopt(consts)
}

// SetFunc sets a function in the context. A nil Func removes the function.
func SetFunc(name string, f Func) ContextOption {
	return funcopt{name, f}
}

// SetFuncs sets any number of functions in the context. Nil values remove the
// corresponding functions.
func SetFuncs(funcs map[string]Func) ContextOption {
	return funcsopt(funcs)
}

// SetOperator sets an operator in the context. An operator with a nil Fn
// removes the operator. The tokenizer of the new context recognizes exactly
// the registered operator symbols.
func SetOperator(sym string, op Operator) ContextOption {
	return opopt{sym, op}
}

// Prec sets the precision of calculations.
func Prec(prec uint) ContextOption {
	return precopt(prec)
}

// Logger sets a logger for debug records of tokenizing, compiling, and
// evaluating.
func Logger(l *slog.Logger) ContextOption {
	return logopt{l}
}

// NewContext creates a new context with the default operators, functions,
// and constants. If no precision is given, the default is 64.
func NewContext(opts ...ContextOption) *Context {
	ctx := Context{
		ops:   globalops,
		funcs: globalfuncs,
		prec:  64,
		log:   slog.New(slog.DiscardHandler),
	}
	ctx.builtin = make(map[string]bool, len(globalconsts))
	for k := range globalconsts {
		ctx.builtin[k] = true
	}
	return ctx.Clone(opts...)
}

// Clone creates a copy of a context and applies options to it.
func (ctx *Context) Clone(opts ...ContextOption) *Context {
	n := Context{
		ops:     make(map[string]Operator, len(ctx.ops)),
		funcs:   make(map[string]Func, len(ctx.funcs)),
		consts:  make(map[string]*big.Float, len(ctx.consts)),
		builtin: make(map[string]bool, len(ctx.builtin)),
		prec:    ctx.prec,
		log:     ctx.log,
	}
	// First, check for a precision setting. Loop backward so we apply the last
	// precision.
	for i := len(opts) - 1; i >= 0; i-- {
		if p, ok := opts[i].(precopt); ok {
			n.prec = uint(p)
			break
		}
	}
	for k, v := range ctx.ops {
		n.ops[k] = v
	}
	for k, v := range ctx.funcs {
		n.funcs[k] = v
	}
	// Builtin constants are computed fresh at the new precision. Others are
	// rounded, or shared if the precision is unchanged.
	for k := range ctx.builtin {
		n.builtin[k] = true
		if v := ctx.consts[k]; v != nil && n.prec == ctx.prec {
			n.consts[k] = v
			continue
		}
		n.consts[k] = globalconsts[k](n.prec)
	}
	for k, v := range ctx.consts {
		if n.builtin[k] {
			continue
		}
		if n.prec != ctx.prec {
			v = new(big.Float).SetPrec(n.prec).Set(v)
		}
		n.consts[k] = v
	}
	ops := false
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		switch opt := opt.(type) {
		case constopt:
			n.setConst(opt.name, opt.val)
		case constsopt:
			for k, v := range opt {
				n.setConst(k, v)
			}
		case funcopt:
			n.setFunc(opt.name, opt.f)
		case funcsopt:
			for k, v := range opt {
				n.setFunc(k, v)
			}
		case opopt:
			if opt.op.Fn == nil {
				delete(n.ops, opt.sym)
			} else {
				n.ops[opt.sym] = opt.op
			}
			ops = true
		case precopt:
			// Already done. Do nothing.
		case logopt:
			n.log = opt.l
			if n.log == nil {
				n.log = slog.New(slog.DiscardHandler)
			}
		default:
			panic("polish: unknown option type")
		}
	}
	if ops || ctx.lex == nil || n.log != ctx.log {
		n.lex = grammar(n.ops, n.log)
	} else {
		n.lex = ctx.lex
	}
	return &n
}

func (ctx *Context) setConst(name string, val *big.Float) {
	delete(ctx.builtin, name)
	if val == nil {
		delete(ctx.consts, name)
		return
	}
	ctx.consts[name] = new(big.Float).SetPrec(ctx.prec).Set(val)
}

func (ctx *Context) setFunc(name string, f Func) {
	if f == nil {
		delete(ctx.funcs, name)
		return
	}
	ctx.funcs[name] = f
}

// Prec returns the precision to which values are computed in the context.
func (ctx *Context) Prec() uint {
	return ctx.prec
}

// Lookup returns a copy of the value of a constant. If there is no such
// constant in the context, then the result is nil.
func (ctx *Context) Lookup(name string) *big.Float {
	v := ctx.consts[name]
	if v == nil {
		return nil
	}
	return new(big.Float).Copy(v)
}

// Operator returns the operator registered for a symbol.
func (ctx *Context) Operator(sym string) (Operator, bool) {
	op, ok := ctx.ops[sym]
	return op, ok
}

// Func returns the function registered under a name, or nil if there is none.
func (ctx *Context) Func(name string) Func {
	return ctx.funcs[name]
}

// Names lists the names of registered constants and functions in sorted
// order.
func (ctx *Context) Names() (consts, funcs []string) {
	consts = sortedKeys(ctx.consts)
	funcs = sortedKeys(ctx.funcs)
	return consts, funcs
}

// Operators lists the registered operator symbols in sorted order.
func (ctx *Context) Operators() []string {
	return sortedKeys(ctx.ops)
}

func sortedKeys[V any](m map[string]V) []string {
	r := make([]string, 0, len(m))
	for k := range m {
		r = append(r, k)
	}
	slices.Sort(r)
	return r
}
