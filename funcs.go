package polish

import (
	"errors"
	"math"
	"math/big"
	"math/rand/v2"
	"strconv"

	"github.com/zephyrtronium/bigfloat"
)

// Func is a function from reals to reals.
type Func interface {
	// Call evaluates the function. The function arguments are passed in args,
	// which has a length for which CanCall returned true. The function must
	// set r to its result and should not use the value of r otherwise. r has
	// the precision of ctx. Call may modify the elements of args.
	Call(ctx *Context, args []*big.Float, r *big.Float) error

	// CanCall returns whether the function can be called with n arguments.
	// The evaluator rejects calls with other numbers of arguments before
	// evaluating any of them.
	CanCall(n int) bool
}

var globalfuncs = map[string]Func{
	"ln":    Monadic(ln),
	"log":   Defaults(logb, 1, 10),
	"sqrt":  Defaults(root, 1, 2),
	"exp":   Monadic(exp),
	"expm1": Float64(math.Expm1),

	"sin":   Float64(math.Sin),
	"cos":   Float64(math.Cos),
	"tan":   Float64(math.Tan),
	"asin":  Float64(math.Asin),
	"acos":  Float64(math.Acos),
	"atan":  Float64(math.Atan),
	"sinh":  Float64(math.Sinh),
	"cosh":  Float64(math.Cosh),
	"tanh":  Float64(math.Tanh),
	"asinh": Float64(math.Asinh),
	"acosh": Float64(math.Acosh),
	"atanh": Float64(math.Atanh),

	"ceil":   Float64(math.Ceil),
	"floor":  Float64(math.Floor),
	"round":  Float64(func(x float64) float64 { return math.Floor(x + 0.5) }),
	"trunc":  Float64(math.Trunc),
	"fround": Float64(func(x float64) float64 { return float64(float32(x)) }),

	"abs": Monadic((*big.Float).Abs),
	"sign": Monadic(func(out, in *big.Float) *big.Float {
		return out.SetInt64(int64(in.Sign()))
	}),
	"max": Variadic(1, func(out *big.Float, args []*big.Float) error {
		out.Set(args[0])
		for _, x := range args[1:] {
			if x.Cmp(out) > 0 {
				out.Set(x)
			}
		}
		return nil
	}),
	"min": Variadic(1, func(out *big.Float, args []*big.Float) error {
		out.Set(args[0])
		for _, x := range args[1:] {
			if x.Cmp(out) < 0 {
				out.Set(x)
			}
		}
		return nil
	}),
	"random": Niladic(func(out *big.Float) *big.Float {
		return out.SetFloat64(rand.Float64())
	}),
}

// globalconsts holds the default constants, computed to the requested
// precision.
var globalconsts = map[string]func(prec uint) *big.Float{
	"e": func(prec uint) *big.Float {
		one := new(big.Float).SetPrec(prec).SetInt64(1)
		return bigfloat.Exp(new(big.Float).SetPrec(prec), one)
	},
	"pi": func(prec uint) *big.Float {
		return bigfloat.Pi(new(big.Float).SetPrec(prec))
	},
	"phi": func(prec uint) *big.Float {
		r := new(big.Float).SetPrec(prec + 8).SetInt64(5)
		r.Sqrt(r)
		r.Add(r, big.NewFloat(1))
		r.Quo(r, big.NewFloat(2))
		return r.SetPrec(prec)
	},
	"epsilon": func(prec uint) *big.Float {
		return new(big.Float).SetPrec(prec).SetMantExp(big.NewFloat(1), -52)
	},
	"inf": func(prec uint) *big.Float {
		return new(big.Float).SetPrec(prec).SetInf(false)
	},
	"minInf": func(prec uint) *big.Float {
		return new(big.Float).SetPrec(prec).SetInf(true)
	},
}

// DisableDefaultFuncs returns a functions map suitable for disabling all
// default functions when passed to SetFuncs.
func DisableDefaultFuncs() map[string]Func {
	m := make(map[string]Func, len(globalfuncs))
	for k := range globalfuncs {
		m[k] = nil
	}
	return m
}

func ln(out, in *big.Float) *big.Float {
	switch {
	case in.Sign() < 0:
		panic(DomainError{X: in, Arg: 1, Func: "ln"})
	case in.Sign() == 0:
		return out.SetInf(true)
	case in.IsInf():
		return out.SetInf(false)
	}
	return bigfloat.Log(out, in)
}

func exp(out, in *big.Float) *big.Float {
	if in.IsInf() {
		if in.Signbit() {
			return out.SetInt64(0)
		}
		return out.SetInf(false)
	}
	return bigfloat.Exp(out, in)
}

// logb computes the logarithm of args[0] in base args[1].
func logb(out *big.Float, args []*big.Float) error {
	x, b := args[0], args[1]
	if b.Sign() <= 0 {
		return DomainError{X: b, Arg: 2, Func: "log"}
	}
	if x.Sign() < 0 {
		return DomainError{X: x, Arg: 1, Func: "log"}
	}
	ln(out, x)
	d := new(big.Float).SetPrec(out.Prec())
	ln(d, b)
	if d.Sign() == 0 || out.IsInf() && d.IsInf() {
		return DomainError{X: b, Arg: 2, Func: "log"}
	}
	out.Quo(out, d)
	return nil
}

// root computes the args[1]-th root of args[0].
func root(out *big.Float, args []*big.Float) error {
	x, n := args[0], args[1]
	if n.Sign() == 0 {
		return DomainError{X: n, Arg: 2, Func: "sqrt"}
	}
	if n.Cmp(big.NewFloat(2)) == 0 {
		if x.Sign() < 0 {
			return DomainError{X: x, Arg: 1, Func: "sqrt"}
		}
		out.Sqrt(x)
		return nil
	}
	one := new(big.Float).SetPrec(out.Prec()).SetInt64(1)
	inv := new(big.Float).SetPrec(out.Prec()).Quo(one, n)
	return catch("sqrt", x, func() { pow(out, x, inv) })
}

// catch converts panics with DomainError or big.ErrNaN to errors. x is the
// argument reported for big.ErrNaN.
func catch(name string, x *big.Float, f func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e, ok := r.(error) // panic if not error
		if !ok {
			panic(r)
		}
		var d DomainError
		switch {
		case errors.As(e, &d):
			if d.Func == "" {
				d.Func = name
			}
			err = d
		case errors.As(e, &big.ErrNaN{}):
			err = DomainError{X: x, Func: name}
		default:
			panic(r)
		}
	}()
	f()
	return nil
}

type monadic struct {
	f func(out, in *big.Float) *big.Float
}

func (m monadic) Call(ctx *Context, args []*big.Float, r *big.Float) error {
	r.SetPrec(ctx.Prec())
	return catch("", args[0], func() { m.f(r, args[0]) })
}

func (m monadic) CanCall(n int) bool {
	return n == 1
}

// Monadic wraps a function of one variable into a Func. f must set out to its
// result; its return value is always ignored. If f is called on an argument
// outside f's domain, it should panic with a DomainError or an error of type
// big.ErrNaN.
func Monadic(f func(out, in *big.Float) *big.Float) Func {
	return monadic{f}
}

type niladic struct {
	f func(out *big.Float) *big.Float
}

func (n niladic) Call(ctx *Context, args []*big.Float, r *big.Float) error {
	r.SetPrec(ctx.Prec())
	n.f(r)
	return nil
}

func (n niladic) CanCall(k int) bool {
	return k == 0
}

// Niladic wraps a function of zero variables into a Func. f must set out to
// its result; its return value is always ignored. Unlike Monadic, the wrapped
// function is expected never to panic.
func Niladic(f func(out *big.Float) *big.Float) Func {
	return niladic{f}
}

type defaults struct {
	f    func(out *big.Float, args []*big.Float) error
	req  int
	dflt []float64
}

func (d defaults) Call(ctx *Context, args []*big.Float, r *big.Float) error {
	r.SetPrec(ctx.Prec())
	for i := len(args); i < d.req+len(d.dflt); i++ {
		args = append(args, new(big.Float).SetPrec(ctx.Prec()).SetFloat64(d.dflt[i-d.req]))
	}
	return d.f(r, args)
}

func (d defaults) CanCall(n int) bool {
	return n >= d.req && n <= d.req+len(d.dflt)
}

// Defaults wraps a function with required arguments followed by optional
// ones into a Func. f always receives required+len(dflt) arguments; missing
// trailing arguments take their values from dflt.
func Defaults(f func(out *big.Float, args []*big.Float) error, required int, dflt ...float64) Func {
	return defaults{f: f, req: required, dflt: dflt}
}

type variadic struct {
	f   func(out *big.Float, args []*big.Float) error
	min int
}

func (v variadic) Call(ctx *Context, args []*big.Float, r *big.Float) error {
	r.SetPrec(ctx.Prec())
	return v.f(r, args)
}

func (v variadic) CanCall(n int) bool {
	return n >= v.min
}

// Variadic wraps a function of at least min arguments into a Func.
func Variadic(min int, f func(out *big.Float, args []*big.Float) error) Func {
	return variadic{f: f, min: min}
}

type float64fn struct {
	f func(float64) float64
}

func (g float64fn) Call(ctx *Context, args []*big.Float, r *big.Float) error {
	x, _ := args[0].Float64()
	y := g.f(x)
	if math.IsNaN(y) {
		return DomainError{X: args[0], Arg: 1}
	}
	r.SetPrec(ctx.Prec()).SetFloat64(y)
	return nil
}

func (g float64fn) CanCall(n int) bool {
	return n == 1
}

// Float64 wraps a function of one float64 into a Func. Results are computed
// at float64 precision regardless of the context's precision. A NaN result is
// a DomainError.
func Float64(f func(float64) float64) Func {
	return float64fn{f}
}

// DomainError is an error returned when a function is called on arguments
// outside its domain.
type DomainError struct {
	// X is the out-of-domain argument.
	X *big.Float
	// Arg is the 1-based index of the argument.
	Arg int
	// Func is a name identifying the function.
	Func string
}

func (err DomainError) Error() string {
	r := "argument outside domain"
	if err.X != nil {
		r = err.X.String() + " outside domain"
	}
	if err.Func != "" {
		r += " of " + err.Func
	}
	if err.Arg > 0 {
		r += " (argument " + strconv.Itoa(err.Arg) + ")"
	}
	return r
}
