package polish

import (
	"math"
	"math/big"

	"github.com/zephyrtronium/bigfloat"
)

// Operator is a binary infix operator.
type Operator struct {
	// Level is the precedence level. Higher levels bind more tightly.
	Level int
	// Fn computes the operator. It must set z to the result of x op y and
	// should not use the value of z otherwise. z has the precision of the
	// evaluating context. A nil Fn removes the operator from a context.
	Fn BinaryFunc
	// Right indicates right-to-left associativity.
	Right bool
}

// BinaryFunc is the function of an operator.
type BinaryFunc func(z, x, y *big.Float) error

var globalops = map[string]Operator{
	"|":  {Level: 1, Fn: bitwise("|", (*big.Int).Or)},
	"&":  {Level: 1, Fn: bitwise("&", (*big.Int).And)},
	"<<": {Level: 2, Fn: shift("<<", (*big.Int).Lsh)},
	">>": {Level: 2, Fn: shift(">>", (*big.Int).Rsh)},
	"+":  {Level: 3, Fn: Binary("+", (*big.Float).Add)},
	"-":  {Level: 3, Fn: Binary("-", (*big.Float).Sub)},
	"*":  {Level: 4, Fn: Binary("*", (*big.Float).Mul)},
	"×":  {Level: 4, Fn: Binary("×", (*big.Float).Mul)},
	"/":  {Level: 4, Fn: Binary("/", (*big.Float).Quo)},
	"÷":  {Level: 4, Fn: Binary("÷", (*big.Float).Quo)},
	"%":  {Level: 4, Fn: Binary("%", rem)},
	"^":  {Level: 5, Fn: Binary("^", pow), Right: true},
}

// Binary wraps a big.Float method-like function into a BinaryFunc. If f panics
// with big.ErrNaN or a DomainError, e.g. for 0/0 or ∞-∞, the result is a
// DomainError naming the operator.
func Binary(name string, f func(z, x, y *big.Float) *big.Float) BinaryFunc {
	return func(z, x, y *big.Float) error {
		return catch(name, y, func() { f(z, x, y) })
	}
}

// rem computes the remainder of x/y truncated toward zero, matching the sign
// of x.
func rem(z, x, y *big.Float) *big.Float {
	switch {
	case x.IsInf() || y.Sign() == 0:
		panic(DomainError{X: y, Func: "%"})
	case y.IsInf():
		return z.Set(x)
	}
	// The truncated quotient must hold every bit of the integer part of x/y.
	prec := uint(max(x.MantExp(nil)-y.MantExp(nil), 0)) + y.MinPrec() + z.Prec() + 1
	q := new(big.Float).SetPrec(prec).SetMode(big.ToZero).Quo(x, y)
	n, _ := q.Int(nil)
	q.SetInt(n).Mul(q, y)
	return z.Sub(x, q)
}

// pow computes x^y. Integer exponents are computed by repeated squaring, so
// negative bases are allowed with them.
func pow(z, x, y *big.Float) *big.Float {
	if y.IsInt() {
		if n, acc := y.Int64(); acc == big.Exact && n != math.MinInt64 {
			return powi(z, x, n)
		}
		if x.Sign() < 0 && !x.IsInf() {
			// Exponents beyond int64: the sign comes from the parity.
			n, _ := y.Int(nil)
			bigfloat.Pow(z, new(big.Float).Abs(x), y)
			if n.Bit(0) != 0 {
				z.Neg(z)
			}
			return z
		}
	}
	if x.IsInf() || y.IsInf() {
		xf, _ := x.Float64()
		yf, _ := y.Float64()
		r := math.Pow(xf, yf)
		if math.IsNaN(r) {
			panic(DomainError{X: x, Func: "^"})
		}
		return z.SetFloat64(r)
	}
	switch x.Sign() {
	case -1:
		panic(DomainError{X: x, Func: "^"})
	case 0:
		if y.Sign() < 0 {
			return z.SetInf(false)
		}
		return z.SetInt64(0)
	}
	return bigfloat.Pow(z, x, y)
}

func powi(z, x *big.Float, n int64) *big.Float {
	prec := z.Prec()
	if prec == 0 {
		prec = x.Prec()
	}
	r := new(big.Float).SetPrec(prec).SetInt64(1)
	b := new(big.Float).SetPrec(prec).Set(x)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		if n&1 != 0 {
			r.Mul(r, b)
		}
		n >>= 1
		if n > 0 {
			b.Mul(b, b)
		}
	}
	if neg {
		if r.Sign() == 0 {
			return z.SetInf(false)
		}
		one := new(big.Float).SetPrec(prec).SetInt64(1)
		r.Quo(one, r)
	}
	return z.Set(r)
}

// toint truncates a finite value to an integer.
func toint(x *big.Float, name string) (*big.Int, error) {
	if x.IsInf() {
		return nil, DomainError{X: x, Func: name}
	}
	n, _ := x.Int(nil)
	return n, nil
}

func bitwise(name string, f func(z, x, y *big.Int) *big.Int) BinaryFunc {
	return func(z, x, y *big.Float) error {
		a, err := toint(x, name)
		if err != nil {
			return err
		}
		b, err := toint(y, name)
		if err != nil {
			return err
		}
		z.SetInt(f(a, a, b))
		return nil
	}
}

// maxshift is the largest shift the shift operators accept.
const maxshift = 1 << 16

func shift(name string, f func(z, x *big.Int, n uint) *big.Int) BinaryFunc {
	return func(z, x, y *big.Float) error {
		a, err := toint(x, name)
		if err != nil {
			return err
		}
		b, err := toint(y, name)
		if err != nil {
			return err
		}
		if b.Sign() < 0 || b.Cmp(big.NewInt(maxshift)) > 0 {
			return DomainError{X: y, Arg: 2, Func: name}
		}
		z.SetInt(f(a, a, uint(b.Uint64())))
		return nil
	}
}
