package polish_test

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephyrtronium/polish"
)

func TestEval(t *testing.T) {
	cases := []struct {
		name string
		src  string
		r    float64
	}{
		{"num", "1", 1},
		{"add", "4+5+6", 4 + 5 + 6},
		{"sub", "4-5-6", 4 - 5 - 6},
		{"mul", "4*5*6", 4 * 5 * 6},
		{"div", "4/5/6", 4.0 / 5.0 / 6.0},
		{"prec", "1+2*3", 7},
		{"group", "(1+2)*3", 9},
		{"pow", "2^3^2", 512},
		{"pow-neg-exp", "2^-1", 0.5},
		{"pow-neg-base", "(-2)^3", -8},
		{"pow-real", "4^0.5", 2},
		{"rem", "7%3", 1},
		{"rem-neg", "-7%3", -1},
		{"rem-big", "2^100%7", 2},
		{"rem-big-3", "2^100%3", 1},
		{"pow-big-even", "(-1)^2000000", 1},
		{"pow-big-odd", "(-1)^2000001", -1},
		{"alt", "2×3÷4", 1.5},
		{"exp-literal", "1e3+1", 1001},
		{"signed", "-3+1", -2},
		{"lsh", "1<<4", 16},
		{"rsh", "256>>2", 64},
		{"and", "6&3", 2},
		{"or", "6|3", 7},
		{"sqrt", "sqrt(16)", 4},
		{"root", "sqrt(27, 3)", 3},
		{"log", "log(1000)", 3},
		{"log-base", "log(8, 2)", 3},
		{"ln", "ln(e)", 1},
		{"exp", "exp(1)", math.E},
		{"max", "max(1, 5, 3)", 5},
		{"min", "min(4, 2, 8)", 2},
		{"abs", "abs(-3)", 3},
		{"sign", "sign(-2)", -1},
		{"floor", "floor(2.7)", 2},
		{"ceil", "ceil(2.1)", 3},
		{"round", "round(2.5)", 3},
		{"trunc", "trunc(-2.5)", -2},
		{"sin", "sin(0)", 0},
		{"cos", "cos(0)", 1},
		{"nested", "sqrt(max(9, 4))+1", 4},
		{"call-operand", "2*sqrt(4)^2", 8},
		{"pi", "pi", math.Pi},
		{"e", "e", math.E},
		{"phi", "phi", math.Phi},
		{"inf", "inf", math.Inf(1)},
		{"min-inf", "minInf", math.Inf(-1)},
		{"inf-sum", "inf+1", math.Inf(1)},
		{"big", "(-3+1)-(-1*-8)*(8/-4)+2/8*4-16/4+4", 15},
	}
	ctx := polish.NewContext()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rpn, err := ctx.Calculate(c.src, polish.RPN)
			require.NoError(t, err)
			pn, err := ctx.Calculate(c.src, polish.PN)
			require.NoError(t, err)
			assert.Zero(t, rpn.Cmp(pn), "RPN gave %g, PN gave %g", rpn, pn)
			r, _ := rpn.Float64()
			if math.IsInf(c.r, 0) {
				assert.Equal(t, c.r, r)
				return
			}
			assert.InDelta(t, c.r, r, 1e-12)
		})
	}
}

func TestEvalUndefNames(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		undef   string
		fn      bool
		suggest string
	}{
		{"const", "x", "x", false, ""},
		{"add-lhs", "x+1", "x", false, ""},
		{"add-rhs", "1+x", "x", false, ""},
		{"pow-rhs", "1^x", "x", false, ""},
		{"param", "exp(x)", "x", false, ""},
		{"near-const", "p*2", "p", false, "pi"},
		{"func", "z(1)", "z", true, ""},
		{"near-func", "sqr(4)", "sqr", true, "sqrt"},
	}
	ctx := polish.NewContext()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			for _, mode := range []polish.Mode{polish.RPN, polish.PN} {
				r, err := ctx.Calculate(c.src, mode)
				assert.Nil(t, r)
				var nerr *polish.NameError
				require.ErrorAs(t, err, &nerr, mode)
				assert.Equal(t, c.undef, nerr.Name)
				assert.Equal(t, c.fn, nerr.Func)
				assert.Equal(t, c.suggest, nerr.Suggest)
				assert.Contains(t, err.Error(), "undefined")
				assert.Contains(t, err.Error(), fmt.Sprintf("%q", c.undef))
				var eerr *polish.EvalError
				require.ErrorAs(t, err, &eerr)
				assert.Equal(t, c.undef, eerr.Tok.Text)
			}
		})
	}
}

func TestEvalDomainError(t *testing.T) {
	cases := []struct {
		name string
		src  string
		fn   string
	}{
		{"div-zero", "0/0", "/"},
		{"div-inf", "inf/inf", "/"},
		{"div-alt-zero", "0÷0", "÷"},
		{"sub-inf", "inf-inf", "-"},
		{"mul-inf", "0*inf", "*"},
		{"pow-neg", "(-1)^0.5", "^"},
		{"rem-zero", "1%0", "%"},
		{"shift-neg", "1<<-1", "<<"},
		{"and-inf", "inf&1", "&"},
		{"sqrt", "sqrt(-1)", "sqrt"},
		{"ln", "ln(-1)", "ln"},
		{"log", "log(-1)", "log"},
		{"log-base", "log(1, -1)", "log"},
		{"asin", "asin(2)", ""},
	}
	ctx := polish.NewContext()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			for _, mode := range []polish.Mode{polish.RPN, polish.PN} {
				r, err := ctx.Calculate(c.src, mode)
				assert.Nil(t, r)
				var derr polish.DomainError
				require.ErrorAs(t, err, &derr, mode)
				assert.Equal(t, c.fn, derr.Func)
				var eerr *polish.EvalError
				require.ErrorAs(t, err, &eerr)
				assert.GreaterOrEqual(t, eerr.Pos(), 0)
			}
		})
	}
}

func TestEvalArity(t *testing.T) {
	cases := []struct {
		name string
		src  string
		n    int
	}{
		{"sqrt", "sqrt()", 0},
		{"ln", "ln(1, 2)", 2},
		{"random", "random(1)", 1},
		{"max", "max()", 0},
	}
	ctx := polish.NewContext()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ctx.Calculate(c.src, polish.RPN)
			var cerr *polish.CallError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, c.n, cerr.Len)
			assert.Equal(t, 0, cerr.Pos())
		})
	}
	r, err := ctx.Calculate("random()", polish.PN)
	require.NoError(t, err)
	f, _ := r.Float64()
	assert.True(t, 0 <= f && f < 1, "random() gave %g", f)
}

func TestEvalErrorStack(t *testing.T) {
	ctx := polish.NewContext()
	_, err := ctx.Calculate("1+2+x", polish.RPN)
	var eerr *polish.EvalError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, 3, eerr.Index)
	assert.Equal(t, 4, eerr.Pos())
	require.Len(t, eerr.Stack, 1)
	assert.Zero(t, eerr.Stack[0].Cmp(big.NewFloat(3)))
	assert.Equal(t, "4: undefined constant \"x\"", err.Error())
}

func TestEvalStackError(t *testing.T) {
	ctx := polish.NewContext()
	for _, mode := range []polish.Mode{polish.RPN, polish.PN} {
		_, err := ctx.Calculate("1+()", mode)
		var serr *polish.StackError
		require.ErrorAs(t, err, &serr, mode)
		assert.Equal(t, "+", serr.Op)
		assert.Equal(t, 1, serr.Len)
	}

	toks := []*polish.Token{
		{Kind: polish.KindNumber, Text: "1"},
		{Kind: polish.KindNumber, Text: "2", Pos: 2},
	}
	_, err := ctx.EvalNotation(toks, polish.RPN)
	var eerr *polish.EvalError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, -1, eerr.Index)
	assert.Equal(t, -1, eerr.Pos())
	assert.Len(t, eerr.Stack, 2)
	var serr *polish.StackError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "", serr.Op)
	assert.Equal(t, 2, serr.Len)

	_, err = ctx.EvalNotation(nil, polish.PN)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 0, serr.Len)
}

func TestEvalStrayTokens(t *testing.T) {
	ctx := polish.NewContext()
	one := &polish.Token{Kind: polish.KindNumber, Text: "1"}
	_, err := ctx.EvalNotation([]*polish.Token{one, {Kind: polish.KindOpenBracket, Text: "(", Pos: 1}}, polish.RPN)
	var berr *polish.BracketError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, 1, berr.Pos())
	_, err = ctx.EvalNotation([]*polish.Token{{Kind: polish.KindSeparator, Text: ","}, one}, polish.PN)
	var serr *polish.SeparatorError
	require.ErrorAs(t, err, &serr)
	_, err = ctx.EvalNotation([]*polish.Token{one, one, {Kind: polish.KindOperator, Text: "?"}}, polish.RPN)
	var oerr *polish.OperatorError
	require.ErrorAs(t, err, &oerr)
	_, err = ctx.EvalNotation([]*polish.Token{{Kind: polish.KindNumber, Text: "1.2.3"}}, polish.RPN)
	var eerr *polish.EvalError
	require.ErrorAs(t, err, &eerr)
	assert.Contains(t, err.Error(), "invalid number")
}

func TestEvalOverflow(t *testing.T) {
	r, err := polish.EvalString("1e999999999999999999999", polish.RPN)
	require.NoError(t, err)
	assert.True(t, r.IsInf())
	assert.False(t, r.Signbit())
	r, err = polish.EvalString("-1e999999999999999999999", polish.PN)
	require.NoError(t, err)
	assert.True(t, r.IsInf())
	assert.True(t, r.Signbit())
}

func TestEvalLargeIntegers(t *testing.T) {
	ctx := polish.NewContext(polish.Prec(1100))
	for _, mode := range []polish.Mode{polish.RPN, polish.PN} {
		r, err := ctx.Calculate("10^300%7", mode)
		require.NoError(t, err)
		assert.Zero(t, r.Cmp(big.NewFloat(1)), "10^300%%7 gave %g", r)
		r, err = ctx.Calculate("(0-10^300)%7", mode)
		require.NoError(t, err)
		assert.Zero(t, r.Cmp(big.NewFloat(-1)), "(0-10^300)%%7 gave %g", r)

		r, err = ctx.Calculate("(-2)^2000001", mode)
		require.NoError(t, err)
		assert.True(t, r.Signbit())
		assert.False(t, r.IsInf())
		assert.Equal(t, 2000002, r.MantExp(nil))

		r, err = ctx.Calculate("(-1)^(2^70+1)", mode)
		require.NoError(t, err)
		assert.True(t, r.Signbit())
		r, err = ctx.Calculate("(-1)^(2^70)", mode)
		require.NoError(t, err)
		assert.False(t, r.Signbit())
	}
}

func TestContextConsts(t *testing.T) {
	two := big.NewFloat(2)
	ctx := polish.NewContext(polish.SetConst("x", two))
	r, err := ctx.Calculate("x^2+1", polish.RPN)
	require.NoError(t, err)
	assert.Zero(t, r.Cmp(big.NewFloat(5)))

	x := ctx.Lookup("x")
	require.NotNil(t, x)
	x.SetInt64(100)
	assert.Zero(t, ctx.Lookup("x").Cmp(two), "Lookup must return a copy")
	assert.Nil(t, ctx.Lookup("y"))

	next := ctx.Clone(polish.SetConsts(map[string]*big.Float{"y": big.NewFloat(3)}))
	r, err = next.Calculate("x*y", polish.PN)
	require.NoError(t, err)
	assert.Zero(t, r.Cmp(big.NewFloat(6)))
	_, err = ctx.Calculate("y", polish.RPN)
	assert.Error(t, err, "Clone must not modify the original")

	gone := next.Clone(polish.SetConst("x", nil))
	assert.Nil(t, gone.Lookup("x"))
	consts, funcs := gone.Names()
	assert.Contains(t, consts, "y")
	assert.NotContains(t, consts, "x")
	assert.Contains(t, funcs, "sqrt")
}

func TestContextPrec(t *testing.T) {
	ctx := polish.NewContext(polish.Prec(200), polish.SetConst("x", big.NewFloat(0.5)))
	assert.Equal(t, uint(200), ctx.Prec())
	assert.Equal(t, uint(200), ctx.Lookup("pi").Prec())
	r, err := ctx.Calculate("1/3", polish.RPN)
	require.NoError(t, err)
	assert.Equal(t, uint(200), r.Prec())

	low := ctx.Clone(polish.Prec(24))
	assert.Equal(t, uint(24), low.Prec())
	pi := low.Lookup("pi")
	assert.Equal(t, uint(24), pi.Prec())
	f, _ := pi.Float64()
	assert.InDelta(t, math.Pi, f, 1e-6)
	x := low.Lookup("x")
	require.NotNil(t, x)
	assert.Equal(t, uint(24), x.Prec())
	assert.Zero(t, x.Cmp(big.NewFloat(0.5)))

	// Redefined defaults are kept instead of recomputed.
	mine := polish.NewContext(polish.SetConst("pi", big.NewFloat(3)))
	assert.Zero(t, mine.Clone(polish.Prec(100)).Lookup("pi").Cmp(big.NewFloat(3)))
}

func TestContextFuncs(t *testing.T) {
	double := polish.Monadic(func(out, in *big.Float) *big.Float {
		return out.Add(in, in)
	})
	ctx := polish.NewContext(polish.SetFunc("double", double))
	r, err := ctx.Calculate("double(3)+1", polish.PN)
	require.NoError(t, err)
	assert.Zero(t, r.Cmp(big.NewFloat(7)))
	assert.NotNil(t, ctx.Func("double"))
	assert.Nil(t, polish.NewContext().Func("double"))

	bare := ctx.Clone(polish.SetFuncs(polish.DisableDefaultFuncs()))
	_, err = bare.Calculate("sqrt(4)", polish.RPN)
	var nerr *polish.NameError
	require.ErrorAs(t, err, &nerr)
	assert.True(t, nerr.Func)
	_, funcs := bare.Names()
	assert.Equal(t, []string{"double"}, funcs)
}

func TestContextOperators(t *testing.T) {
	ctx := polish.NewContext(
		polish.SetOperator("**", polish.Operator{Level: 5, Fn: polish.Binary("**", (*big.Float).Mul), Right: true}),
		polish.SetOperator("%", polish.Operator{}),
	)
	r, err := ctx.Calculate("2**3*4", polish.RPN)
	require.NoError(t, err)
	assert.Zero(t, r.Cmp(big.NewFloat(24)))
	op, ok := ctx.Operator("**")
	assert.True(t, ok)
	assert.Equal(t, 5, op.Level)
	_, ok = ctx.Operator("%")
	assert.False(t, ok)
	_, err = ctx.Calculate("7%3", polish.RPN)
	assert.Error(t, err)
}

func TestEvalSteps(t *testing.T) {
	ctx := polish.NewContext()
	cases := []struct {
		name   string
		src    string
		kinds  []polish.EvalStepKind
		nested []bool
	}{
		{
			name:   "op",
			src:    "1+2",
			kinds:  []polish.EvalStepKind{polish.EvalInsertValue, polish.EvalInsertValue, polish.EvalApplyOperator, polish.EvalResult},
			nested: []bool{false, false, false, false},
		},
		{
			name: "call",
			src:  "sqrt(4)+1",
			kinds: []polish.EvalStepKind{
				polish.EvalSnapshot,
				polish.EvalInsertValue,
				polish.EvalSnapshot,
				polish.EvalApplyFunction,
				polish.EvalInsertValue,
				polish.EvalApplyOperator,
				polish.EvalResult,
			},
			nested: []bool{true, true, false, false, false, false, false},
		},
		{
			name:   "niladic",
			src:    "random()",
			kinds:  []polish.EvalStepKind{polish.EvalApplyFunction, polish.EvalResult},
			nested: []bool{false, false},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := compile(t, ctx, c.src, polish.RPN)
			es := ctx.EvalSteps(n)
			var kinds []polish.EvalStepKind
			var nested []bool
			var last polish.EvalStep
			for st := range es.All() {
				kinds = append(kinds, st.Kind)
				nested = append(nested, st.Nested)
				last = st
			}
			assert.Equal(t, c.kinds, kinds)
			assert.Equal(t, c.nested, nested)
			r, err := es.Result()
			require.NoError(t, err)
			assert.Same(t, r, last.Value)
			assert.Equal(t, -1, last.Index)
		})
	}
}

func TestEvalStepsStacks(t *testing.T) {
	ctx := polish.NewContext()
	n := compile(t, ctx, "1+2*3", polish.PN)
	es := ctx.EvalSteps(n)
	var lens []int
	var texts []string
	for st := range es.All() {
		lens = append(lens, len(st.Stack))
		if st.Token != nil {
			texts = append(texts, st.Token.Text)
		}
	}
	// PN is evaluated from the end.
	assert.Equal(t, []string{"3", "2", "*", "1", "+"}, texts)
	assert.Equal(t, []int{1, 2, 1, 2, 1, 1}, lens)
	r, err := es.Result()
	require.NoError(t, err)
	assert.Zero(t, r.Cmp(big.NewFloat(7)))
}

func TestEvalStepsAgree(t *testing.T) {
	ctx := polish.NewContext()
	srcs := []string{"1", "2^3^2", "log(8, 2)*max(1, 2, 3)", "(-3+1)-(-1*-8)*(8/-4)+2/8*4-16/4+4"}
	for _, src := range srcs {
		for _, mode := range []polish.Mode{polish.RPN, polish.PN} {
			n := compile(t, ctx, src, mode)
			want, err := ctx.Eval(n)
			require.NoError(t, err)
			got, err := ctx.EvalSteps(n).Result()
			require.NoError(t, err)
			assert.Zero(t, want.Cmp(got), "%s in %v: eval gave %g, steps gave %g", src, mode, want, got)
		}
	}
}

func TestEvalStepsStop(t *testing.T) {
	ctx := polish.NewContext()
	n := compile(t, ctx, "1+2+3", polish.RPN)

	es := ctx.EvalSteps(n)
	_, ok := es.Step()
	require.True(t, ok)
	es.Stop()
	_, ok = es.Step()
	assert.False(t, ok)
	r, err := es.Result()
	assert.Nil(t, r)
	assert.ErrorIs(t, err, polish.ErrStopped)

	// Breaking out of All does not stop the stepper.
	es = ctx.EvalSteps(n)
	for range es.All() {
		break
	}
	r, err = es.Result()
	require.NoError(t, err)
	assert.Zero(t, r.Cmp(big.NewFloat(6)))
}

func TestEvalStepsError(t *testing.T) {
	ctx := polish.NewContext()
	n := compile(t, ctx, "1+x", polish.RPN)
	es := ctx.EvalSteps(n)
	count := 0
	for range es.All() {
		count++
	}
	assert.Equal(t, 1, count)
	_, err := es.Result()
	var nerr *polish.NameError
	assert.ErrorAs(t, err, &nerr)
}

func TestEvalString(t *testing.T) {
	r, err := polish.EvalString("x*2", polish.PN, polish.SetConst("x", big.NewFloat(21)))
	require.NoError(t, err)
	assert.Zero(t, r.Cmp(big.NewFloat(42)))
	_, err = polish.EvalString("1 2", polish.RPN)
	var ierr polish.InputError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, 2, ierr.Pos())
}

func TestCalculateConcurrent(t *testing.T) {
	ctx := polish.NewContext(polish.SetConst("x", big.NewFloat(2)))
	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mode := polish.Mode(i % 2)
			r, err := ctx.Calculate(fmt.Sprintf("x^%d + sqrt(16)", i), mode)
			if err != nil {
				errs[i] = err
				return
			}
			want := new(big.Float).SetInt64(1<<i + 4)
			if r.Cmp(want) != 0 {
				errs[i] = fmt.Errorf("x^%d + sqrt(16) gave %g, want %g", i, r, want)
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func BenchmarkEval(b *testing.B) {
	consts := map[string]*big.Float{
		"x": big.NewFloat(2),
		"y": big.NewFloat(3),
		"z": big.NewFloat(4),
	}
	for _, mode := range []polish.Mode{polish.RPN, polish.PN} {
		b.Run("nums-"+mode.String(), func(b *testing.B) {
			b.ReportAllocs()
			ctx := polish.NewContext(polish.Prec(64))
			toks, err := ctx.Tokenize("2+3+4")
			if err != nil {
				b.Fatal(err)
			}
			n, err := ctx.Compile(toks, mode)
			if err != nil {
				b.Fatal(err)
			}
			for b.Loop() {
				ctx.Eval(n)
			}
		})
		b.Run("consts-"+mode.String(), func(b *testing.B) {
			b.ReportAllocs()
			ctx := polish.NewContext(polish.SetConsts(consts), polish.Prec(64))
			toks, err := ctx.Tokenize("x+y*sqrt(z)")
			if err != nil {
				b.Fatal(err)
			}
			n, err := ctx.Compile(toks, mode)
			if err != nil {
				b.Fatal(err)
			}
			for b.Loop() {
				ctx.Eval(n)
			}
		})
	}
}

func BenchmarkCalculate(b *testing.B) {
	ctx := polish.NewContext()
	b.ReportAllocs()
	for b.Loop() {
		ctx.Calculate("(-3+1)-(-1*-8)*(8/-4)+2/8*4-16/4+4", polish.RPN)
	}
}

func Example() {
	ctx := polish.NewContext(polish.Prec(64))
	for i := range 4 {
		ctx := ctx.Clone(polish.SetConst("x", big.NewFloat(float64(i))))
		y, _ := ctx.Calculate("x^3/2 - x", polish.RPN)
		yp, _ := ctx.Calculate("3*x^2/2 - 1", polish.PN)
		ypp, _ := ctx.Calculate("3*x", polish.RPN)
		fmt.Printf("x = %d   y = %-4g  y' = %-4g  y'' = %g\n", i, y, yp, ypp)
	}

	// Output:
	// x = 0   y = 0     y' = -1    y'' = 0
	// x = 1   y = -0.5  y' = 0.5   y'' = 3
	// x = 2   y = 2     y' = 5     y'' = 6
	// x = 3   y = 10.5  y' = 12.5  y'' = 9
}
