package polish

import (
	"errors"
	"math/big"
	"sort"
	"strconv"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/zephyrtronium/polish/tokenizer"
)

// InputError is an error with position information. Every error resulting
// from invalid input implements InputError.
type InputError interface {
	error
	// Pos returns the byte offset in the input of the token that caused the
	// error, or -1 if no single token did.
	Pos() int
}

var (
	_ InputError = (*OperatorError)(nil)
	_ InputError = (*BracketError)(nil)
	_ InputError = (*SeparatorError)(nil)
	_ InputError = (*CallError)(nil)
	_ InputError = (*EmptyExpressionError)(nil)
	_ InputError = (*EvalError)(nil)
	_ InputError = (*tokenizer.LexError)(nil)
)

// ErrStopped is the error from a Stepper which was stopped before its
// computation finished.
var ErrStopped = errors.New("polish: stopped")

func tokpos(tok *Token) int {
	if tok == nil {
		return -1
	}
	return tok.Pos
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	if pos < 0 {
		return msg
	}
	return strconv.Itoa(pos) + ": " + msg
}

// OperatorError is an error indicating an operator token that is not in the
// operator registry.
type OperatorError struct {
	// Index is the index of Tok in the sequence being processed.
	Index int
	// Tok is the operator.
	Tok *Token
}

func (err *OperatorError) Error() string {
	return errpos(err.Pos(), "unknown operator "+strconv.Quote(err.Tok.Text))
}

func (err *OperatorError) Pos() int {
	return tokpos(err.Tok)
}

// BracketError is an error indicating a bracket without a partner.
type BracketError struct {
	// Index is the index of Tok in the token stream.
	Index int
	// Tok is the unmatched bracket.
	Tok *Token
}

func (err *BracketError) Error() string {
	if err.Tok.Kind == KindOpenBracket {
		return errpos(err.Pos(), "open bracket with no close bracket")
	}
	return errpos(err.Pos(), "close bracket with no open bracket")
}

func (err *BracketError) Pos() int {
	return tokpos(err.Tok)
}

// SeparatorError is an error indicating an argument separator outside the
// argument list of a function call.
type SeparatorError struct {
	// Index is the index of Tok in the token stream.
	Index int
	// Tok is the separator.
	Tok *Token
}

func (err *SeparatorError) Error() string {
	return errpos(err.Pos(), "invalid occurrence of separator "+strconv.Quote(err.Tok.Text))
}

func (err *SeparatorError) Pos() int {
	return tokpos(err.Tok)
}

// CallError is an error indicating a function call with no argument list or
// with a number of arguments the function does not accept.
type CallError struct {
	// Index is the index of Tok in the sequence being processed.
	Index int
	// Tok is the function call.
	Tok *Token
	// Len is the number of arguments in the call, or -1 if the call has no
	// argument list.
	Len int
}

func (err *CallError) Error() string {
	if err.Len < 0 {
		return errpos(err.Pos(), "function "+strconv.Quote(err.Tok.Text)+" not followed by an argument list")
	}
	return errpos(err.Pos(), "cannot call "+err.Tok.Text+" with "+strconv.Itoa(err.Len)+" arguments")
}

func (err *CallError) Pos() int {
	return tokpos(err.Tok)
}

// EmptyExpressionError is an error indicating an empty function argument.
type EmptyExpressionError struct {
	// Index is the index of Tok in the token stream.
	Index int
	// Tok is the separator or close bracket that ended the empty argument.
	Tok *Token
}

func (err *EmptyExpressionError) Error() string {
	return errpos(err.Pos(), "no expression up to "+strconv.Quote(err.Tok.Text))
}

func (err *EmptyExpressionError) Pos() int {
	return tokpos(err.Tok)
}

// EvalError is an error from evaluating a notation. Err describes the
// failure; it is a *NameError, *StackError, *CallError, *OperatorError,
// DomainError, or an error from a Func.
type EvalError struct {
	// Index is the index of Tok in the notation being evaluated.
	Index int
	// Tok is the token being evaluated, or nil if the error concerns the
	// notation as a whole.
	Tok *Token
	// Stack is the value stack at the time of the error.
	Stack []*big.Float
	// Err is the cause.
	Err error
}

func (err *EvalError) Error() string {
	return errpos(err.Pos(), err.Err.Error())
}

func (err *EvalError) Pos() int {
	return tokpos(err.Tok)
}

func (err *EvalError) Unwrap() error {
	return err.Err
}

// NameError is an error from a lookup for a constant or function that is
// missing from the registry.
type NameError struct {
	// Name is the name that was missing.
	Name string
	// Func is true if Name was called as a function.
	Func bool
	// Suggest is a registered name resembling Name, if there is one.
	Suggest string
}

func (err *NameError) Error() string {
	s := "undefined constant "
	if err.Func {
		s = "undefined function "
	}
	s += strconv.Quote(err.Name)
	if err.Suggest != "" {
		s += " (did you mean " + strconv.Quote(err.Suggest) + "?)"
	}
	return s
}

// StackError is an error indicating that the value stack does not hold the
// values an operation needs. Notations produced by the compiler only cause it
// when they contain empty bracketed groups, as in "1+()".
type StackError struct {
	// Op is the operator that lacked operands, or the empty string if the
	// stack held the wrong number of values at the end of evaluation.
	Op string
	// Len is the number of values on the stack.
	Len int
}

func (err *StackError) Error() string {
	if err.Op != "" {
		return "missing operands for operator " + strconv.Quote(err.Op) + " (have " + strconv.Itoa(err.Len) + ")"
	}
	return "inconsistent result stack: " + strconv.Itoa(err.Len) + " values"
}

// suggest finds the candidate closest to name.
func suggest(name string, candidates []string) string {
	sort.Strings(candidates)
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Stable(ranks)
	return ranks[0].Target
}
