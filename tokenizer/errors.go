package tokenizer

import (
	"strconv"
	"strings"
)

// LexError indicates input that no reachable rule accepts.
type LexError struct {
	// Index is the byte offset at which scanning failed.
	Index int
	// Expected is the names of the rules which could have matched at Index.
	Expected []string
	// Message describes the failure.
	Message string
	// Err is the error returned by a rule's hook, if that caused the failure.
	Err error
}

func (err *LexError) Error() string {
	return strconv.Itoa(err.Index) + ": " + err.Message
}

// Pos returns the byte offset of the failure.
func (err *LexError) Pos() int {
	return err.Index
}

func (err *LexError) Unwrap() error {
	return err.Err
}

func expecting(names []string) string {
	if len(names) == 0 {
		return "expecting end of input"
	}
	return "expecting " + strings.Join(names, ", ")
}

// ConfigError indicates a defect in a grammar definition.
type ConfigError struct {
	// Rule is the rule with the defect, if any.
	Rule string
	// Set is the next-set with the defect, if any.
	Set string
	// Ref is the dangling reference, if any.
	Ref string
	// Msg describes the defect.
	Msg string
}

func (err *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("tokenizer: ")
	switch {
	case err.Rule != "":
		b.WriteString("rule " + strconv.Quote(err.Rule) + ": ")
	case err.Set != "":
		b.WriteString("next-set " + strconv.Quote(err.Set) + ": ")
	}
	b.WriteString(err.Msg)
	if err.Ref != "" {
		b.WriteString(" " + strconv.Quote(err.Ref))
	}
	return b.String()
}

// StallError indicates a grammar in which rules keep matching without
// consuming input.
type StallError struct {
	// Index is the offset at which the tokenizer stalled.
	Index int
	// Limit is the number of matches without progress that were allowed.
	Limit int
	// Rule is the rule that matched last.
	Rule string
}

func (err *StallError) Error() string {
	return "tokenizer: no progress after " + strconv.Itoa(err.Limit) + " matches at index " + strconv.Itoa(err.Index) + " (last rule " + strconv.Quote(err.Rule) + ")"
}
