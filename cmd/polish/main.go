package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/zephyrtronium/polish"
)

// errReported is returned by commands which already printed their error.
var errReported = errors.New("error reported")

func main() {
	if err := rootCommand().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "polish:", err)
		}
		os.Exit(1)
	}
}

// flags holds the command line flags shared by all commands.
type flags struct {
	mode   string
	prec   uint
	given  []string
	config string
	in     string
	verb   string
	debug  bool
}

func rootCommand() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:   "polish [expr...]",
		Short: "Evaluate expressions through Polish notations",
		Long: "polish evaluates arithmetic expressions by compiling them to Reverse Polish\n" +
			"Notation or Polish Notation. With no expressions and no input file, it starts\n" +
			"an interactive session.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.settings(cmd)
			if err != nil {
				return err
			}
			ctx, err := s.context()
			if err != nil {
				return err
			}
			exprs := args
			if f.in != "" {
				lines, err := readLines(f.in)
				if err != nil {
					return err
				}
				exprs = append(lines, exprs...)
			}
			if len(exprs) == 0 {
				return repl(cmd.OutOrStdout(), ctx, s.mode, f.verb)
			}
			failed := false
			for _, src := range exprs {
				r, err := ctx.Calculate(src, s.mode)
				if err != nil {
					report(cmd.ErrOrStderr(), src, err)
					failed = true
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), f.verb+"\n", r)
			}
			if failed {
				return errReported
			}
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.mode, "mode", "rpn", "notation to compile to, rpn or pn")
	pf.UintVarP(&f.prec, "prec", "p", 64, "precision of calculations in bits")
	pf.StringArrayVar(&f.given, "given", nil, "name=value constant definition (any number of times)")
	pf.StringVar(&f.config, "config", "", "YAML configuration file")
	pf.BoolVar(&f.debug, "debug", false, "log tokenizer, compiler, and evaluator activity (also POLISH_DEBUG)")
	pf.StringVar(&f.verb, "fmt", "%g", "result formatting string")
	root.Flags().StringVar(&f.in, "in", "", "file of expressions, one per line (- for stdin)")

	root.AddCommand(tokensCommand(&f), notationCommand(&f), stepsCommand(&f))
	return root
}

func (f *flags) settings(cmd *cobra.Command) (*settings, error) {
	mode, err := polish.ParseMode(f.mode)
	if err != nil {
		return nil, err
	}
	s := settings{prec: f.prec, mode: mode, log: newLogger(cmd.ErrOrStderr(), f.debug)}
	for _, g := range f.given {
		d, err := parseGiven(g)
		if err != nil {
			return nil, err
		}
		s.given = append(s.given, d)
	}
	if f.config != "" {
		c, err := loadConfig(f.config)
		if err != nil {
			return nil, err
		}
		if err := s.merge(c, cmd.Flags().Changed("prec"), cmd.Flags().Changed("mode")); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

func tokensCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens expr",
		Short: "Print the tokens of an expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.settings(cmd)
			if err != nil {
				return err
			}
			ctx, err := s.context()
			if err != nil {
				return err
			}
			toks, err := ctx.Tokenize(args[0])
			if err != nil {
				return report(cmd.ErrOrStderr(), args[0], err)
			}
			w := cmd.OutOrStdout()
			for _, tok := range toks {
				fmt.Fprintf(w, "%d\t%s\t%q\t%d-%d\n", tok.ID, tok.Kind, tok.Text, tok.Pos, tok.End)
			}
			return nil
		},
	}
}

func notationCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "notation expr",
		Short: "Print the compiled notation of an expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.settings(cmd)
			if err != nil {
				return err
			}
			ctx, err := s.context()
			if err != nil {
				return err
			}
			n, err := compile(ctx, args[0], s.mode)
			if err != nil {
				return report(cmd.ErrOrStderr(), args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func stepsCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "steps expr",
		Short: "Trace compiling and evaluating an expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.settings(cmd)
			if err != nil {
				return err
			}
			ctx, err := s.context()
			if err != nil {
				return err
			}
			src := args[0]
			toks, err := ctx.Tokenize(src)
			if err != nil {
				return report(cmd.ErrOrStderr(), src, err)
			}
			if err := trace(cmd.OutOrStdout(), ctx, toks, s.mode, f.verb); err != nil {
				return report(cmd.ErrOrStderr(), src, err)
			}
			return nil
		},
	}
}

func compile(ctx *polish.Context, src string, mode polish.Mode) (*polish.Notation, error) {
	toks, err := ctx.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return ctx.Compile(toks, mode)
}

// trace prints every compile and evaluation step.
func trace(w io.Writer, ctx *polish.Context, toks []*polish.Token, mode polish.Mode, verb string) error {
	cs := ctx.CompileSteps(toks, mode)
	for st := range cs.All() {
		fmt.Fprintf(w, "%-20s %-8s out: %-24s stack: %s\n", st.Kind, strings.TrimSpace(st.Token.Text), polish.Format(st.Output), polish.Format(st.Stack))
	}
	n, err := cs.Result()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s\n", n.Mode, n)
	es := ctx.EvalSteps(n)
	for st := range es.All() {
		indent := ""
		if st.Nested {
			indent = "  "
		}
		text := ""
		if st.Token != nil {
			text = strings.TrimSpace(st.Token.Text)
		}
		fmt.Fprintf(w, "%s%-16s %-8s stack: %s\n", indent, st.Kind, text, values(st.Stack, verb))
	}
	r, err := es.Result()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "= "+verb+"\n", r)
	return nil
}

func values(s []*big.Float, verb string) string {
	v := make([]string, len(s))
	for i, x := range s {
		v[i] = fmt.Sprintf(verb, x)
	}
	return "[" + strings.Join(v, " ") + "]"
}

// report prints an error, marking its position in the input if it has one.
// The result is errReported.
func report(w io.Writer, src string, err error) error {
	var ierr polish.InputError
	if errors.As(err, &ierr) && ierr.Pos() >= 0 && ierr.Pos() <= len(src) {
		fmt.Fprintf(w, "%s\n%s^\n", src, strings.Repeat(" ", utf8.RuneCountInString(src[:ierr.Pos()])))
	}
	fmt.Fprintln(w, err)
	return errReported
}

func readLines(name string) ([]string, error) {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			lines = append(lines, s)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return lines, nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug || os.Getenv("POLISH_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

const historyFile = ".polish_history"

// repl runs an interactive session. Lines are expressions, assignments
// "name = expr", or commands starting with a colon.
func repl(w io.Writer, ctx *polish.Context, mode polish.Mode, verb string) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()
	ln.SetCompleter(func(line string) []string {
		consts, funcs := ctx.Names()
		start := strings.LastIndexFunc(line, func(r rune) bool { return !nameRune(r) }) + 1
		word := line[start:]
		if word == "" {
			return nil
		}
		var r []string
		for _, c := range consts {
			if strings.HasPrefix(c, word) {
				r = append(r, line[:start]+c)
			}
		}
		for _, f := range funcs {
			if strings.HasPrefix(f, word) {
				r = append(r, line[:start]+f+"(")
			}
		}
		return r
	})

	for {
		line, err := ln.Prompt(mode.String() + "> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(w)
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		if strings.HasPrefix(line, ":") {
			cmd, arg, _ := strings.Cut(line[1:], " ")
			switch cmd {
			case "quit", "q":
				return nil
			case "mode":
				m, err := polish.ParseMode(strings.TrimSpace(arg))
				if err != nil {
					fmt.Fprintln(w, err)
					continue
				}
				mode = m
			case "steps":
				toks, err := ctx.Tokenize(arg)
				if err == nil {
					err = trace(w, ctx, toks, mode, verb)
				}
				if err != nil {
					report(w, arg, err)
				}
			default:
				fmt.Fprintln(w, "commands: :mode rpn|pn, :steps expr, :quit")
			}
			continue
		}
		if name, expr, ok := define(line); ok {
			var r *big.Float
			ctx, r, err = assign(ctx, mode, name, expr)
			if err != nil {
				report(w, expr, err)
				continue
			}
			fmt.Fprintf(w, "%s = "+verb+"\n", name, r)
			continue
		}
		r, err := ctx.Calculate(line, mode)
		if err != nil {
			report(w, line, err)
			continue
		}
		fmt.Fprintf(w, verb+"\n", r)
	}
}
