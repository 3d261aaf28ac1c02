package main

import (
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zephyrtronium/polish"
)

// config is the contents of a configuration file. Flags override it.
type config struct {
	Prec uint   `yaml:"prec"`
	Mode string `yaml:"mode"`
	// Constants maps names to expressions. They are evaluated in sorted
	// order, so each may refer to constants with names sorting before it.
	Constants map[string]string `yaml:"constants"`
}

func loadConfig(path string) (*config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (*config, error) {
	var c config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if c.Mode != "" {
		if _, err := polish.ParseMode(c.Mode); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	return &c, nil
}

// given is a "name=value" definition from the command line.
type given struct {
	name, value string
}

func parseGiven(s string) (given, error) {
	d := strings.SplitN(s, "=", 2)
	if len(d) != 2 {
		return given{}, fmt.Errorf(`constant definitions must be "name=value", not %q`, s)
	}
	return given{strings.TrimSpace(d[0]), strings.TrimSpace(d[1])}, nil
}

// settings is the merged configuration of a run.
type settings struct {
	prec  uint
	mode  polish.Mode
	given []given
	log   *slog.Logger
}

// merge applies a config file beneath the settings from flags. Fields of
// s which were set explicitly are kept.
func (s *settings) merge(c *config, precSet, modeSet bool) error {
	if c == nil {
		return nil
	}
	if !precSet && c.Prec != 0 {
		s.prec = c.Prec
	}
	if !modeSet && c.Mode != "" {
		m, err := polish.ParseMode(c.Mode)
		if err != nil {
			return err
		}
		s.mode = m
	}
	names := make([]string, 0, len(c.Constants))
	for k := range c.Constants {
		names = append(names, k)
	}
	slices.Sort(names)
	defs := make([]given, 0, len(names)+len(s.given))
	for _, k := range names {
		defs = append(defs, given{k, c.Constants[k]})
	}
	// Command line definitions come last so they win.
	s.given = append(defs, s.given...)
	return nil
}

// context creates the evaluation context for the settings. Each definition
// is evaluated in the context built from the ones before it.
func (s *settings) context() (*polish.Context, error) {
	ctx := polish.NewContext(polish.Prec(s.prec), polish.Logger(s.log))
	for _, d := range s.given {
		r, err := ctx.Calculate(d.value, s.mode)
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", d.name, err)
		}
		ctx = ctx.Clone(polish.SetConst(d.name, r))
	}
	return ctx, nil
}

// define parses a REPL assignment "name = expr". ok is false if line is not an
// assignment.
func define(line string) (name, expr string, ok bool) {
	name, expr, ok = strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if !validName(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(expr), true
}

func validName(s string) bool {
	if s == "" || '0' <= s[0] && s[0] <= '9' {
		return false
	}
	for _, r := range s {
		if !nameRune(r) {
			return false
		}
	}
	return true
}

func nameRune(r rune) bool {
	return r == '_' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9'
}

// assign evaluates an assignment and returns a context with the new constant.
func assign(ctx *polish.Context, mode polish.Mode, name, expr string) (*polish.Context, *big.Float, error) {
	r, err := ctx.Calculate(expr, mode)
	if err != nil {
		return ctx, nil, err
	}
	return ctx.Clone(polish.SetConst(name, r)), r, nil
}
