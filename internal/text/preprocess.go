package text

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Rule is one substitution step of a Pipeline. Rules must be pure.
type Rule interface {
	Name() string
	Apply(text string) string
}

// RegexRule replaces every match of a pattern. The replacement may use
// regexp.Expand syntax ($1, ${name}).
type RegexRule struct {
	name string
	re   *regexp.Regexp
	repl string
}

// NewRegexRule compiles pattern into a named rule.
func NewRegexRule(name, pattern, repl string) (*RegexRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", name, err)
	}
	return &RegexRule{name: name, re: re, repl: repl}, nil
}

func mustRegexRule(name, pattern, repl string) *RegexRule {
	r, err := NewRegexRule(name, pattern, repl)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *RegexRule) Name() string { return r.name }

func (r *RegexRule) Apply(text string) string {
	return r.re.ReplaceAllString(text, r.repl)
}

// FuncRule adapts a plain string function.
type FuncRule struct {
	name string
	fn   func(string) string
}

// NewFuncRule returns a rule that calls fn.
func NewFuncRule(name string, fn func(string) string) *FuncRule {
	return &FuncRule{name: name, fn: fn}
}

func (r *FuncRule) Name() string { return r.name }

func (r *FuncRule) Apply(text string) string { return r.fn(text) }

// Pipeline applies its rules in order, each to the output of the previous
// one. A rule that would blank non-empty text is skipped.
type Pipeline struct {
	rules []Rule
	log   *slog.Logger
}

// NewPipeline returns a pipeline running rules in the given order.
func NewPipeline(rules ...Rule) *Pipeline {
	return &Pipeline{
		rules: append([]Rule(nil), rules...),
		log:   slog.Default(),
	}
}

// WithLogger returns a copy of p that logs skipped rules to l.
func (p *Pipeline) WithLogger(l *slog.Logger) *Pipeline {
	next := *p
	next.log = l
	return &next
}

// Rules returns the rule names in application order.
func (p *Pipeline) Rules() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.Name()
	}
	return names
}

// Apply runs every rule over text.
func (p *Pipeline) Apply(text string) string {
	for _, r := range p.rules {
		out := r.Apply(text)
		if strings.TrimSpace(text) != "" && strings.TrimSpace(out) == "" {
			p.log.Debug("preprocess rule skipped: empty result", slog.String("rule", r.Name()))
			continue
		}
		text = out
	}
	return text
}
