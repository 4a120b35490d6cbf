// Package normalize cleans up the space-joined WordPiece text produced by the
// decoder so that field values read like the original log text.
package normalize

import (
	"regexp"

	"github.com/crimson-sun/sawmill/internal/model"
)

// Rule is one regexp rewrite.
type Rule struct {
	Pattern *regexp.Regexp
	Replace string
}

// maxPasses bounds the fixpoint loop. Every default rule shortens its match,
// so real input settles long before this.
const maxPasses = 64

var defaultRules = []Rule{
	{regexp.MustCompile(`\s+##`), ""},
	{regexp.MustCompile(`\s+\.+\s`), "."},
	{regexp.MustCompile(`\s+:+\s`), ":"},
	{regexp.MustCompile(`\s+\|+\s`), "|"},
	{regexp.MustCompile(`\s+\++\s`), "+"},
	{regexp.MustCompile(`\s+-+\s`), "-"},
	{regexp.MustCompile(`\s+<`), "<"},
	{regexp.MustCompile(`<+\s`), "<"},
	{regexp.MustCompile(`\s+>`), ">"},
	{regexp.MustCompile(`>+\s`), ">"},
	{regexp.MustCompile(`\s+=+\s`), "="},
	{regexp.MustCompile(`\s+#+\s`), "#"},
	{regexp.MustCompile(`\[+\s`), "["},
	{regexp.MustCompile(`\s\]`), "]"},
	{regexp.MustCompile(`\(+\s`), "("},
	{regexp.MustCompile(`\s\)`), ")"},
	{regexp.MustCompile(`\s"`), `"`},
	{regexp.MustCompile(`"+\s`), `"`},
	{regexp.MustCompile(`\\+\s`), `\`},
	{regexp.MustCompile(`\s+_+\s`), "_"},
	{regexp.MustCompile(`\s+/`), "/"},
	{regexp.MustCompile(`/+\s`), "/"},
	{regexp.MustCompile(`\s+\?+\s`), "?"},
	{regexp.MustCompile(`\s+;+\s`), "; "},
}

// DefaultRules returns a copy of the built-in rule list in application order.
func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}

// Normalizer applies an ordered rule list. It is immutable and safe for
// concurrent use.
type Normalizer struct {
	rules []Rule
}

// New returns a Normalizer over rules, or over DefaultRules when none are given.
func New(rules ...Rule) *Normalizer {
	if len(rules) == 0 {
		rules = defaultRules
	}
	return &Normalizer{rules: rules}
}

// Text runs every rule in order and repeats the pass until the text stops
// changing, so Text(Text(s)) == Text(s).
func (n *Normalizer) Text(s string) string {
	for pass := 0; pass < maxPasses; pass++ {
		next := s
		for _, r := range n.rules {
			next = r.Pattern.ReplaceAllLiteralString(next, r.Replace)
		}
		if next == s {
			return s
		}
		s = next
	}
	return s
}

// Apply rewrites every field value of rec in place. Confidences are untouched.
func (n *Normalizer) Apply(rec *model.Record) {
	for field, text := range rec.Fields {
		rec.Fields[field] = n.Text(text)
	}
}
