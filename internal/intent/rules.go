package intent

import (
	"eino_voice_shop/pkg"
	"fmt"
	"regexp"
	"strings"
)

// Rule is one row of the routing table: a predicate that recognizes an
// utterance and yields its argument, plus an extractor that turns the
// argument into an Intent.
type Rule struct {
	Name    string
	Kind    pkg.IntentKind
	Match   func(utterance string) (arg string, ok bool)
	Extract func(arg string) pkg.Intent
}

// RuleSpec is the declarative form of a rule, as loaded from config.yaml
type RuleSpec struct {
	Intent   pkg.IntentKind `yaml:"intent"`
	Patterns []string       `yaml:"patterns"`
}

// DefaultRuleSpecs lists the built-in patterns in evaluation order.
// "cut", "card" and "too"/"two" cover common speech-to-text slips for "cart" and "to".
func DefaultRuleSpecs() []RuleSpec {
	return []RuleSpec{
		{
			Intent: pkg.IntentClearCart,
			Patterns: []string{
				`remove cart`, `empty cart`, `delete cart`,
				`clear my cart`, `empty my cart`, `delete my cart`,
				`clear cut`, `clear card`, `clear cart`,
			},
		},
		{
			Intent: pkg.IntentSearch,
			Patterns: []string{
				`search for (.+)`,
				`find (.+) products?`,
				`looking for (.+)`,
				`show me (.+)`,
				`what (.+) do you have`,
			},
		},
		{
			Intent: pkg.IntentAddToCart,
			Patterns: []string{
				`add (.+) to cart`, `add (.+) to card`, `add (.+) to cut`,
				`add (.+) too cut`, `add (.+) too card`,
				`add (.+) two cut`, `add (.+) two card`,
				`buy (.+)`, `purchase (.+)`, `order (.+)`,
				`get (.+) for me`,
			},
		},
	}
}

// CompileRules turns specs into rules, keeping their order
func CompileRules(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		rule, err := PatternRule(spec.Intent, spec.Patterns...)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// PatternRule builds a case-insensitive rule from regular expressions.
// The first matching pattern wins and only its first capture group is used.
func PatternRule(kind pkg.IntentKind, patterns ...string) (Rule, error) {
	extract, ok := extractors[kind]
	if !ok {
		return Rule{}, fmt.Errorf("unknown intent %q", kind)
	}
	if len(patterns) == 0 {
		return Rule{}, fmt.Errorf("intent %q has no patterns", kind)
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return Rule{}, fmt.Errorf("invalid pattern %q for intent %q: %w", p, kind, err)
		}
		compiled = append(compiled, re)
	}

	return Rule{
		Name: string(kind),
		Kind: kind,
		Match: func(utterance string) (string, bool) {
			for _, re := range compiled {
				m := re.FindStringSubmatch(utterance)
				if m == nil {
					continue
				}
				if len(m) > 1 {
					return strings.TrimSpace(m[1]), true
				}
				return "", true
			}
			return "", false
		},
		Extract: extract,
	}, nil
}

var extractors = map[pkg.IntentKind]func(string) pkg.Intent{
	pkg.IntentClearCart: func(string) pkg.Intent {
		return pkg.Intent{Kind: pkg.IntentClearCart}
	},
	pkg.IntentSearch: func(arg string) pkg.Intent {
		return pkg.Intent{Kind: pkg.IntentSearch, Query: arg, Raw: arg}
	},
	pkg.IntentAddToCart: func(arg string) pkg.Intent {
		return pkg.Intent{Kind: pkg.IntentAddToCart, Phrases: SplitPhrases(arg), Raw: arg}
	},
}

var (
	phraseSeparator = regexp.MustCompile(`(?i),|\sand\s`)
	stopWords       = map[string]bool{"to": true, "the": true, "a": true, "an": true, "some": true, "any": true}
)

// SplitPhrases splits on commas and the word "and". Words inside a phrase
// stay together so multi-word product names survive.
func SplitPhrases(raw string) []string {
	var phrases []string
	for _, part := range phraseSeparator.Split(raw, -1) {
		part = strings.TrimSpace(part)
		if part == "" || stopWords[strings.ToLower(part)] {
			continue
		}
		phrases = append(phrases, part)
	}
	return phrases
}
