// Package intent maps a free-text utterance to one of a small closed set of
// shopping intents through an ordered rule table.
package intent

import (
	"eino_voice_shop/pkg"
	"fmt"
)

// Router evaluates rules in order; the first match wins
type Router struct {
	rules []Rule
}

// NewRouter creates a router over the given rules
func NewRouter(rules ...Rule) *Router {
	return &Router{rules: rules}
}

// NewDefaultRouter creates a router with the built-in rule table
func NewDefaultRouter() *Router {
	rules, err := CompileRules(DefaultRuleSpecs())
	if err != nil {
		panic(fmt.Sprintf("built-in intent rules: %v", err))
	}
	return NewRouter(rules...)
}

// Classify returns exactly one intent for the utterance
func (r *Router) Classify(utterance string) pkg.Intent {
	for _, rule := range r.rules {
		arg, ok := rule.Match(utterance)
		if !ok {
			continue
		}
		return rule.Extract(arg)
	}
	return pkg.Intent{Kind: pkg.IntentNone}
}

// Rules returns a copy of the table in evaluation order
func (r *Router) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}
