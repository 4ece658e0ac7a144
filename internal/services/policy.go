package services

import (
	"eino_voice_shop/pkg"
	"fmt"
	"strings"
)

// MatchPolicy picks which search result gets carted for a phrase.
// products is never empty when Select is called.
type MatchPolicy interface {
	Select(phrase string, products []pkg.ProductMatch) pkg.ProductMatch
}

// MatchPolicyFunc adapts a function to MatchPolicy
type MatchPolicyFunc func(phrase string, products []pkg.ProductMatch) pkg.ProductMatch

func (f MatchPolicyFunc) Select(phrase string, products []pkg.ProductMatch) pkg.ProductMatch {
	return f(phrase, products)
}

// ContainsThenFirst prefers the first product whose name contains the
// phrase, ignoring case, and otherwise takes the first result.
var ContainsThenFirst = MatchPolicyFunc(func(phrase string, products []pkg.ProductMatch) pkg.ProductMatch {
	needle := strings.ToLower(phrase)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return p
		}
	}
	return products[0]
})

// FirstResult trusts the backend ranking
var FirstResult = MatchPolicyFunc(func(_ string, products []pkg.ProductMatch) pkg.ProductMatch {
	return products[0]
})

// PolicyByName resolves the COMMERCE_MATCH_POLICY setting
func PolicyByName(name string) (MatchPolicy, error) {
	switch strings.ToLower(name) {
	case "", "contains-then-first":
		return ContainsThenFirst, nil
	case "first":
		return FirstResult, nil
	}
	return nil, fmt.Errorf("unknown match policy %q", name)
}
