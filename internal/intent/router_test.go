package intent

import (
	"testing"

	"eino_voice_shop/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	router := NewDefaultRouter()

	tests := []struct {
		name      string
		utterance string
		want      pkg.Intent
	}{
		{
			name:      "clear cart",
			utterance: "clear my cart",
			want:      pkg.Intent{Kind: pkg.IntentClearCart},
		},
		{
			name:      "clear cart misheard as cut",
			utterance: "please Clear Cut",
			want:      pkg.Intent{Kind: pkg.IntentClearCart},
		},
		{
			name:      "search for",
			utterance: "search for basmati rice",
			want:      pkg.Intent{Kind: pkg.IntentSearch, Query: "basmati rice", Raw: "basmati rice"},
		},
		{
			name:      "what do you have",
			utterance: "what snacks do you have",
			want:      pkg.Intent{Kind: pkg.IntentSearch, Query: "snacks", Raw: "snacks"},
		},
		{
			name:      "add to cart keeps multi-word phrases",
			utterance: "add wireless mouse, blue keyboard to cart",
			want: pkg.Intent{
				Kind:    pkg.IntentAddToCart,
				Phrases: []string{"wireless mouse", "blue keyboard"},
				Raw:     "wireless mouse, blue keyboard",
			},
		},
		{
			name:      "add to cart misheard as two card",
			utterance: "add milk and bread two card",
			want: pkg.Intent{
				Kind:    pkg.IntentAddToCart,
				Phrases: []string{"milk", "bread"},
				Raw:     "milk and bread",
			},
		},
		{
			name:      "buy drops stop words",
			utterance: "buy some, eggs",
			want:      pkg.Intent{Kind: pkg.IntentAddToCart, Phrases: []string{"eggs"}, Raw: "some, eggs"},
		},
		{
			name:      "no match",
			utterance: "how is the weather today",
			want:      pkg.Intent{Kind: pkg.IntentNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, router.Classify(tt.utterance))
		})
	}
}

func TestClearCartTakesPrecedence(t *testing.T) {
	router := NewDefaultRouter()

	// "show me" and "order" would also match, clear cart is checked first
	got := router.Classify("show me how to clear my cart before I order more")
	assert.Equal(t, pkg.IntentClearCart, got.Kind)
}

func TestSearchBeatsAddToCart(t *testing.T) {
	router := NewDefaultRouter()

	got := router.Classify("show me rice to buy")
	assert.Equal(t, pkg.IntentSearch, got.Kind)
	assert.Equal(t, "rice to buy", got.Query)
}

func TestSplitPhrases(t *testing.T) {
	assert.Equal(t, []string{"wireless mouse", "blue keyboard"}, SplitPhrases("wireless mouse, blue keyboard"))
	assert.Equal(t, []string{"salt", "pepper"}, SplitPhrases("salt AND pepper"))
	assert.Nil(t, SplitPhrases("the, a , an"))
	// "sandwich" contains "and" but not as a separate word
	assert.Equal(t, []string{"sandwich bread"}, SplitPhrases("sandwich bread"))
}

func TestCompileRulesRejectsBadInput(t *testing.T) {
	_, err := CompileRules([]RuleSpec{{Intent: "teleport", Patterns: []string{"beam me up"}}})
	require.Error(t, err)

	_, err = CompileRules([]RuleSpec{{Intent: pkg.IntentSearch, Patterns: []string{"search for ("}}})
	require.Error(t, err)

	_, err = CompileRules([]RuleSpec{{Intent: pkg.IntentSearch}})
	require.Error(t, err)
}

func TestCustomRuleOrder(t *testing.T) {
	rules, err := CompileRules([]RuleSpec{
		{Intent: pkg.IntentAddToCart, Patterns: []string{`buy (.+)`}},
		{Intent: pkg.IntentSearch, Patterns: []string{`show me (.+)`}},
	})
	require.NoError(t, err)

	router := NewRouter(rules...)
	assert.Equal(t, pkg.IntentAddToCart, router.Classify("show me what to buy tea").Kind)
	assert.Len(t, router.Rules(), 2)
}
