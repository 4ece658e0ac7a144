package nodes

import (
	"context"
	"regexp"

	"eino_voice_shop/internal/core"
	"eino_voice_shop/internal/services"
	"eino_voice_shop/pkg"
	"eino_voice_shop/src/logger"
)

// IntentClassifier maps an utterance to exactly one intent
type IntentClassifier interface {
	Classify(utterance string) pkg.Intent
}

// ActionExecutor performs the commerce side effects for an intent
type ActionExecutor interface {
	Execute(ctx context.Context, intent pkg.Intent, mem pkg.Memory) services.Outcome
}

var showListPattern = regexp.MustCompile(`(?i)(?:show|tell me|what's on|what do i have)\s*(?:my|the)?\s*(?:list|shopping|todo)`)

// CommerceNode classifies the utterance and runs its side effects
type CommerceNode struct {
	classifier IntentClassifier
	executor   ActionExecutor
}

func NewCommerceNode(classifier IntentClassifier, executor ActionExecutor) *CommerceNode {
	return &CommerceNode{classifier: classifier, executor: executor}
}

func (n *CommerceNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	state.Intent = n.classifier.Classify(state.Utterance)
	output := core.NodeOutput{
		Data: map[string]any{
			"intent":    string(state.Intent.Kind),
			"show_list": showListPattern.MatchString(state.Utterance),
		},
	}

	if state.Intent.Kind == pkg.IntentNone {
		return output, nil
	}

	logger.Debug().
		Str("turn_id", state.TurnID).
		Str("intent", string(state.Intent.Kind)).
		Int("phrases", len(state.Intent.Phrases)).
		Bool("has_token", state.Memory.CustomerToken != "").
		Msg("Running commerce action")

	outcome := n.executor.Execute(ctx, state.Intent, state.Memory)

	state.ResponsePrefix += outcome.Summary
	state.ProductSearchResults = outcome.Products
	state.CartResults = outcome.CartResults
	state.CartCleared = outcome.CartCleared
	state.ClearAttempted = outcome.ClearAttempted
	state.Memory = outcome.Memory

	output.Data["added"] = len(outcome.Added)
	if outcome.Partial() {
		failed := make([]string, 0, len(outcome.Failures)+len(outcome.NotFound))
		for _, f := range outcome.Failures {
			failed = append(failed, f.Phrase)
		}
		failed = append(failed, outcome.NotFound...)
		output.Error = &pkg.PartialCommerceFailure{Failed: failed}
	}

	return output, nil
}

func (n *CommerceNode) GetName() string { return core.NodeCommerce }

func (n *CommerceNode) GetType() core.NodeType { return core.NodeTypeCommerce }
