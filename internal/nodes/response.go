package nodes

import (
	"context"
	"errors"
	"strings"

	"eino_voice_shop/internal/core"
	"eino_voice_shop/pkg"
	"eino_voice_shop/src/conversation"
	"eino_voice_shop/src/llm"
)

const defaultReply = "I apologize, but I couldn't generate a response right now."

// ResponseNode asks the completion collaborator for the natural-language reply
type ResponseNode struct {
	completer  llm.Completer
	strategy   conversation.ContextStrategy
	persona    string
	guidelines string
}

// NewResponseNode creates a new response generation node
func NewResponseNode(completer llm.Completer, strategy conversation.ContextStrategy, persona, guidelines string) *ResponseNode {
	return &ResponseNode{
		completer:  completer,
		strategy:   strategy,
		persona:    persona,
		guidelines: guidelines,
	}
}

// Execute fails the turn only when the collaborator is unusable; a failed
// call degrades the reply to the taxonomy sentence.
func (r *ResponseNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	persona := state.SystemPrompt
	if strings.TrimSpace(persona) == "" {
		persona = r.persona
	}

	reply, err := r.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: llm.BuildSystemPrompt(persona, state.Memory, r.guidelines),
		History:      r.strategy.BuildHistory(state.History),
		Prompt:       state.Utterance,
	})
	if err != nil {
		var unavailable *pkg.CollaboratorUnavailableError
		if errors.As(err, &unavailable) {
			return core.NodeOutput{}, err
		}
		state.Reply = pkg.UserMessage(err)
		return core.NodeOutput{Error: err}, nil
	}

	if strings.TrimSpace(reply) == "" {
		reply = defaultReply
	}
	state.Reply = reply

	return core.NodeOutput{Data: map[string]any{"reply_length": len(reply)}}, nil
}

func (r *ResponseNode) GetName() string { return core.NodeResponse }

func (r *ResponseNode) GetType() core.NodeType { return core.NodeTypeResponse }
