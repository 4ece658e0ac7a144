package nodes

import (
	"fmt"

	"eino_voice_shop/internal/core"
	"eino_voice_shop/src/conversation"
	"eino_voice_shop/src/llm"
)

// Dependencies are the collaborators the turn graph needs
type Dependencies struct {
	Classifier IntentClassifier
	Executor   ActionExecutor
	Completer  llm.Completer
	Strategy   conversation.ContextStrategy
	Persona    string
	Guidelines string
}

// NewTurnGraph wires every node into a processor running core.DefaultFlow
func NewTurnGraph(deps Dependencies) (*core.DefaultGraphProcessor, error) {
	if deps.Classifier == nil || deps.Executor == nil || deps.Completer == nil {
		return nil, fmt.Errorf("classifier, executor and completer are required")
	}
	if deps.Strategy == nil {
		deps.Strategy = conversation.NewChatHistoryStrategy(20)
	}

	processor := core.NewGraphProcessor(core.DefaultFlow())
	for _, node := range []core.Node{
		NewCommerceNode(deps.Classifier, deps.Executor),
		NewResponseNode(deps.Completer, deps.Strategy, deps.Persona, deps.Guidelines),
		NewMemoryNode(),
		NewListNode(),
		NewSpeechNode(),
	} {
		if err := processor.AddNode(node); err != nil {
			return nil, err
		}
	}
	return processor, nil
}
