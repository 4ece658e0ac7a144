package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"eino_voice_shop/internal/config"
	"eino_voice_shop/internal/core"
	"eino_voice_shop/internal/intent"
	"eino_voice_shop/internal/nodes"
	"eino_voice_shop/internal/services"
	"eino_voice_shop/internal/storage"
	"eino_voice_shop/pkg"
	"eino_voice_shop/src/conversation"
	"eino_voice_shop/src/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct{}

func (fakeExecutor) Execute(ctx context.Context, in pkg.Intent, mem pkg.Memory) services.Outcome {
	return services.Outcome{Intent: in.Kind, Memory: mem}
}

func TestChatSessionKeepsHistoryUntilCleared(t *testing.T) {
	var histories []int
	completer := llm.CompleterFunc(func(ctx context.Context, req llm.CompletionRequest) (string, error) {
		histories = append(histories, len(req.History))
		return "Hi there!", nil
	})

	processor, err := nodes.NewTurnGraph(nodes.Dependencies{
		Classifier: intent.NewDefaultRouter(),
		Executor:   fakeExecutor{},
		Completer:  completer,
		Persona:    llm.DefaultPersona,
	})
	require.NoError(t, err)

	app := &application{
		controller: core.NewController(processor),
		sessions:   conversation.NewService(storage.NewMemorySessionRepository(0)),
		assistant:  &config.AssistantConfig{Persona: llm.DefaultPersona},
	}

	in := strings.NewReader("hello\n\nhow are you\n/clear\nhello again\n/quit\nnever read\n")
	var out bytes.Buffer
	require.NoError(t, chat(context.Background(), app, in, &out))

	assert.Equal(t, 3, strings.Count(out.String(), "Assistant: Hi there!"))
	assert.Contains(t, out.String(), "Conversation cleared.")
	assert.Equal(t, []int{0, 2, 0}, histories)
}
