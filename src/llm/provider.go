package llm

import (
	"context"
	"fmt"
	"strings"

	"eino_voice_shop/pkg"
	"eino_voice_shop/src/model"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/ollama/ollama/api"
)

// Supported providers
const (
	ProviderOpenAI   = "openai"
	ProviderArk      = "ark"
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
	ProviderGemini   = "gemini"
)

// NewChatModel builds the configured provider's chat model. modelName
// overrides config.Model so the structuring call can use a different model.
func NewChatModel(ctx context.Context, config model.LLMConfig, modelName string) (einomodel.BaseChatModel, error) {
	provider := strings.ToLower(config.Provider)
	if modelName == "" {
		modelName = config.Model
	}

	if provider != ProviderOllama && config.APIKey == "" {
		return nil, &pkg.CollaboratorUnavailableError{
			Collaborator: collaboratorName,
			Reason:       fmt.Sprintf("LLM_API_KEY is not set for provider %q", provider),
		}
	}

	maxTokens := config.MaxTokens
	temperature := config.Temperature
	topP := config.TopP

	switch provider {
	case ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      config.APIKey,
			BaseURL:     config.BaseURL,
			Model:       modelName,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			TopP:        &topP,
			Timeout:     config.Timeout,
		})
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:      config.APIKey,
			BaseURL:     config.BaseURL,
			Model:       modelName,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			TopP:        &topP,
		})
	case ProviderDeepSeek:
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:      config.APIKey,
			BaseURL:     config.BaseURL,
			Model:       modelName,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			TopP:        topP,
			Timeout:     config.Timeout,
		})
	case ProviderOllama:
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: config.BaseURL,
			Model:   modelName,
			Timeout: config.Timeout,
			Options: &api.Options{
				Temperature: temperature,
				TopP:        topP,
				TopK:        config.TopK,
				NumPredict:  maxTokens,
			},
		})
	case ProviderGemini:
		return NewGeminiChatModel(ctx, GeminiConfig{
			APIKey:          config.APIKey,
			Model:           modelName,
			Temperature:     temperature,
			TopP:            topP,
			TopK:            float32(config.TopK),
			MaxOutputTokens: int32(maxTokens),
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}

// NewCompleter wraps NewChatModel. When the provider cannot be used the
// returned Completer fails every call and err says why.
func NewCompleter(ctx context.Context, config model.LLMConfig) (Completer, error) {
	chatModel, err := NewChatModel(ctx, config, config.Model)
	if err != nil {
		return UnavailableCompleter{Err: asUnavailable(err)}, err
	}

	maxTokens := config.MaxTokens
	temperature := config.Temperature
	topP := config.TopP
	return NewChatCompleter(chatModel, Options{
		Temperature: &temperature,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
	}, config.Timeout), nil
}

func asUnavailable(err error) *pkg.CollaboratorUnavailableError {
	if u, ok := err.(*pkg.CollaboratorUnavailableError); ok {
		return u
	}
	return &pkg.CollaboratorUnavailableError{Collaborator: collaboratorName, Reason: err.Error()}
}
