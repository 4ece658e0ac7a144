package llm

import (
	"context"
	"strings"
	"time"

	"eino_voice_shop/pkg"
	"eino_voice_shop/src/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const collaboratorName = "completion"

// Options are per-call generation settings; zero values leave the model default
type Options struct {
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
}

// CompletionRequest is one call to the completion collaborator
type CompletionRequest struct {
	SystemPrompt string
	History      []*schema.Message
	Prompt       string
	Options      Options
}

// Completer turns a prompt plus history into reply text
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ChatCompleter adapts any eino chat model to Completer
type ChatCompleter struct {
	model    model.BaseChatModel
	defaults Options
	timeout  time.Duration
}

func NewChatCompleter(m model.BaseChatModel, defaults Options, timeout time.Duration) *ChatCompleter {
	return &ChatCompleter{model: m, defaults: defaults, timeout: timeout}
}

// Complete builds system, history, user messages in that order
func (c *ChatCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]*schema.Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, schema.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, req.History...)
	messages = append(messages, schema.UserMessage(req.Prompt))

	start := time.Now()
	resp, err := c.model.Generate(ctx, messages, c.options(req.Options)...)
	if err != nil {
		callErr := pkg.NewCallError(collaboratorName, "generate", err)
		logger.Warn().Err(err).Str("kind", string(callErr.Kind)).Msg("Completion call failed")
		return "", callErr
	}

	logger.Debug().
		Int("history", len(req.History)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("Completion received")

	if resp == nil {
		return "", nil
	}
	return strings.TrimSpace(resp.Content), nil
}

func (c *ChatCompleter) options(o Options) []model.Option {
	var opts []model.Option
	if t := pick(o.Temperature, c.defaults.Temperature); t != nil {
		opts = append(opts, model.WithTemperature(*t))
	}
	if p := pick(o.TopP, c.defaults.TopP); p != nil {
		opts = append(opts, model.WithTopP(*p))
	}
	if m := pick(o.MaxTokens, c.defaults.MaxTokens); m != nil {
		opts = append(opts, model.WithMaxTokens(*m))
	}
	return opts
}

func pick[T any](v, fallback *T) *T {
	if v != nil {
		return v
	}
	return fallback
}

// UnavailableCompleter fails every call with the configured reason
type UnavailableCompleter struct {
	Err *pkg.CollaboratorUnavailableError
}

func (u UnavailableCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return "", u.Err
}

// CompleterFunc lets a plain function act as a Completer
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}
