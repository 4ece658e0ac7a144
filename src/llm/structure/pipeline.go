package structure

import (
	"context"
	"fmt"
	"time"

	"eino_voice_shop/pkg"
	"eino_voice_shop/src/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Pipeline asks a secondary completion call for strict JSON and parses it
type Pipeline struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
}

// NewPipeline compiles the Template → ChatModel chain
func NewPipeline(ctx context.Context, chatModel model.BaseChatModel, timeout time.Duration) (*Pipeline, error) {
	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(createStructureTemplate()).
		AppendChatModel(chatModel).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating structure chain: %w", err)
	}
	return &Pipeline{chain: chain, timeout: timeout}, nil
}

// Structure always returns a usable reply. A non-nil error means the reply
// is the degraded fallback; the error says why.
func (p *Pipeline) Structure(ctx context.Context, rawText string, known ...pkg.ProductMatch) (pkg.StructuredReply, error) {
	if p == nil || p.chain == nil {
		return Fallback(rawText), &pkg.CollaboratorUnavailableError{Collaborator: "structure", Reason: "no model configured"}
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	msg, err := p.chain.Invoke(ctx, templateVariables(rawText, known))
	if err != nil {
		callErr := pkg.NewCallError("structure", "invoke", err)
		logger.Warn().Err(err).Str("kind", string(callErr.Kind)).Msg("Structure call failed, using fallback")
		return Fallback(rawText), callErr
	}

	reply, err := Parse(msg.Content)
	if err != nil {
		logger.Warn().Err(err).Int("output_length", len(msg.Content)).Msg("Structure output rejected, using fallback")
		return Fallback(rawText), err
	}

	logger.Debug().
		Int("num_products", reply.NumProducts).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("Reply structured")
	return reply, nil
}
