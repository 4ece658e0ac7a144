package llm

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// GeminiConfig holds the generation settings sent with every Gemini request
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
}

// GeminiChatModel exposes the Gemini API as an eino chat model
type GeminiChatModel struct {
	client *genai.Client
	config GeminiConfig
}

var _ einomodel.BaseChatModel = (*GeminiChatModel)(nil)

func NewGeminiChatModel(ctx context.Context, config GeminiConfig) (*GeminiChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating gemini client: %w", err)
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	return &GeminiChatModel{client: client, config: config}, nil
}

func (g *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	system, contents := toGeminiContents(input)
	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, contents, g.generateConfig(system, opts))
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(resp.Text(), nil), nil
}

// Stream returns the full reply as a single chunk
func (g *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := g.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (g *GeminiChatModel) generateConfig(system string, opts []einomodel.Option) *genai.GenerateContentConfig {
	temperature := g.config.Temperature
	topP := g.config.TopP
	maxTokens := int(g.config.MaxOutputTokens)
	common := einomodel.GetCommonOptions(&einomodel.Options{
		Temperature: &temperature,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
	}, opts...)

	cfg := &genai.GenerateContentConfig{
		Temperature:     common.Temperature,
		TopP:            common.TopP,
		TopK:            genai.Ptr(g.config.TopK),
		MaxOutputTokens: int32(*common.MaxTokens),
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		},
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}

// toGeminiContents pulls system messages into the instruction and maps
// assistant turns onto the "model" role
func toGeminiContents(input []*schema.Message) (string, []*genai.Content) {
	var system string
	contents := make([]*genai.Content, 0, len(input))
	for _, msg := range input {
		switch msg.Role {
		case schema.System:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return system, contents
}
