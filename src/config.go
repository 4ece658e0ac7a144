package src

import (
	"eino_voice_shop/src/model"
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LogConfig          model.LogConfig          `envconfig:""`
	LLMConfig          model.LLMConfig          `envconfig:""`
	CommerceConfig     model.CommerceConfig     `envconfig:""`
	ConversationConfig model.ConversationConfig `envconfig:""`
	ServerConfig       model.ServerConfig       `envconfig:""`
	SpeechConfig       model.SpeechConfig       `envconfig:""`
}

func LoadConfig() (*Config, error) {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the assistant cannot run with
func (c *Config) Validate() error {
	switch strings.ToLower(c.LLMConfig.Provider) {
	case "openai", "ark", "deepseek", "ollama", "gemini":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMConfig.Provider)
	}

	switch strings.ToLower(c.ConversationConfig.Store) {
	case "memory":
	case "redis":
		if c.ConversationConfig.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CONVERSATION_STORE=redis")
		}
	default:
		return fmt.Errorf("unsupported CONVERSATION_STORE %q", c.ConversationConfig.Store)
	}

	if c.ConversationConfig.MaxTurns <= 0 {
		return fmt.Errorf("CONVERSATION_MAX_TURNS must be positive, got %d", c.ConversationConfig.MaxTurns)
	}
	if c.CommerceConfig.SearchLimit <= 0 {
		return fmt.Errorf("COMMERCE_SEARCH_LIMIT must be positive, got %d", c.CommerceConfig.SearchLimit)
	}
	if t := c.SpeechConfig.DuplicateThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("SPEECH_DUPLICATE_THRESHOLD must be in (0,1], got %v", t)
	}

	return nil
}
