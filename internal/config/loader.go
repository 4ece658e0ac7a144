package config

import (
	"errors"
	"fmt"
	"os"

	"eino_voice_shop/internal/intent"
	"eino_voice_shop/internal/services"
	"eino_voice_shop/src/llm"
	"eino_voice_shop/src/model"

	"gopkg.in/yaml.v3"
)

// AssistantConfig represents the structure of config.yaml
type AssistantConfig struct {
	Persona    string                     `yaml:"persona"`
	Guidelines string                     `yaml:"guidelines"`
	Intents    []intent.RuleSpec          `yaml:"intents"`
	ClearCart  *services.ClearCartContext `yaml:"clear_cart"`
}

// LoadConfig loads the assistant configuration from a YAML file.
// A missing file yields the built-in defaults.
func LoadConfig(filepath string) (*AssistantConfig, error) {
	config := &AssistantConfig{}

	data, err := os.ReadFile(filepath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing YAML: %w", err)
		}
	}

	config.applyDefaults()
	if _, err := intent.CompileRules(config.Intents); err != nil {
		return nil, fmt.Errorf("invalid intent rules: %w", err)
	}
	return config, nil
}

func (c *AssistantConfig) applyDefaults() {
	if c.Persona == "" {
		c.Persona = llm.DefaultPersona
	}
	if c.Guidelines == "" {
		c.Guidelines = llm.DefaultGuidelines
	}
	if len(c.Intents) == 0 {
		c.Intents = intent.DefaultRuleSpecs()
	}
}

// BuildRouter compiles the configured intent rules
func (c *AssistantConfig) BuildRouter() (*intent.Router, error) {
	rules, err := intent.CompileRules(c.Intents)
	if err != nil {
		return nil, err
	}
	return intent.NewRouter(rules...), nil
}

// ClearCartContext returns the configured clear-cart context, falling back
// to the one derived from commerce settings
func (c *AssistantConfig) ClearCartContext(commerce model.CommerceConfig) services.ClearCartContext {
	if c.ClearCart != nil {
		return *c.ClearCart
	}
	return services.DefaultClearCartContext(commerce)
}
