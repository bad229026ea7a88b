package ai

import (
	"fmt"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "claude", "ollama" or "auto"

	// Claude config
	AnthropicAPIKey string
	AnthropicModel  string

	// Ollama config
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3", "mistral"
}

// DynamicConfig is like Config but the Ollama settings are read through
// getters so the runtime settings API can change them without a restart.
type DynamicConfig struct {
	Provider         ProviderType
	AnthropicAPIKey  string
	AnthropicModel   string
	GetOllamaBaseURL func() string
	GetOllamaModel   func() string
}

// NewSynthesisService creates a SynthesisService based on the config
// This is the factory function - switch AI provider by changing config.Provider
func NewSynthesisService(cfg Config) (SynthesisService, error) {
	switch cfg.Provider {
	case ProviderClaude:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Claude provider")
		}
		return NewClaudeService(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil

	case ProviderOllama:
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil

	default:
		// Auto: Claude with Ollama behind it when a key is available,
		// otherwise Ollama alone
		ollama := NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel)
		if cfg.AnthropicAPIKey != "" {
			claude := NewClaudeService(cfg.AnthropicAPIKey, cfg.AnthropicModel)
			return NewFallbackService(claude, ollama), nil
		}
		return ollama, nil
	}
}

// NewSynthesisServiceWithDynamicConfig builds the service with runtime
// Ollama settings getters
func NewSynthesisServiceWithDynamicConfig(cfg DynamicConfig) (SynthesisService, error) {
	ollama := NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel)

	switch cfg.Provider {
	case ProviderClaude:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Claude provider")
		}
		return NewClaudeService(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil

	case ProviderOllama:
		return ollama, nil

	default:
		if cfg.AnthropicAPIKey != "" {
			claude := NewClaudeService(cfg.AnthropicAPIKey, cfg.AnthropicModel)
			return NewFallbackService(claude, ollama), nil
		}
		return ollama, nil
	}
}
