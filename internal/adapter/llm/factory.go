package llm

import (
	"fmt"
	"time"
)

// ProviderConfig selects and parameterizes a backing provider for one
// pipeline role.
type ProviderConfig struct {
	Provider    string // "openai", "anthropic", "mock"
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// New creates a Client for the configured provider. Provider selection
// happens once, at session construction; the rest of the system only sees
// the Client interface.
func New(cfg ProviderConfig, timeout time.Duration) (Client, error) {
	switch cfg.Provider {
	case "mock":
		return NewMockClient(), nil
	case "openai":
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature, timeout), nil
	case "anthropic":
		return NewAnthropicClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.MaxTokens, timeout), nil
	}
	return nil, fmt.Errorf("unknown llm provider: %q (supported: openai, anthropic, mock)", cfg.Provider)
}
