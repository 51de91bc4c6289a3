// Package llm provides completion provider clients and the gateway the chat
// and recommendation paths call through.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// CompletionRequest represents a completion request. Messages are sent in
// order; a leading system message carries the instructions.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
	// JSONObject asks the provider for a single JSON object response.
	JSONObject bool
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// ProviderConfig selects and configures a provider client.
type ProviderConfig struct {
	Provider        Provider
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
}

// ErrNoProvider is returned when no provider credentials are configured.
var ErrNoProvider = errors.New("no completion provider configured")

// ErrEmptyResponse is returned when the provider answers without any choice.
var ErrEmptyResponse = errors.New("provider returned no choices")

// NewClient creates a new LLM client based on provider.
func NewClient(cfg ProviderConfig) (Client, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case ProviderOpenAI, "":
		if cfg.OpenAIAPIKey == "" {
			return nil, ErrNoProvider
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
