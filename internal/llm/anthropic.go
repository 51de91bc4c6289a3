package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-3-5-sonnet-20241022"

const anthropicMaxTokens = 1024

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey, model string, opts ...option.RequestOption) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	if model == "" {
		model = DefaultAnthropicModel
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return string(ProviderAnthropic)
}

// Complete sends a completion request. Leading system messages are moved to
// the system parameter since the Messages API only accepts user and
// assistant roles in the message list.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicMaxTokens
	}

	var system []string
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		messages = append(messages, anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				},
			}),
		})
	}
	if req.JSONObject {
		system = append(system, "Respond with a single JSON object and nothing else.")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	}
	if len(system) > 0 {
		params.System = anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(strings.Join(system, "\n\n")),
		}})
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			errType, message := decodeAnthropicError(apiErr.JSON.RawJSON())
			if message == "" {
				message = err.Error()
			}
			return nil, &ProviderError{
				Provider:   c.Name(),
				StatusCode: apiErr.StatusCode,
				Type:       errType,
				Message:    message,
				Err:        err,
			}
		}
		return nil, err
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content.WriteString(block.Text)
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		Model:      string(resp.Model),
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// decodeAnthropicError extracts error.type and error.message from an
// Anthropic error body: {"type":"error","error":{"type":...,"message":...}}.
func decodeAnthropicError(raw string) (errType, message string) {
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if raw == "" || json.Unmarshal([]byte(raw), &body) != nil {
		return "", ""
	}
	return body.Error.Type, body.Error.Message
}
