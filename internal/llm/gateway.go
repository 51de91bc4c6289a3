package llm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/scrumpts/cocoa-concierge/internal/model"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
	"github.com/scrumpts/cocoa-concierge/pkg/metrics"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxInflight = 16
)

// Result is the outcome of a gateway call. Kind is FailureNone on success.
type Result struct {
	Text    string
	Kind    FailureKind
	Err     error
	Latency time.Duration
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Kind == FailureNone
}

// AsError returns nil on success and a *FailureError otherwise.
func (r Result) AsError() error {
	if r.OK() {
		return nil
	}
	return &FailureError{Kind: r.Kind, Err: r.Err}
}

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxInflight int64
}

// Gateway sends conversations to a provider and classifies every failure.
// It never returns an error or panics to its caller.
type Gateway struct {
	client Client
	cfg    GatewayConfig
	sem    *semaphore.Weighted
	tracer trace.Tracer
	logger *logger.Logger
}

// NewGateway creates a gateway. client may be nil, in which case every call
// fails with FailureServiceUnavailable.
func NewGateway(client Client, cfg GatewayConfig, log *logger.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = defaultMaxInflight
	}
	return &Gateway{
		client: client,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(cfg.MaxInflight),
		tracer: otel.Tracer("github.com/scrumpts/cocoa-concierge/internal/llm"),
		logger: log,
	}
}

// Provider returns the configured provider name, or "none".
func (g *Gateway) Provider() string {
	if g.client == nil {
		return "none"
	}
	return g.client.Name()
}

// Complete sends the system prompt followed by turns, in order.
func (g *Gateway) Complete(ctx context.Context, systemPrompt string, turns []model.Turn) Result {
	return g.complete(ctx, systemPrompt, turns, false)
}

// CompleteJSON is Complete with the provider asked for a JSON object.
func (g *Gateway) CompleteJSON(ctx context.Context, systemPrompt string, turns []model.Turn) Result {
	return g.complete(ctx, systemPrompt, turns, true)
}

func (g *Gateway) complete(ctx context.Context, systemPrompt string, turns []model.Turn, jsonObject bool) (res Result) {
	start := time.Now()
	provider := g.Provider()

	ctx, span := g.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.Int("llm.turns", len(turns)),
		attribute.Bool("llm.json", jsonObject),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res = Result{Kind: FailureServiceUnavailable, Err: fmt.Errorf("provider panic: %v", r)}
		}
		res.Latency = time.Since(start)

		status := "ok"
		if !res.OK() {
			status = string(res.Kind)
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, status)
			g.logger.Warn("completion failed",
				zap.String("provider", provider),
				zap.String("kind", status),
				zap.Duration("latency", res.Latency),
				zap.Error(res.Err),
			)
		}
		metrics.RecordCompletion(provider, status, res.Latency.Seconds())
	}()

	if g.client == nil {
		return Result{Kind: FailureServiceUnavailable, Err: ErrNoProvider}
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return Result{Kind: FailureServiceUnavailable, Err: fmt.Errorf("waiting for completion slot: %w", err)}
	}
	defer g.sem.Release(1)

	resp, err := g.client.Complete(ctx, &CompletionRequest{
		Model:       g.cfg.Model,
		Messages:    BuildMessages(systemPrompt, turns),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		JSONObject:  jsonObject,
	})
	if err != nil {
		return Result{Kind: Classify(err), Err: err}
	}

	metrics.RecordTokens(provider, resp.TokensIn, resp.TokensOut)
	return Result{Text: resp.Content}
}

// BuildMessages places the system prompt first and maps each turn's role
// one to one.
func BuildMessages(systemPrompt string, turns []model.Turn) []ChatMessage {
	messages := make([]ChatMessage, 0, len(turns)+1)
	messages = append(messages, ChatMessage{Role: string(model.RoleSystem), Content: systemPrompt})
	for _, t := range turns {
		messages = append(messages, ChatMessage{Role: string(t.Role), Content: t.Content})
	}
	return messages
}
