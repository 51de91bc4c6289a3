// Package recommend ranks catalog products against a shopper's stated
// preferences, mood and occasion.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/scrumpts/cocoa-concierge/internal/catalog"
	"github.com/scrumpts/cocoa-concierge/internal/llm"
	"github.com/scrumpts/cocoa-concierge/internal/model"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
	"github.com/scrumpts/cocoa-concierge/pkg/metrics"
)

// SystemPrompt frames the recommendation call.
const SystemPrompt = "You are a chocolate recommendation expert who helps customers find the perfect chocolates."

// MaxRecommendations is the most entries Recommend returns.
const MaxRecommendations = 3

// ErrCatalogUnavailable wraps failures loading the product catalog.
var ErrCatalogUnavailable = errors.New("product catalog unavailable")

// Completer requests a single JSON object completion.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt string, turns []model.Turn) llm.Result
}

// Engine produces recommendations with one structured completion call.
type Engine struct {
	catalog   catalog.Catalog
	completer Completer
	tracer    trace.Tracer
	logger    *logger.Logger
}

// NewEngine creates a recommendation engine.
func NewEngine(cat catalog.Catalog, completer Completer, log *logger.Logger) *Engine {
	return &Engine{
		catalog:   cat,
		completer: completer,
		tracer:    otel.Tracer("github.com/scrumpts/cocoa-concierge/internal/recommend"),
		logger:    log,
	}
}

// Recommend returns up to MaxRecommendations products for req. Completion
// and parse failures are returned as *llm.FailureError; catalog failures wrap
// ErrCatalogUnavailable.
func (e *Engine) Recommend(ctx context.Context, req model.RecommendationRequest) ([]model.Recommendation, error) {
	ctx, span := e.tracer.Start(ctx, "recommend.Recommend", trace.WithAttributes(
		attribute.Bool("signals.preferences", strings.TrimSpace(req.Preferences) != ""),
		attribute.Bool("signals.mood", strings.TrimSpace(req.Mood) != ""),
		attribute.Bool("signals.occasion", strings.TrimSpace(req.Occasion) != ""),
	))
	defer span.End()

	products, err := e.catalog.List(ctx)
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues("catalog_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	res := e.completer.CompleteJSON(ctx, SystemPrompt, []model.Turn{
		model.NewTurn(model.RoleUser, BuildPrompt(products, req)),
	})
	if !res.OK() {
		metrics.RecommendationsTotal.WithLabelValues(string(res.Kind)).Inc()
		return nil, res.AsError()
	}

	recs, err := ParseRecommendations(res.Text, products)
	if err != nil {
		e.logger.Warn("malformed recommendation payload", zap.Error(err))
		metrics.RecommendationsTotal.WithLabelValues(string(llm.FailureServiceUnavailable)).Inc()
		return nil, &llm.FailureError{Kind: llm.FailureServiceUnavailable, Err: err}
	}

	span.SetAttributes(attribute.Int("recommendations", len(recs)))
	metrics.RecommendationsTotal.WithLabelValues("ok").Inc()
	return recs, nil
}

// BuildPrompt renders the signals and every product into the grounding
// prompt. Blank signals are left out.
func BuildPrompt(products []model.Product, req model.RecommendationRequest) string {
	var b strings.Builder

	b.WriteString("I need chocolate recommendations based on the following:\n")
	writeSignal(&b, "Preferences", req.Preferences)
	writeSignal(&b, "Current mood", req.Mood)
	writeSignal(&b, "Occasion", req.Occasion)

	b.WriteString("\nHere's information about our chocolate products:\n")
	for _, p := range products {
		flavors := p.Flavors
		if strings.TrimSpace(flavors) == "" {
			flavors = "Various"
		}
		fmt.Fprintf(&b, "\n- ID: %d\n", p.ID)
		fmt.Fprintf(&b, "  Name: %s\n", p.Name)
		fmt.Fprintf(&b, "  Description: %s\n", p.Description)
		fmt.Fprintf(&b, "  Type: %s\n", p.Type)
		fmt.Fprintf(&b, "  Flavors: %s\n", flavors)
		fmt.Fprintf(&b, "  Price: %s\n", p.DisplayPrice())
	}

	b.WriteString("\nRecommend the top 3 chocolates based on the given preferences, mood and occasion. ")
	b.WriteString("For each recommendation, provide the product ID, a score between 0-100, ")
	b.WriteString("and a personalized reason for the recommendation.\n\n")
	b.WriteString(`Format your response as a JSON object with a 'recommendations' array whose entries have the fields "productId", "score" and "reason".`)

	return b.String()
}

func writeSignal(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

type payload struct {
	Recommendations []struct {
		ProductID json.Number `json:"productId"`
		Score     json.Number `json:"score"`
		Reason    string      `json:"reason"`
	} `json:"recommendations"`
}

// ParseRecommendations decodes the provider payload. Entries naming products
// outside the catalog are dropped, scores are clamped to 0..100 and the
// result is cut to MaxRecommendations.
func ParseRecommendations(text string, products []model.Product) ([]model.Recommendation, error) {
	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	if p.Recommendations == nil {
		return nil, errors.New("decode recommendations: missing recommendations array")
	}

	known := make(map[int64]struct{}, len(products))
	for _, prod := range products {
		known[prod.ID] = struct{}{}
	}

	out := make([]model.Recommendation, 0, MaxRecommendations)
	for _, r := range p.Recommendations {
		if len(out) == MaxRecommendations {
			break
		}
		id, err := r.ProductID.Int64()
		if err != nil {
			continue
		}
		if _, ok := known[id]; !ok {
			continue
		}
		score, err := r.Score.Float64()
		if err != nil {
			score = 0
		}
		out = append(out, model.Recommendation{
			ProductID: id,
			Score:     clampScore(score),
			Reason:    strings.TrimSpace(r.Reason),
		})
	}
	return out, nil
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v + 0.5)
	}
}
