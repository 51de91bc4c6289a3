package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrumpts/cocoa-concierge/internal/catalog"
	"github.com/scrumpts/cocoa-concierge/internal/llm"
	"github.com/scrumpts/cocoa-concierge/internal/model"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

type stubCompleter struct {
	res    llm.Result
	system string
	turns  []model.Turn
	calls  int
}

func (s *stubCompleter) CompleteJSON(_ context.Context, system string, turns []model.Turn) llm.Result {
	s.calls++
	s.system = system
	s.turns = turns
	return s.res
}

type failingCatalog struct{}

func (failingCatalog) List(context.Context) ([]model.Product, error) {
	return nil, errors.New("db down")
}

func newEngine(c Completer) *Engine {
	return NewEngine(catalog.NewStaticCatalog(catalog.SeedProducts()), c, logger.NewNop())
}

func TestRecommend_HappyPath(t *testing.T) {
	sc := &stubCompleter{res: llm.Result{Text: `{"recommendations":[
		{"productId": 1, "score": 95, "reason": "Rich and indulgent"},
		{"productId": 7, "score": 88.6, "reason": "Festive"},
		{"productId": 5, "score": 80, "reason": "Salty sweet"}
	]}`}}
	e := newEngine(sc)

	recs, err := e.Recommend(context.Background(), model.RecommendationRequest{Preferences: "dark", Occasion: "anniversary"})
	require.NoError(t, err)
	require.Equal(t, []model.Recommendation{
		{ProductID: 1, Score: 95, Reason: "Rich and indulgent"},
		{ProductID: 7, Score: 89, Reason: "Festive"},
		{ProductID: 5, Score: 80, Reason: "Salty sweet"},
	}, recs)

	require.Equal(t, 1, sc.calls)
	require.Equal(t, SystemPrompt, sc.system)
	require.Len(t, sc.turns, 1)
	require.Equal(t, model.RoleUser, sc.turns[0].Role)
}

func TestRecommend_QuotaPropagatesDistinctly(t *testing.T) {
	e := newEngine(&stubCompleter{res: llm.Result{Kind: llm.FailureQuotaExceeded, Err: errors.New("insufficient_quota")}})

	_, err := e.Recommend(context.Background(), model.RecommendationRequest{})
	require.Error(t, err)
	require.Equal(t, llm.FailureQuotaExceeded, llm.KindOf(err))
}

func TestRecommend_MalformedPayloadIsUnavailable(t *testing.T) {
	for _, text := range []string{"", "not json", `{"items": []}`, `[1,2,3]`} {
		e := newEngine(&stubCompleter{res: llm.Result{Text: text}})

		recs, err := e.Recommend(context.Background(), model.RecommendationRequest{Mood: "happy"})
		require.Nil(t, recs, "text=%q", text)
		require.Equal(t, llm.FailureServiceUnavailable, llm.KindOf(err), "text=%q", text)
	}
}

func TestRecommend_CatalogFailureIsInternal(t *testing.T) {
	sc := &stubCompleter{}
	e := NewEngine(failingCatalog{}, sc, logger.NewNop())

	_, err := e.Recommend(context.Background(), model.RecommendationRequest{})
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	require.Equal(t, llm.FailureNone, llm.KindOf(err))
	require.Zero(t, sc.calls)
}

func TestParseRecommendations_GroundsAndCaps(t *testing.T) {
	products := catalog.SeedProducts()
	recs, err := ParseRecommendations(`{"recommendations":[
		{"productId": 999, "score": 99, "reason": "not in catalog"},
		{"productId": "2", "score": 150, "reason": " over "},
		{"productId": 3, "score": -4, "reason": "under"},
		{"productId": 4, "score": 50, "reason": "ok"},
		{"productId": 6, "score": 40, "reason": "fourth valid"}
	]}`, products)
	require.NoError(t, err)
	require.Equal(t, []model.Recommendation{
		{ProductID: 2, Score: 100, Reason: "over"},
		{ProductID: 3, Score: 0, Reason: "under"},
		{ProductID: 4, Score: 50, Reason: "ok"},
	}, recs)
}

func TestParseRecommendations_EmptyArray(t *testing.T) {
	recs, err := ParseRecommendations(`{"recommendations":[]}`, catalog.SeedProducts())
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestBuildPrompt(t *testing.T) {
	products := []model.Product{
		{ID: 1, Name: "Dark Chocolate Truffles", Description: "Ganache", Type: model.ChocolateDark, Flavors: "Rich", Price: 2499},
		{ID: 2, Name: "Plain Bar", Description: "Simple", Type: model.ChocolateMilk, Price: 1200},
	}

	prompt := BuildPrompt(products, model.RecommendationRequest{Preferences: "dark", Occasion: "  "})
	require.Contains(t, prompt, "Preferences: dark\n")
	require.NotContains(t, prompt, "Occasion:")
	require.NotContains(t, prompt, "Current mood:")
	require.Contains(t, prompt, "- ID: 1\n")
	require.Contains(t, prompt, "Price: 24.99 INR")
	require.Contains(t, prompt, "Price: 12.00 INR")
	require.Contains(t, prompt, "Flavors: Various")
	require.Contains(t, prompt, "Type: dark")
	require.Equal(t, 1, strings.Count(prompt, "top 3"))
}
