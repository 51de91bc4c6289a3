package handler

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/scrumpts/cocoa-concierge/internal/llm"
	"github.com/scrumpts/cocoa-concierge/internal/middleware"
	"github.com/scrumpts/cocoa-concierge/internal/model"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

// Recommender produces product recommendations.
type Recommender interface {
	Recommend(ctx context.Context, req model.RecommendationRequest) ([]model.Recommendation, error)
}

// RecommendHandler serves AI recommendations.
type RecommendHandler struct {
	engine Recommender
	logger *logger.Logger
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(engine Recommender, log *logger.Logger) *RecommendHandler {
	return &RecommendHandler{
		engine: engine,
		logger: log,
	}
}

// Recommend handles POST /api/recommend
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req model.RecommendationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, f := range []struct{ name, value string }{
		{"preferences", req.Preferences},
		{"mood", req.Mood},
		{"occasion", req.Occasion},
	} {
		if err := middleware.ValidateSignal(f.name, f.value); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	recs, err := h.engine.Recommend(r.Context(), req)
	if err != nil {
		h.writeRecommendError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.RecommendationResponse{Recommendations: recs})
}

func (h *RecommendHandler) writeRecommendError(w http.ResponseWriter, r *http.Request, err error) {
	log := h.logger.With(zap.String("correlation_id", middleware.GetCorrelationID(r.Context())))

	var failure *llm.FailureError
	if errors.As(err, &failure) {
		log.Warn("recommendation degraded", zap.String("kind", string(failure.Kind)), zap.Error(err))
		if failure.Kind == llm.FailureQuotaExceeded {
			writeErrorCode(w, http.StatusTooManyRequests, "AI service usage limit reached", string(llm.FailureQuotaExceeded))
			return
		}
		writeErrorCode(w, http.StatusServiceUnavailable, "AI service temporarily unavailable", string(llm.FailureServiceUnavailable))
		return
	}

	log.Error("failed to get recommendations", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to get recommendations")
}
