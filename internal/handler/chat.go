package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/scrumpts/cocoa-concierge/internal/model"
	"github.com/scrumpts/cocoa-concierge/internal/store"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

// HistoryReader returns a user's conversation turns.
type HistoryReader interface {
	History(ctx context.Context, userID string) ([]model.Turn, error)
}

// ChatHandler serves chat history.
type ChatHandler struct {
	history HistoryReader
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(history HistoryReader, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		history: history,
		logger:  log,
	}
}

// History handles GET /api/chat/{userId}
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := store.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	turns, err := h.history.History(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get chat history", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get chat history")
		return
	}

	writeJSON(w, http.StatusOK, model.HistoryResponse{Messages: turns})
}
