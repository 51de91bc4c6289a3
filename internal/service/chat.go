// Package service holds the chat cycle: read history, ask the model,
// persist, and shape the reply.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scrumpts/cocoa-concierge/internal/llm"
	"github.com/scrumpts/cocoa-concierge/internal/model"
	"github.com/scrumpts/cocoa-concierge/internal/store"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
	"github.com/scrumpts/cocoa-concierge/pkg/metrics"
)

// User-facing strings for degraded replies.
const (
	FallbackReply      = "I'm sorry, I'm having trouble connecting to my knowledge base right now. Please try again in a moment."
	QuotaFallbackReply = "I'm sorry, our assistant has reached its usage limit for now. Please try again a little later, or browse our collections in the meantime."
	EmptyReply         = "I'm sorry, I couldn't generate a response at this time."

	ServiceUnavailableText = "AI service temporarily unavailable"
	QuotaExceededText      = "AI service usage limit reached"
)

// SystemPrompt returns the assistant instructions for brand.
func SystemPrompt(brand string) string {
	return fmt.Sprintf("You are Cocoa Assistant, an AI helper for a luxury chocolate e-commerce store named %[1]s. "+
		"Help customers find the perfect chocolates based on their preferences, mood, occasion, or dietary requirements. "+
		"Be friendly, helpful, and knowledgeable about chocolate-making processes, flavors, and pairings. "+
		"Provide concise, helpful responses, and suggest specific products from %[1]s' collection when appropriate.", brand)
}

// Completer generates the assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, turns []model.Turn) llm.Result
}

// EventPublisher records completed cycles.
type EventPublisher interface {
	PublishCycle(ctx context.Context, event *model.CycleEvent) (uint64, error)
}

// CycleResult is what one chat cycle produced.
type CycleResult struct {
	ConversationID string
	Reply          model.Turn
	History        []model.Turn
	Kind           llm.FailureKind
}

// ServerMessage renders the result as the outbound socket frame.
func (r *CycleResult) ServerMessage() model.ServerMessage {
	reply := r.Reply
	msg := model.ServerMessage{
		Message: &reply,
		History: r.History,
	}
	switch r.Kind {
	case llm.FailureQuotaExceeded:
		msg.Error = QuotaExceededText
		msg.ErrorCode = string(llm.FailureQuotaExceeded)
	case llm.FailureServiceUnavailable:
		msg.Error = ServiceUnavailableText
	}
	return msg
}

// ChatService runs chat cycles against the conversation store.
type ChatService struct {
	store        store.Store
	completer    Completer
	events       EventPublisher
	systemPrompt string
	logger       *logger.Logger
}

// NewChatService creates a chat service. events may be nil.
func NewChatService(st store.Store, completer Completer, events EventPublisher, brand string, log *logger.Logger) *ChatService {
	return &ChatService{
		store:        st,
		completer:    completer,
		events:       events,
		systemPrompt: SystemPrompt(brand),
		logger:       log,
	}
}

// History returns the user's turns, or an empty list when there is no
// conversation yet.
func (s *ChatService) History(ctx context.Context, userID string) ([]model.Turn, error) {
	conv, err := s.store.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return []model.Turn{}, nil
	}
	return conv.Turns, nil
}

// Respond runs one cycle for content. Completion failures are folded into a
// fallback reply; the returned error is reserved for store failures.
func (s *ChatService) Respond(ctx context.Context, userID, content string) (*CycleResult, error) {
	start := time.Now()

	existing, err := s.store.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var turns []model.Turn
	if existing != nil {
		turns = model.CloneTurns(existing.Turns)
	}
	turns = append(turns, model.NewTurn(model.RoleUser, content))

	res := s.completer.Complete(ctx, s.systemPrompt, turns)

	var reply model.Turn
	switch {
	case res.OK() && res.Text == "":
		reply = model.NewTurn(model.RoleAssistant, EmptyReply)
	case res.OK():
		reply = model.NewTurn(model.RoleAssistant, res.Text)
	case res.Kind == llm.FailureQuotaExceeded:
		reply = model.NewTurn(model.RoleAssistant, QuotaFallbackReply)
	default:
		reply = model.NewTurn(model.RoleAssistant, FallbackReply)
	}
	// Keep timestamps non-decreasing even if the clock stepped back.
	if last := turns[len(turns)-1].Timestamp; reply.Timestamp < last {
		reply.Timestamp = last
	}
	turns = append(turns, reply)

	conv, err := s.persist(ctx, existing, userID, turns)
	if err != nil {
		return nil, fmt.Errorf("failed to persist conversation: %w", err)
	}

	outcome := cycleOutcome(res.Kind)
	metrics.ChatCyclesTotal.WithLabelValues(string(outcome)).Inc()
	s.publish(ctx, &model.CycleEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		UserID:         userID,
		ConversationID: conv.ID,
		Outcome:        outcome,
		TurnCount:      len(turns),
		LatencyMs:      time.Since(start).Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	})

	return &CycleResult{
		ConversationID: conv.ID,
		Reply:          reply,
		History:        turns,
		Kind:           res.Kind,
	}, nil
}

// persist writes turns as the user's conversation. A concurrent create for
// the same user is resolved by replacing; the last writer wins.
func (s *ChatService) persist(ctx context.Context, existing *model.Conversation, userID string, turns []model.Turn) (*model.Conversation, error) {
	if existing != nil {
		conv, err := s.store.ReplaceTurns(ctx, existing.ID, turns)
		if err != nil || conv != nil {
			return conv, err
		}
	}

	conv, err := s.store.Create(ctx, userID, turns)
	if !errors.Is(err, store.ErrDuplicateConversation) {
		return conv, err
	}

	current, err := s.store.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errors.New("conversation vanished during create")
	}
	conv, err = s.store.ReplaceTurns(ctx, current.ID, turns)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errors.New("conversation vanished during replace")
	}
	return conv, nil
}

func (s *ChatService) publish(ctx context.Context, event *model.CycleEvent) {
	if s.events == nil {
		return
	}
	seq, err := s.events.PublishCycle(ctx, event)
	if err != nil {
		metrics.NATSPublishTotal.WithLabelValues("error").Inc()
		s.logger.Warn("failed to publish cycle event",
			zap.String("user_id", event.UserID),
			zap.String("conversation_id", event.ConversationID),
			zap.Error(err),
		)
		return
	}
	metrics.NATSPublishTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("cycle event published", zap.Uint64("sequence", seq))
}

func cycleOutcome(kind llm.FailureKind) model.CycleOutcome {
	switch kind {
	case llm.FailureNone:
		return model.CycleOutcomeOK
	case llm.FailureQuotaExceeded:
		return model.CycleOutcomeQuotaExceeded
	default:
		return model.CycleOutcomeServiceUnavailable
	}
}
