package store

import (
	"context"
	"sync"
	"time"

	"github.com/scrumpts/cocoa-concierge/internal/model"
)

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string]*model.Conversation
	byID   map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUser: make(map[string]*model.Conversation),
		byID:   make(map[string]string),
	}
}

func (s *MemoryStore) GetByUser(_ context.Context, userID string) (*model.Conversation, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.byUser[userID].Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, userID string, turns []model.Turn) (*model.Conversation, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[userID]; exists {
		return nil, ErrDuplicateConversation
	}

	conv := newConversation(userID, turns)
	s.byUser[userID] = conv
	s.byID[conv.ID] = userID

	return conv.Clone(), nil
}

func (s *MemoryStore) ReplaceTurns(_ context.Context, conversationID string, turns []model.Turn) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byID[conversationID]
	if !ok {
		return nil, nil
	}
	conv := s.byUser[userID]
	conv.Turns = model.CloneTurns(turns)
	conv.UpdatedAt = time.Now().UTC()

	return conv.Clone(), nil
}
