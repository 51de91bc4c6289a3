// Package store persists the one conversation each user has.
package store

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/scrumpts/cocoa-concierge/internal/model"
)

// MaxUserIDLength bounds user identifiers accepted by every backend.
const MaxUserIDLength = 128

var (
	// ErrDuplicateConversation is returned by Create when the user already
	// has a conversation.
	ErrDuplicateConversation = errors.New("conversation already exists for user")

	// ErrInvalidUserID is returned for empty, oversized or non UTF-8 ids.
	ErrInvalidUserID = errors.New("invalid user id")
)

// Store is the conversation persistence contract. Absence is reported as a
// nil conversation with a nil error. Returned conversations never share turn
// slices with the store.
type Store interface {
	GetByUser(ctx context.Context, userID string) (*model.Conversation, error)
	Create(ctx context.Context, userID string, turns []model.Turn) (*model.Conversation, error)
	ReplaceTurns(ctx context.Context, conversationID string, turns []model.Turn) (*model.Conversation, error)
}

// ValidateUserID checks the user id shape shared by all backends.
func ValidateUserID(userID string) error {
	if userID == "" || len(userID) > MaxUserIDLength || !utf8.ValidString(userID) {
		return ErrInvalidUserID
	}
	return nil
}

func newConversation(userID string, turns []model.Turn) *model.Conversation {
	now := time.Now().UTC()
	return &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Turns:     model.CloneTurns(turns),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
