package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/scrumpts/cocoa-concierge/internal/model"
)

type conversationRecord struct {
	ID        string         `gorm:"primaryKey;size:36"`
	UserID    string         `gorm:"size:128;not null;uniqueIndex"`
	Turns     datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (conversationRecord) TableName() string { return "chat_conversations" }

func (r *conversationRecord) toModel() (*model.Conversation, error) {
	turns := []model.Turn{}
	if len(r.Turns) > 0 {
		if err := json.Unmarshal(r.Turns, &turns); err != nil {
			return nil, fmt.Errorf("failed to decode turns: %w", err)
		}
	}
	return &model.Conversation{
		ID:        r.ID,
		UserID:    r.UserID,
		Turns:     turns,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func encodeTurns(turns []model.Turn) (datatypes.JSON, error) {
	data, err := json.Marshal(model.CloneTurns(turns))
	if err != nil {
		return nil, fmt.Errorf("failed to encode turns: %w", err)
	}
	return datatypes.JSON(data), nil
}

// SQLStore keeps conversations in a relational table through gorm. A unique
// index on user_id enforces one conversation per user.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore migrates the conversation table and returns the store.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&conversationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate conversations: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) GetByUser(ctx context.Context, userID string) (*model.Conversation, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	var rec conversationRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return rec.toModel()
}

func (s *SQLStore) Create(ctx context.Context, userID string, turns []model.Turn) (*model.Conversation, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	conv := newConversation(userID, turns)
	data, err := encodeTurns(conv.Turns)
	if err != nil {
		return nil, err
	}

	rec := conversationRecord{
		ID:        conv.ID,
		UserID:    userID,
		Turns:     data,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&conversationRecord{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateConversation
		}
		return tx.Create(&rec).Error
	})
	switch {
	case errors.Is(err, ErrDuplicateConversation), errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, ErrDuplicateConversation
	case err != nil:
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

func (s *SQLStore) ReplaceTurns(ctx context.Context, conversationID string, turns []model.Turn) (*model.Conversation, error) {
	data, err := encodeTurns(turns)
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).
		Model(&conversationRecord{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{"turns": data, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to replace turns: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var rec conversationRecord
	if err := s.db.WithContext(ctx).Where("id = ?", conversationID).First(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to reload conversation: %w", err)
	}
	return rec.toModel()
}
