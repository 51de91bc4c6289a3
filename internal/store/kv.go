package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/scrumpts/cocoa-concierge/internal/model"
)

// ConversationBucket is the JetStream key-value bucket holding conversations.
const ConversationBucket = "CHAT_CONVERSATIONS"

// KVStore keeps conversations in a JetStream key-value bucket. User ids are
// base64url encoded since KV keys only allow a restricted alphabet.
type KVStore struct {
	kv jetstream.KeyValue
}

// NewKVStore opens the conversation bucket, creating it if needed.
func NewKVStore(ctx context.Context, js jetstream.JetStream) (*KVStore, error) {
	kv, err := js.KeyValue(ctx, ConversationBucket)
	if err == nil {
		return &KVStore{kv: kv}, nil
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      ConversationBucket,
		Description: "Chat conversations keyed by user",
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation bucket: %w", err)
	}
	return &KVStore{kv: kv}, nil
}

func kvUserKey(userID string) string {
	return "user." + base64.RawURLEncoding.EncodeToString([]byte(userID))
}

func kvIDKey(conversationID string) string {
	return "id." + conversationID
}

func (s *KVStore) GetByUser(ctx context.Context, userID string) (*model.Conversation, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	return s.load(ctx, userID)
}

func (s *KVStore) Create(ctx context.Context, userID string, turns []model.Turn) (*model.Conversation, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	conv := newConversation(userID, turns)
	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if _, err := s.kv.Put(ctx, kvIDKey(conv.ID), []byte(userID)); err != nil {
		return nil, fmt.Errorf("failed to index conversation: %w", err)
	}

	if _, err := s.kv.Create(ctx, kvUserKey(userID), data); err != nil {
		_ = s.kv.Delete(ctx, kvIDKey(conv.ID))
		if errors.Is(err, jetstream.ErrKeyExists) {
			return nil, ErrDuplicateConversation
		}
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

func (s *KVStore) ReplaceTurns(ctx context.Context, conversationID string, turns []model.Turn) (*model.Conversation, error) {
	entry, err := s.kv.Get(ctx, kvIDKey(conversationID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}

	userID := string(entry.Value())
	conv, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.ID != conversationID {
		return nil, nil
	}

	conv.Turns = model.CloneTurns(turns)
	conv.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if _, err := s.kv.Put(ctx, kvUserKey(userID), data); err != nil {
		return nil, fmt.Errorf("failed to replace turns: %w", err)
	}

	return conv, nil
}

func (s *KVStore) load(ctx context.Context, userID string) (*model.Conversation, error) {
	entry, err := s.kv.Get(ctx, kvUserKey(userID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(entry.Value(), &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	if conv.Turns == nil {
		conv.Turns = []model.Turn{}
	}
	return &conv, nil
}
