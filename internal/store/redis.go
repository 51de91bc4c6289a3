package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/scrumpts/cocoa-concierge/internal/model"
)

const (
	redisUserKeyPrefix = "chat:conv:user:"
	redisIDKeyPrefix   = "chat:conv:id:"
)

// RedisStore keeps each conversation as a JSON value keyed by user id, with
// a second key mapping conversation id back to the user.
type RedisStore struct {
	rdb goredis.UniversalClient
}

// NewRedisStore wraps a connected client.
func NewRedisStore(rdb goredis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisClient dials and pings a Redis server.
func NewRedisClient(ctx context.Context, addr, username, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Username:    username,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) GetByUser(ctx context.Context, userID string) (*model.Conversation, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	return s.load(ctx, userID)
}

func (s *RedisStore) Create(ctx context.Context, userID string, turns []model.Turn) (*model.Conversation, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}

	conv := newConversation(userID, turns)
	data, err := json.Marshal(conv)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal conversation: %w", err)
	}

	// Index first so a stored conversation is always reachable by id.
	if err := s.rdb.Set(ctx, redisIDKeyPrefix+conv.ID, userID, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to index conversation: %w", err)
	}

	created, err := s.rdb.SetNX(ctx, redisUserKeyPrefix+userID, data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	if !created {
		_ = s.rdb.Del(ctx, redisIDKeyPrefix+conv.ID).Err()
		return nil, ErrDuplicateConversation
	}

	return conv, nil
}

func (s *RedisStore) ReplaceTurns(ctx context.Context, conversationID string, turns []model.Turn) (*model.Conversation, error) {
	userID, err := s.rdb.Get(ctx, redisIDKeyPrefix+conversationID).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversation: %w", err)
	}

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
	if err := s.rdb.Set(ctx, redisUserKeyPrefix+userID, data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to replace turns: %w", err)
	}

	return conv, nil
}

func (s *RedisStore) load(ctx context.Context, userID string) (*model.Conversation, error) {
	data, err := s.rdb.Get(ctx, redisUserKeyPrefix+userID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	if conv.Turns == nil {
		conv.Turns = []model.Turn{}
	}
	return &conv, nil
}
