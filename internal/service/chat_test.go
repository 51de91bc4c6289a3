package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrumpts/cocoa-concierge/internal/llm"
	"github.com/scrumpts/cocoa-concierge/internal/model"
	"github.com/scrumpts/cocoa-concierge/internal/store"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeCompleter struct {
	mu     sync.Mutex
	result llm.Result
	calls  [][]model.Turn
	system string
}

func (f *fakeCompleter) Complete(_ context.Context, system string, turns []model.Turn) llm.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.system = system
	f.calls = append(f.calls, model.CloneTurns(turns))
	return f.result
}

type fakePublisher struct {
	events []*model.CycleEvent
	err    error
}

func (f *fakePublisher) PublishCycle(_ context.Context, e *model.CycleEvent) (uint64, error) {
	f.events = append(f.events, e)
	return uint64(len(f.events)), f.err
}

// racingStore simulates another connection creating the conversation between
// our read and our create.
type racingStore struct {
	*store.MemoryStore
	once sync.Once
}

func (r *racingStore) Create(ctx context.Context, userID string, turns []model.Turn) (*model.Conversation, error) {
	r.once.Do(func() {
		_, _ = r.MemoryStore.Create(ctx, userID, []model.Turn{{Role: model.RoleUser, Content: "other tab", Timestamp: 1}})
	})
	return r.MemoryStore.Create(ctx, userID, turns)
}

type brokenStore struct{ store.Store }

func (brokenStore) GetByUser(context.Context, string) (*model.Conversation, error) {
	return nil, errors.New("connection refused")
}

func newService(st store.Store, c Completer, p EventPublisher) *ChatService {
	return NewChatService(st, c, p, "Scrumpts", logger.NewNop())
}

// ---------------------------------------------------------------------------
// Respond
// ---------------------------------------------------------------------------

func TestRespond_NewConversation(t *testing.T) {
	st := store.NewMemoryStore()
	fc := &fakeCompleter{result: llm.Result{Text: "Try our Dark Chocolate Truffles!"}}
	pub := &fakePublisher{}
	svc := newService(st, fc, pub)

	res, err := svc.Respond(context.Background(), "u1", "Recommend something dark")
	require.NoError(t, err)
	require.Equal(t, llm.FailureNone, res.Kind)
	require.Equal(t, model.RoleAssistant, res.Reply.Role)
	require.Equal(t, "Try our Dark Chocolate Truffles!", res.Reply.Content)
	require.Len(t, res.History, 2)
	require.Equal(t, model.Turn{Role: model.RoleUser, Content: "Recommend something dark", Timestamp: res.History[0].Timestamp}, res.History[0])
	require.GreaterOrEqual(t, res.History[1].Timestamp, res.History[0].Timestamp)

	conv, err := st.GetByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, res.History, conv.Turns)
	require.Equal(t, res.ConversationID, conv.ID)

	require.Contains(t, fc.system, "Cocoa Assistant")
	require.Contains(t, fc.system, "Scrumpts")
	require.Len(t, fc.calls, 1)
	require.Len(t, fc.calls[0], 1)

	require.Len(t, pub.events, 1)
	require.Equal(t, model.CycleOutcomeOK, pub.events[0].Outcome)
	require.Equal(t, 2, pub.events[0].TurnCount)
	require.Equal(t, conv.ID, pub.events[0].ConversationID)

	msg := res.ServerMessage()
	require.Empty(t, msg.Error)
	require.Empty(t, msg.ErrorCode)
	require.Equal(t, res.Reply, *msg.Message)
}

func TestRespond_AppendsToExistingConversation(t *testing.T) {
	st := store.NewMemoryStore()
	fc := &fakeCompleter{result: llm.Result{Text: "reply"}}
	svc := newService(st, fc, nil)
	ctx := context.Background()

	first, err := svc.Respond(ctx, "u1", "one")
	require.NoError(t, err)
	second, err := svc.Respond(ctx, "u1", "two")
	require.NoError(t, err)

	require.Equal(t, first.ConversationID, second.ConversationID)
	require.Len(t, second.History, 4)
	require.Equal(t, first.History, second.History[:2])

	// the model saw the whole history plus the new user turn
	require.Len(t, fc.calls[1], 3)
	require.Equal(t, "two", fc.calls[1][2].Content)
}

func TestRespond_QuotaExceeded(t *testing.T) {
	st := store.NewMemoryStore()
	fc := &fakeCompleter{result: llm.Result{Kind: llm.FailureQuotaExceeded, Err: errors.New("insufficient_quota")}}
	pub := &fakePublisher{}
	svc := newService(st, fc, pub)

	res, err := svc.Respond(context.Background(), "u1", "Recommend something dark")
	require.NoError(t, err)
	require.Equal(t, QuotaFallbackReply, res.Reply.Content)
	require.Len(t, res.History, 2)

	conv, err := st.GetByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, conv.Turns, 2)
	require.Equal(t, QuotaFallbackReply, conv.Turns[1].Content)

	msg := res.ServerMessage()
	require.Equal(t, "quota_exceeded", msg.ErrorCode)
	require.Equal(t, QuotaExceededText, msg.Error)
	require.Equal(t, model.CycleOutcomeQuotaExceeded, pub.events[0].Outcome)
}

func TestRespond_ServiceUnavailable(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newService(st, &fakeCompleter{result: llm.Result{Kind: llm.FailureServiceUnavailable, Err: context.DeadlineExceeded}}, nil)

	res, err := svc.Respond(context.Background(), "u1", "hello")
	require.NoError(t, err)
	require.Equal(t, FallbackReply, res.Reply.Content)
	require.NotEmpty(t, res.Reply.Content)

	msg := res.ServerMessage()
	require.Equal(t, ServiceUnavailableText, msg.Error)
	require.Empty(t, msg.ErrorCode)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "errorCode")
}

func TestRespond_EmptyCompletionText(t *testing.T) {
	svc := newService(store.NewMemoryStore(), &fakeCompleter{result: llm.Result{}}, nil)

	res, err := svc.Respond(context.Background(), "u1", "hello")
	require.NoError(t, err)
	require.Equal(t, EmptyReply, res.Reply.Content)
	require.Equal(t, llm.FailureNone, res.Kind)
}

func TestRespond_DuplicateCreateFallsBackToReplace(t *testing.T) {
	st := &racingStore{MemoryStore: store.NewMemoryStore()}
	svc := newService(st, &fakeCompleter{result: llm.Result{Text: "hi"}}, nil)

	res, err := svc.Respond(context.Background(), "u1", "hello")
	require.NoError(t, err)

	conv, err := st.GetByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, res.History, conv.Turns)
	require.Equal(t, conv.ID, res.ConversationID)
}

func TestRespond_StoreFailureIsReturned(t *testing.T) {
	fc := &fakeCompleter{result: llm.Result{Text: "hi"}}
	svc := newService(brokenStore{}, fc, nil)

	_, err := svc.Respond(context.Background(), "u1", "hello")
	require.Error(t, err)
	require.Empty(t, fc.calls)
}

func TestRespond_PublishFailureDoesNotFailCycle(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	svc := newService(store.NewMemoryStore(), &fakeCompleter{result: llm.Result{Text: "hi"}}, pub)

	_, err := svc.Respond(context.Background(), "u1", "hello")
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func TestHistory(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newService(st, &fakeCompleter{result: llm.Result{Text: "hi"}}, nil)
	ctx := context.Background()

	turns, err := svc.History(ctx, "nobody")
	require.NoError(t, err)
	require.NotNil(t, turns)
	require.Empty(t, turns)

	_, err = svc.Respond(ctx, "u1", "hello")
	require.NoError(t, err)

	turns, err = svc.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, turns, 2)

	_, err = svc.History(ctx, "")
	require.ErrorIs(t, err, store.ErrInvalidUserID)
}
