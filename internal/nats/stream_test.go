package nats

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/scrumpts/cocoa-concierge/internal/model"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
)

func TestCycleSubject(t *testing.T) {
	require.Equal(t, "chat.cycle.ok", CycleSubject(model.CycleOutcomeOK))
	require.Equal(t, "chat.cycle.quota_exceeded", CycleSubject(model.CycleOutcomeQuotaExceeded))
	require.Equal(t, "chat.cycle.service_unavailable", CycleSubject(model.CycleOutcomeServiceUnavailable))
}

func TestConnect_Validation(t *testing.T) {
	_, err := Connect(context.Background(), Config{}, logger.NewNop())
	require.Error(t, err)

	_, err = Connect(context.Background(), Config{
		URL:    "nats://127.0.0.1:4222",
		CAFile: filepath.Join(t.TempDir(), "missing.pem"),
	}, logger.NewNop())
	require.ErrorContains(t, err, "TLS")
}

func TestLoadTLSConfig(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))

	_, err := loadTLSConfig(bad, "", "")
	require.ErrorContains(t, err, "parse CA")
}

// ---------------------------------------------------------------------------
// live JetStream
// ---------------------------------------------------------------------------

func liveClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("set TEST_NATS_URL to run the JetStream tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Connect(ctx, Config{URL: url}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestPublishCycle(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	require.True(t, c.IsConnected())

	m := NewStreamManager(c)
	require.NoError(t, m.EnsureStream(ctx))
	require.NoError(t, m.EnsureStream(ctx))

	event := &model.CycleEvent{
		ID:             uuid.NewString(),
		UserID:         "u1",
		ConversationID: uuid.NewString(),
		Outcome:        model.CycleOutcomeQuotaExceeded,
		TurnCount:      2,
		LatencyMs:      12,
		CreatedAt:      time.Now().UTC(),
	}
	seq, err := m.PublishCycle(ctx, event)
	require.NoError(t, err)
	require.NotZero(t, seq)

	// same message id is deduplicated by the stream
	dup, err := m.PublishCycle(ctx, event)
	require.NoError(t, err)
	require.Equal(t, seq, dup)

	stream, err := c.JetStream().Stream(ctx, StreamName)
	require.NoError(t, err)
	msg, err := stream.GetMsg(ctx, seq)
	require.NoError(t, err)
	require.Equal(t, "chat.cycle.quota_exceeded", msg.Subject)

	var got model.CycleEvent
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	require.Equal(t, event.ConversationID, got.ConversationID)
}
