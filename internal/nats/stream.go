package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/scrumpts/cocoa-concierge/internal/model"
)

const (
	// StreamName is the name of the chat events stream.
	StreamName = "CHAT_EVENTS"

	// SubjectPrefix is the prefix for all chat event subjects.
	SubjectPrefix = "chat"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	js jetstream.JetStream
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{js: client.JetStream()}
}

// EnsureStream ensures the chat events stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	_, err := m.js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = m.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024, // 10GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Completed chat cycles",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// CycleSubject returns the subject a cycle event is published on.
func CycleSubject(outcome model.CycleOutcome) string {
	return fmt.Sprintf("%s.cycle.%s", SubjectPrefix, outcome)
}

// PublishCycle publishes a completed chat cycle.
func (m *StreamManager) PublishCycle(ctx context.Context, event *model.CycleEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.js.Publish(ctx, CycleSubject(event.Outcome), data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}
