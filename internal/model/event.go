package model

import (
	"time"
)

// CycleOutcome is the result of a chat cycle.
type CycleOutcome string

const (
	CycleOutcomeOK                 CycleOutcome = "ok"
	CycleOutcomeQuotaExceeded      CycleOutcome = "quota_exceeded"
	CycleOutcomeServiceUnavailable CycleOutcome = "service_unavailable"
)

// CycleEvent is published after every completed chat cycle.
type CycleEvent struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	ConversationID string       `json:"conversationId"`
	Outcome        CycleOutcome `json:"outcome"`
	TurnCount      int          `json:"turnCount"`
	LatencyMs      int64        `json:"latencyMs"`
	CreatedAt      time.Time    `json:"createdAt"`
	Sequence       uint64       `json:"sequence,omitempty"`
}
