package model

import (
	"time"
)

// Role represents the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single message in a conversation. Turns are never mutated after
// they are appended.
type Turn struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// NewTurn creates a turn stamped with the current time in milliseconds.
func NewTurn(role Role, content string) Turn {
	return Turn{
		Role:      role,
		Content:   content,
		Timestamp: NowMillis(),
	}
}

// NowMillis returns the current time as milliseconds since the epoch.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// CloneTurns returns a copy of turns that does not share the backing array.
// A nil input yields an empty, non-nil slice so JSON encodes as [].
func CloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// ClientMessage is an inbound frame on the chat socket.
type ClientMessage struct {
	UserID  string `json:"userId"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

// MessageTypePing marks a client frame that only binds the session.
const MessageTypePing = "ping"

// IsPing reports whether the frame is a binding ping.
func (m ClientMessage) IsPing() bool {
	return m.Type == MessageTypePing
}

// ServerMessage is an outbound frame on the chat socket. A successful cycle
// carries Message and History. A degraded cycle adds Error and, for quota
// failures, ErrorCode. A protocol failure carries only Error and Details.
type ServerMessage struct {
	Message   *Turn  `json:"message,omitempty"`
	History   []Turn `json:"history,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Details   string `json:"details,omitempty"`
}

// HistoryResponse is the body of the chat history endpoint.
type HistoryResponse struct {
	Messages []Turn `json:"messages"`
}
