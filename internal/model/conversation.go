// Package model defines data structures for the chat and recommendation core.
package model

import (
	"time"
)

// Conversation is the single persisted thread belonging to a user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Turns = CloneTurns(c.Turns)
	return &out
}
