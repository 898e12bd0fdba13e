package domain

import (
	"time"

	"github.com/google/uuid"
)

// Origin tells who authored a chat message.
type Origin string

const (
	OriginUser        Origin = "user"
	OriginRemoteAgent Origin = "remoteAgent"
	OriginSystem      Origin = "system"
)

// ChatMessage is a single entry of a conversation. Never mutated once appended.
type ChatMessage struct {
	ID     string    `json:"id"`
	Origin Origin    `json:"origin"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// Conversation is the append-only message sequence of one live connection.
// It is owned by the controller loop and is not safe for concurrent use.
type Conversation struct {
	messages []ChatMessage
	now      func() time.Time
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{now: time.Now}
}

// Append adds a message and returns it. IDs are UUIDv7 so they sort by creation time.
func (c *Conversation) Append(origin Origin, text string) ChatMessage {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	msg := ChatMessage{
		ID:     id.String(),
		Origin: origin,
		Text:   text,
		SentAt: c.now(),
	}
	c.messages = append(c.messages, msg)
	return msg
}

// Messages returns a copy of the sequence in insertion order.
func (c *Conversation) Messages() []ChatMessage {
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// Reset discards every message.
func (c *Conversation) Reset() { c.messages = nil }
