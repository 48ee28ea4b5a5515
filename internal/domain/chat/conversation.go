// Package chat contains the bounded conversation core: records, the
// per-identity store, the registry, and the completion turn runner.
package chat

import (
	"strings"
	"time"
	"unicode"
)

// Role indicates who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the two supported variants.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single entry in a conversation log.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// titleMaxRunes bounds the title derived from the first user message.
const titleMaxRunes = 48

// Conversation is one chat thread. ID, Title and ModelID are fixed at
// creation; Messages only ever grows, in append order.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ModelID   string    `json:"model"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation builds a conversation seeded with its first message.
// The title is derived from that message and never recomputed.
func NewConversation(id, modelID string, first Message, now time.Time) *Conversation {
	return &Conversation{
		ID:        id,
		Title:     DeriveTitle(first.Content),
		ModelID:   modelID,
		Messages:  []Message{first},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Summary is the list-view projection of a conversation.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ModelID      string    `json:"model"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary returns the list projection of the conversation.
func (c *Conversation) Summary() Summary {
	return Summary{
		ID:           c.ID,
		Title:        c.Title,
		ModelID:      c.ModelID,
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// Clone returns a deep copy so callers can never mutate store state.
func (c *Conversation) Clone() *Conversation {
	dup := *c
	dup.Messages = make([]Message, len(c.Messages))
	copy(dup.Messages, c.Messages)
	return &dup
}

// DeriveTitle produces a conversation title from the first user message:
// whitespace collapsed, truncated to a fixed rune prefix.
func DeriveTitle(content string) string {
	collapsed := strings.Join(strings.FieldsFunc(content, unicode.IsSpace), " ")
	if collapsed == "" {
		return "New conversation"
	}
	runes := []rune(collapsed)
	if len(runes) <= titleMaxRunes {
		return collapsed
	}
	return strings.TrimRight(string(runes[:titleMaxRunes]), " ") + "…"
}
