package dto

import (
	"time"

	"github.com/simon-lehmann/goldfish.chat/internal/domain/chat"
)

// MessagePayload is one chat message on the wire.
type MessagePayload struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationPayload is a full conversation record.
type ConversationPayload struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Model     string           `json:"model"`
	Messages  []MessagePayload `json:"messages"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ConversationSummaryPayload is the list projection of a conversation.
type ConversationSummaryPayload struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConversationListPayload wraps the summaries for GET /v1/conversations.
type ConversationListPayload struct {
	Data []ConversationSummaryPayload `json:"data"`
}

// PreferencesPayload mirrors the stored preference blob.
type PreferencesPayload struct {
	DefaultModel string `json:"default_model"`
	Theme        string `json:"theme"`
}

// ModelListPayload wraps available model IDs.
type ModelListPayload struct {
	Data []string `json:"data"`
}

// FromConversation converts a domain conversation.
func FromConversation(conv *chat.Conversation) ConversationPayload {
	messages := make([]MessagePayload, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		messages = append(messages, MessagePayload{
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	return ConversationPayload{
		ID:        conv.ID,
		Title:     conv.Title,
		Model:     conv.ModelID,
		Messages:  messages,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
}

// FromSummaries converts domain summaries into the list payload.
func FromSummaries(summaries []chat.Summary) ConversationListPayload {
	data := make([]ConversationSummaryPayload, 0, len(summaries))
	for _, s := range summaries {
		data = append(data, ConversationSummaryPayload{
			ID:           s.ID,
			Title:        s.Title,
			Model:        s.ModelID,
			MessageCount: s.MessageCount,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	return ConversationListPayload{Data: data}
}

// FromPreferences converts the domain preference blob.
func FromPreferences(prefs chat.Preferences) PreferencesPayload {
	return PreferencesPayload{
		DefaultModel: prefs.DefaultModel,
		Theme:        prefs.Theme,
	}
}
