package dto

// ChatRequest is the POST /v1/chat payload. Omitting conversation_id
// starts a new conversation; providing one continues it.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
	Message        string `json:"message" binding:"required"`
	Stream         *bool  `json:"stream,omitempty"`
}

// UpdatePreferencesRequest carries a partial preferences update. Absent
// fields keep their stored value.
type UpdatePreferencesRequest struct {
	DefaultModel *string `json:"default_model,omitempty"`
	Theme        *string `json:"theme,omitempty"`
}
