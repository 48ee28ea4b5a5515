package handlers

import (
	"github.com/rs/zerolog"

	"github.com/simon-lehmann/goldfish.chat/internal/domain/chat"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Chat *ChatHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(registry *chat.Registry, runner *chat.TurnRunner, models ModelLister, defaultModel string, log zerolog.Logger) *Provider {
	return &Provider{
		Chat: NewChatHandler(registry, runner, models, defaultModel, log),
	}
}
