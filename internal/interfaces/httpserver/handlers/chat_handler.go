package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/simon-lehmann/goldfish.chat/internal/domain/chat"
	"github.com/simon-lehmann/goldfish.chat/internal/infrastructure/auth"
	"github.com/simon-lehmann/goldfish.chat/internal/infrastructure/observability"
	"github.com/simon-lehmann/goldfish.chat/internal/interfaces/httpserver/dto"
	"github.com/simon-lehmann/goldfish.chat/internal/interfaces/httpserver/middlewares"
	"github.com/simon-lehmann/goldfish.chat/internal/utils/platformerrors"
)

// ModelLister exposes the models the completion provider serves.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// ChatHandler exposes the conversation store and chat turns over HTTP.
type ChatHandler struct {
	registry     *chat.Registry
	runner       *chat.TurnRunner
	models       ModelLister
	defaultModel string
	log          zerolog.Logger
}

// NewChatHandler constructs the handler.
func NewChatHandler(registry *chat.Registry, runner *chat.TurnRunner, models ModelLister, defaultModel string, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		registry:     registry,
		runner:       runner,
		models:       models,
		defaultModel: defaultModel,
		log:          log.With().Str("handler", "chat").Logger(),
	}
}

// List handles GET /v1/conversations
// @Summary List conversations
// @Description Lists the caller's conversations, most recently updated first.
// @Tags Conversations
// @Produce json
// @Success 200 {object} dto.ConversationListPayload
// @Router /v1/conversations [get]
func (h *ChatHandler) List(c *gin.Context) {
	store, err := h.resolveStore(c)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromSummaries(store.ListConversations(c.Request.Context())))
}

// Get handles GET /v1/conversations/:conversation_id
// @Summary Get a conversation
// @Tags Conversations
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Success 200 {object} dto.ConversationPayload
// @Failure 404 {object} map[string]string
// @Router /v1/conversations/{conversation_id} [get]
func (h *ChatHandler) Get(c *gin.Context) {
	store, err := h.resolveStore(c)
	if err != nil {
		h.renderError(c, err)
		return
	}

	conv, err := store.GetConversation(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromConversation(conv))
}

// Chat handles POST /v1/chat
// @Summary Run a chat turn
// @Description Appends the user message to a new or existing conversation and streams the assistant reply.
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body dto.ChatRequest true "Chat request"
// @Success 200 {object} dto.ConversationPayload
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /v1/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, err := h.resolveStore(c)
	if err != nil {
		h.renderError(c, err)
		return
	}

	modelID := req.Model
	if modelID == "" {
		modelID = store.Preferences(c.Request.Context()).DefaultModel
	}
	if modelID == "" {
		modelID = h.defaultModel
	}

	stream := req.Stream != nil && *req.Stream
	ctx, span := observability.StartTurnSpan(c.Request.Context(), modelID, stream)
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	params := chat.AppendParams{
		ConversationID: req.ConversationID,
		ModelID:        modelID,
		Message:        chat.Message{Role: chat.RoleUser, Content: req.Message},
	}

	if stream {
		conv, err := h.streamTurn(c, store, params)
		if err != nil {
			observability.RecordError(span, err)
			return
		}
		if conv != nil {
			span.SetAttributes(observability.ConversationAttributes(conv.ID, conv.ModelID, len(conv.Messages))...)
		}
		return
	}

	conv, err := h.runner.Run(c.Request.Context(), store, params, nil)
	if err != nil {
		observability.RecordError(span, err)
		h.renderError(c, err)
		return
	}
	span.SetAttributes(observability.ConversationAttributes(conv.ID, conv.ModelID, len(conv.Messages))...)
	c.JSON(http.StatusOK, dto.FromConversation(conv))
}

// Delete handles DELETE /v1/conversations/:conversation_id
// @Summary Delete a conversation
// @Tags Conversations
// @Produce json
// @Param conversation_id path string true "Conversation ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /v1/conversations/{conversation_id} [delete]
func (h *ChatHandler) Delete(c *gin.Context) {
	store, err := h.resolveStore(c)
	if err != nil {
		h.renderError(c, err)
		return
	}

	ctx, span := observability.StartStoreSpan(c.Request.Context(), "delete_conversation")
	defer span.End()

	if err := store.DeleteConversation(ctx, c.Param("conversation_id")); err != nil {
		observability.RecordError(span, err)
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear handles DELETE /v1/conversations
// @Summary Clear all conversations
// @Description Removes every conversation while keeping preferences. Idempotent.
// @Tags Conversations
// @Success 204
// @Router /v1/conversations [delete]
func (h *ChatHandler) Clear(c *gin.Context) {
	store, err := h.resolveStore(c)
	if err != nil {
		h.renderError(c, err)
		return
	}

	ctx, span := observability.StartStoreSpan(c.Request.Context(), "clear_all")
	defer span.End()

	if err := store.ClearAll(ctx); err != nil {
		observability.RecordError(span, err)
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPreferences handles GET /v1/preferences
// @Summary Get preferences
// @Tags Preferences
// @Produce json
// @Success 200 {object} dto.PreferencesPayload
// @Router /v1/preferences [get]
func (h *ChatHandler) GetPreferences(c *gin.Context) {
	store, err := h.resolveStore(c)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromPreferences(store.Preferences(c.Request.Context())))
}

// UpdatePreferences handles PATCH /v1/preferences
// @Summary Update preferences
// @Description Merges the provided fields into the stored preferences.
// @Tags Preferences
// @Accept json
// @Produce json
// @Param request body dto.UpdatePreferencesRequest true "Preference changes"
// @Success 200 {object} dto.PreferencesPayload
// @Failure 400 {object} map[string]string
// @Router /v1/preferences [patch]
func (h *ChatHandler) UpdatePreferences(c *gin.Context) {
	var req dto.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, err := h.resolveStore(c)
	if err != nil {
		h.renderError(c, err)
		return
	}

	prefs, err := store.UpdatePreferences(c.Request.Context(), chat.PreferencesUpdate{
		DefaultModel: req.DefaultModel,
		Theme:        req.Theme,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromPreferences(prefs))
}

// Models handles GET /v1/models
// @Summary List available models
// @Tags Chat
// @Produce json
// @Success 200 {object} dto.ModelListPayload
// @Failure 502 {object} map[string]string
// @Router /v1/models [get]
func (h *ChatHandler) Models(c *gin.Context) {
	ids, err := h.models.ListModels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ModelListPayload{Data: ids})
}

func (h *ChatHandler) resolveStore(c *gin.Context) (*chat.Store, error) {
	return h.registry.Resolve(c.Request.Context(), auth.Identity(c))
}

func (h *ChatHandler) renderError(c *gin.Context, err error) {
	log := h.log
	if requestID := middlewares.RequestIDFromContext(c); requestID != "" {
		log = log.With().Str("request_id", requestID).Logger()
	}
	platformerrors.Log(log, err)
	c.JSON(platformerrors.HTTPStatus(err), gin.H{"error": err.Error()})
}

func (h *ChatHandler) streamTurn(c *gin.Context, store *chat.Store, params chat.AppendParams) (*chat.Conversation, error) {
	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return nil, nil
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	observer := newSSEObserver(writer, flusher, h.log)

	conv, err := h.runner.Run(c.Request.Context(), store, params, observer)
	if err != nil {
		platformerrors.Log(h.log, err)
		observer.SendError(err)
		return nil, err
	}
	observer.SendCompleted(conv)
	return conv, nil
}

// sseObserver writes turn progress as server-sent events.
type sseObserver struct {
	writer         http.ResponseWriter
	flusher        http.Flusher
	log            zerolog.Logger
	mu             sync.Mutex
	conversationID string
}

func newSSEObserver(w http.ResponseWriter, flusher http.Flusher, log zerolog.Logger) *sseObserver {
	return &sseObserver{
		writer:  w,
		flusher: flusher,
		log:     log,
	}
}

func (o *sseObserver) OnConversation(conv *chat.Conversation) {
	o.conversationID = conv.ID
	o.sendEvent("conversation", map[string]interface{}{
		"id":    conv.ID,
		"title": conv.Title,
		"model": conv.ModelID,
	})
}

func (o *sseObserver) OnChunk(text string) {
	o.sendEvent("delta", map[string]interface{}{
		"id":    o.conversationID,
		"delta": text,
	})
}

func (o *sseObserver) SendCompleted(conv *chat.Conversation) {
	o.sendEvent("completed", dto.FromConversation(conv))
	o.sendDone()
}

func (o *sseObserver) SendError(err error) {
	o.sendEvent("error", map[string]interface{}{
		"id":    o.conversationID,
		"error": err.Error(),
	})
	o.sendDone()
}

func (o *sseObserver) sendEvent(event string, payload interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		o.log.Error().Err(err).Str("event", event).Msg("marshal sse payload")
		return
	}

	if _, err := o.writer.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n")); err != nil {
		o.log.Warn().Err(err).Msg("write sse event")
		return
	}
	o.flusher.Flush()
}

func (o *sseObserver) sendDone() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.writer.Write([]byte("data: [DONE]\n\n")); err != nil {
		o.log.Warn().Err(err).Msg("write sse done")
		return
	}
	o.flusher.Flush()
}
