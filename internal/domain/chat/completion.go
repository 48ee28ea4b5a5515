package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/simon-lehmann/goldfish.chat/internal/infrastructure/metrics"
	"github.com/simon-lehmann/goldfish.chat/internal/utils/platformerrors"
)

// CompletionStream yields assistant text fragments in order. Recv
// returns io.EOF once generation finished cleanly; any other error is a
// failed or cancelled stream. Streams are finite and not restartable.
type CompletionStream interface {
	Recv() (string, error)
	Close() error
}

// CompletionStreamer is the contract the core uses to obtain assistant
// text for a model and an ordered message history.
type CompletionStreamer interface {
	StreamCompletion(ctx context.Context, modelID string, history []Message) (CompletionStream, error)
}

// TurnObserver receives turn progress. OnConversation fires once the
// user message has been stored; OnChunk fires per fragment as it
// arrives from the provider.
type TurnObserver interface {
	OnConversation(conv *Conversation)
	OnChunk(text string)
}

// TurnRunner drives one chat turn: store the user message, stream the
// completion, and store the full assistant reply. A failed or cancelled
// stream persists nothing of the assistant turn, so the conversation is
// left at "user spoke, no reply yet" and can simply be retried.
type TurnRunner struct {
	streamer CompletionStreamer
	log      zerolog.Logger
}

// NewTurnRunner wires the runner.
func NewTurnRunner(streamer CompletionStreamer, log zerolog.Logger) *TurnRunner {
	return &TurnRunner{
		streamer: streamer,
		log:      log.With().Str("component", "turn-runner").Logger(),
	}
}

// Run executes a complete turn against the given store. The observer
// may be nil for non-streaming callers.
func (r *TurnRunner) Run(ctx context.Context, store *Store, params AppendParams, observer TurnObserver) (*Conversation, error) {
	start := time.Now()

	params.Message.Role = RoleUser
	conv, err := store.AppendMessage(ctx, params)
	if err != nil {
		return nil, err
	}
	if observer != nil {
		observer.OnConversation(conv)
	}

	reply, err := r.streamReply(ctx, conv, observer)
	if err != nil {
		metrics.CompletionDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		r.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("completion stream aborted, assistant turn not persisted")
		return nil, err
	}

	final, err := store.AppendMessage(ctx, AppendParams{
		ConversationID: conv.ID,
		Message:        Message{Role: RoleAssistant, Content: reply},
	})
	if err != nil {
		metrics.CompletionDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		return nil, err
	}

	metrics.CompletionDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return final, nil
}

func (r *TurnRunner) streamReply(ctx context.Context, conv *Conversation, observer TurnObserver) (string, error) {
	stream, err := r.streamer.StreamCompletion(ctx, conv.ModelID, conv.Messages)
	if err != nil {
		return "", platformerrors.New(platformerrors.LayerDomain, platformerrors.ErrorTypeUpstream,
			"open completion stream", err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return builder.String(), nil
		}
		if err != nil {
			return "", platformerrors.New(platformerrors.LayerDomain, platformerrors.ErrorTypeUpstream,
				"completion stream failed", err)
		}
		metrics.CompletionChunksTotal.Inc()
		builder.WriteString(chunk)
		if observer != nil {
			observer.OnChunk(chunk)
		}
	}
}
