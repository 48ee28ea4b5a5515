package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "goldfish.chat"
)

// GetTracer returns the tracer for the chat service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// ConversationAttributes returns common attributes for conversation spans.
func ConversationAttributes(conversationID, modelID string, messageCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("conversation.id", conversationID),
		attribute.String("conversation.model_id", modelID),
		attribute.Int("conversation.message_count", messageCount),
	}
}

// StartTurnSpan starts a new span covering one chat turn.
func StartTurnSpan(ctx context.Context, modelID string, streaming bool) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "chat.turn",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("chat.model_id", modelID),
			attribute.Bool("chat.streaming", streaming),
		),
	)
	return ctx, span
}

// StartStoreSpan starts a new span for a store operation.
func StartStoreSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "store."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("store.operation", operation)),
	)
	return ctx, span
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
