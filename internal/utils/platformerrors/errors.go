// Package platformerrors provides the typed error taxonomy shared across
// layers, with HTTP status mapping and structured logging helpers.
package platformerrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrorType categorizes a failure.
type ErrorType string

const (
	// ErrorTypeNotFound covers operations referencing a conversation id
	// absent from an identity's store.
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	// ErrorTypeTooManyRecords signals the capacity invariant was violated.
	// It is internal-only and self-healed; seeing it externally is a bug.
	ErrorTypeTooManyRecords ErrorType = "TOO_MANY_RECORDS"
	// ErrorTypeValidation covers malformed caller input.
	ErrorTypeValidation ErrorType = "VALIDATION"
	// ErrorTypeUpstream covers completion streams that failed or were
	// cancelled mid-generation. Retryable by the caller.
	ErrorTypeUpstream ErrorType = "UPSTREAM_FAILURE"
	// ErrorTypePersistence covers failed reads/writes of the backing state.
	ErrorTypePersistence ErrorType = "PERSISTENCE_FAILURE"
	// ErrorTypeInternal is the fallback category.
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// Layer names the application layer where the error was raised.
type Layer string

const (
	LayerRepository Layer = "repository"
	LayerDomain     Layer = "domain"
	LayerHandler    Layer = "handler"
	LayerProvider   Layer = "provider"
)

// PlatformError carries a failure with category, layer and correlation id.
type PlatformError struct {
	ID        string
	Type      ErrorType
	Message   string
	Err       error
	Layer     Layer
	Timestamp time.Time
}

func (e *PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s][%s] %s: %v", e.Layer, e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s][%s] %s", e.Layer, e.Type, e.Message)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// New creates a PlatformError with a fresh correlation id.
func New(layer Layer, errorType ErrorType, message string, err error) *PlatformError {
	return &PlatformError{
		ID:        uuid.NewString(),
		Type:      errorType,
		Message:   message,
		Err:       err,
		Layer:     layer,
		Timestamp: time.Now().UTC(),
	}
}

// As rewraps err preserving its type if it already is a PlatformError,
// otherwise categorizes it as internal.
func As(layer Layer, err error, message string) *PlatformError {
	if err == nil {
		return nil
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		return &PlatformError{
			ID:        pe.ID,
			Type:      pe.Type,
			Message:   fmt.Sprintf("%s: %s", message, pe.Message),
			Err:       pe,
			Layer:     layer,
			Timestamp: time.Now().UTC(),
		}
	}
	return New(layer, ErrorTypeInternal, message, err)
}

// IsType reports whether err is a PlatformError of the given type.
func IsType(err error, errorType ErrorType) bool {
	var pe *PlatformError
	return errors.As(err, &pe) && pe.Type == errorType
}

// HTTPStatus maps an error to the status code the transport should answer.
func HTTPStatus(err error) int {
	var pe *PlatformError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError
	}
	switch pe.Type {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	case ErrorTypePersistence, ErrorTypeTooManyRecords, ErrorTypeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Log emits the error with its full structure.
func Log(logger zerolog.Logger, err error) {
	var pe *PlatformError
	if !errors.As(err, &pe) {
		logger.Error().Err(err).Msg("unclassified error")
		return
	}
	event := logger.Error().
		Str("error_id", pe.ID).
		Str("error_type", string(pe.Type)).
		Str("layer", string(pe.Layer)).
		Time("timestamp_utc", pe.Timestamp)
	if pe.Err != nil {
		event = event.Err(pe.Err)
	}
	event.Msg(pe.Message)
}
