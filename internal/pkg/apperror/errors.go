package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError. HTTP status mapping lives in serverutils.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindSessionClosed     Kind = "SESSION_CLOSED"
	KindStoreUnavailable  Kind = "STORE_UNAVAILABLE"
	KindBusUnavailable    Kind = "BUS_UNAVAILABLE"
	KindConflict          Kind = "CONFLICT"
	KindGenerationFailed  Kind = "GENERATION_FAILED"
)

// AppError is the single error type returned across the chat core.
type AppError struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can compare against the sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation        = &AppError{Kind: KindValidation}
	ErrNotFound          = &AppError{Kind: KindNotFound}
	ErrInvalidTransition = &AppError{Kind: KindInvalidTransition}
	ErrSessionClosed     = &AppError{Kind: KindSessionClosed}
	ErrStoreUnavailable  = &AppError{Kind: KindStoreUnavailable}
	ErrBusUnavailable    = &AppError{Kind: KindBusUnavailable}
	ErrConflict          = &AppError{Kind: KindConflict}
	ErrGenerationFailed  = &AppError{Kind: KindGenerationFailed}
)

func Validation(message string, details map[string]interface{}) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Details: details}
}

func NotFound(resource string, id interface{}) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
		Details: map[string]interface{}{"resource": resource, "id": id},
	}
}

// InvalidTransition names the state the session was in and the event that was refused.
func InvalidTransition(currentState, event string) *AppError {
	return &AppError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot apply %q to a session in state %q", event, currentState),
		Details: map[string]interface{}{"current_state": currentState, "event": event},
	}
}

func SessionClosed(sessionId uint64, status string) *AppError {
	return &AppError{
		Kind:    KindSessionClosed,
		Message: fmt.Sprintf("session %d is %s", sessionId, status),
		Details: map[string]interface{}{"session_id": sessionId, "status": status},
	}
}

func StoreUnavailable(err error) *AppError {
	return &AppError{Kind: KindStoreUnavailable, Message: "store unavailable", Err: err}
}

func BusUnavailable(err error) *AppError {
	return &AppError{Kind: KindBusUnavailable, Message: "notification bus unavailable", Err: err}
}

func Conflict(message string, details map[string]interface{}) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Details: details}
}

func GenerationFailed(err error) *AppError {
	return &AppError{Kind: KindGenerationFailed, Message: "draft generation failed", Err: err}
}

// KindOf returns the Kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
