package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_SESSION_CLOSED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Chat session lifecycle event types.
const (
	ChatSessionStarted      = "CHAT_SESSION_STARTED"
	ChatSessionAssigned     = "CHAT_SESSION_ASSIGNED"
	ChatSessionUnassigned   = "CHAT_SESSION_UNASSIGNED"
	ChatSessionClosed       = "CHAT_SESSION_CLOSED"
	ChatSessionArchived     = "CHAT_SESSION_ARCHIVED"
	ChatSessionTicketLinked = "CHAT_SESSION_TICKET_LINKED"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
