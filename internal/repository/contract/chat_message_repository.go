package contract

import (
	"context"
	"time"

	"support-chat-be/internal/entity"
)

// ChatMessageRepository is the append-only Message Store.
type ChatMessageRepository interface {
	// Append validates and inserts message, filling in its id and timestamps.
	Append(ctx context.Context, message *entity.ChatMessage) error
	// ListBySession returns messages ordered by (created_at, id). sinceId, when set,
	// restricts the result to ids greater than it.
	ListBySession(ctx context.Context, sessionId uint64, sinceId *uint64) ([]*entity.ChatMessage, error)
	// MarkRead stamps read_at once. A message outside sessionId is NotFound and
	// is left untouched.
	MarkRead(ctx context.Context, sessionId, messageId uint64) (*entity.ChatMessage, error)
	// Latest returns the newest message of a session, or nil when it has none.
	Latest(ctx context.Context, sessionId uint64) (*entity.ChatMessage, error)
	// LatestReadAt returns the most recent read receipt in a session, or nil.
	LatestReadAt(ctx context.Context, sessionId uint64) (*time.Time, error)
}
