package contract

import (
	"context"
	"time"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/repository/specification"
)

// ChatSessionRepository is the Session Store. Every method is one logical row
// read or write; failures reaching the backing store surface as StoreUnavailable.
type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	// Get returns NotFound for unknown ids.
	Get(ctx context.Context, id uint64) (*entity.ChatSession, error)
	// Update applies patch in a single statement, only if every guard still holds.
	// Zero matching rows yields NotFound when the row is gone and Conflict otherwise.
	Update(ctx context.Context, id uint64, patch entity.SessionPatch, guards ...specification.SessionSpecification) (*entity.ChatSession, error)
	// ListByContact is scoped to one tenant; contact ids are not unique across companies.
	ListByContact(ctx context.Context, companyId, contactId uint64, page entity.Page) ([]*entity.ChatSession, int64, error)
	ListByCompany(ctx context.Context, companyId uint64, filter entity.SessionFilter, page entity.Page) ([]*entity.ChatSession, int64, error)
	// FindIdleCandidates lists active sessions whose row has not changed since
	// updatedBefore and that hold no message created at or after it, oldest first.
	FindIdleCandidates(ctx context.Context, updatedBefore time.Time, limit int) ([]*entity.ChatSession, error)
}
