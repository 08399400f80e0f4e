package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/repository/contract"
	"support-chat-be/internal/repository/specification"
)

// ChatSessionRepository keeps sessions in process memory. Guarded updates are
// evaluated under the write lock, which gives the same single-statement
// semantics as the SQL store.
type ChatSessionRepository struct {
	mu   sync.RWMutex
	seq  uint64
	rows map[uint64]*entity.ChatSession
	now  func() time.Time

	// lastMessageAt stands in for the messages join of the SQL store.
	lastMessageAt func(sessionId uint64) (time.Time, bool)
}

func NewChatSessionRepository(clock func() time.Time) *ChatSessionRepository {
	if clock == nil {
		clock = time.Now
	}
	return &ChatSessionRepository{
		rows: make(map[uint64]*entity.ChatSession),
		now:  clock,
	}
}

var _ contract.ChatSessionRepository = (*ChatSessionRepository)(nil)

func (r *ChatSessionRepository) Create(ctx context.Context, session *entity.ChatSession) error {
	if err := ctx.Err(); err != nil {
		return apperror.StoreUnavailable(err)
	}
	if err := session.Metadata.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	now := r.now()
	row := session.Clone()
	row.Id = r.seq
	if row.Status == "" {
		row.Status = entity.SessionStatusActive
	}
	if row.StartedAt.IsZero() {
		row.StartedAt = now
	}
	row.CreatedAt = now
	row.UpdatedAt = now

	r.rows[row.Id] = row
	*session = *row.Clone()
	return nil
}

func (r *ChatSessionRepository) Get(ctx context.Context, id uint64) (*entity.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, apperror.NotFound("chat session", id)
	}
	return row.Clone(), nil
}

func (r *ChatSessionRepository) Update(ctx context.Context, id uint64, patch entity.SessionPatch, guards ...specification.SessionSpecification) (*entity.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	if err := patch.Metadata.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, apperror.NotFound("chat session", id)
	}
	if patch.IsEmpty() {
		return row.Clone(), nil
	}
	if !specification.MatchAll(row, guards...) {
		return nil, apperror.Conflict("session changed concurrently", map[string]interface{}{
			"session_id": id,
			"status":     row.Status,
		})
	}

	next := row.Clone()
	patch.ApplyTo(next)
	if err := next.CheckInvariants(); err != nil {
		return nil, apperror.Conflict(err.Error(), map[string]interface{}{"session_id": id})
	}

	// updated_at doubles as a change version, so it must strictly advance.
	now := r.now()
	if !now.After(row.UpdatedAt) {
		now = row.UpdatedAt.Add(time.Microsecond)
	}
	next.UpdatedAt = now

	r.rows[id] = next
	return next.Clone(), nil
}

func (r *ChatSessionRepository) ListByContact(ctx context.Context, companyId, contactId uint64, page entity.Page) ([]*entity.ChatSession, int64, error) {
	return r.list(ctx, page,
		specification.ByCompanyID{CompanyID: companyId},
		specification.ByContactID{ContactID: contactId},
	)
}

func (r *ChatSessionRepository) ListByCompany(ctx context.Context, companyId uint64, filter entity.SessionFilter, page entity.Page) ([]*entity.ChatSession, int64, error) {
	specs := append([]specification.SessionSpecification{specification.ByCompanyID{CompanyID: companyId}}, specification.FromFilter(filter)...)
	return r.list(ctx, page, specs...)
}

func (r *ChatSessionRepository) FindIdleCandidates(ctx context.Context, updatedBefore time.Time, limit int) ([]*entity.ChatSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	matched := r.match(
		specification.ByStatus{Statuses: []entity.SessionStatus{entity.SessionStatusActive}},
		specification.UpdatedBefore{Cutoff: updatedBefore},
	)
	if r.lastMessageAt != nil {
		quiet := matched[:0]
		for _, s := range matched {
			if at, ok := r.lastMessageAt(s.Id); ok && !at.Before(updatedBefore) {
				continue
			}
			quiet = append(quiet, s)
		}
		matched = quiet
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].Id < matched[j].Id
		}
		return matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *ChatSessionRepository) list(ctx context.Context, page entity.Page, specs ...specification.SessionSpecification) ([]*entity.ChatSession, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, apperror.StoreUnavailable(err)
	}

	matched := r.match(specs...)
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].StartedAt.Equal(matched[j].StartedAt) {
			return matched[i].Id > matched[j].Id
		}
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := int64(len(matched))
	p := page.Normalize()
	start := p.Offset()
	if start >= len(matched) {
		return []*entity.ChatSession{}, total, nil
	}
	end := start + p.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *ChatSessionRepository) match(specs ...specification.SessionSpecification) []*entity.ChatSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.ChatSession, 0)
	for _, row := range r.rows {
		if specification.MatchAll(row, specs...) {
			out = append(out, row.Clone())
		}
	}
	return out
}
