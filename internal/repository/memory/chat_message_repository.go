package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/repository/contract"
)

// ChatMessageRepository is the append-only in-memory Message Store.
// Messages are kept per session in (created_at, id) order.
type ChatMessageRepository struct {
	mu        sync.RWMutex
	seq       uint64
	bySession map[uint64][]*entity.ChatMessage
	byID      map[uint64]*entity.ChatMessage
	now       func() time.Time
}

func NewChatMessageRepository(clock func() time.Time) *ChatMessageRepository {
	if clock == nil {
		clock = time.Now
	}
	return &ChatMessageRepository{
		bySession: make(map[uint64][]*entity.ChatMessage),
		byID:      make(map[uint64]*entity.ChatMessage),
		now:       clock,
	}
}

var _ contract.ChatMessageRepository = (*ChatMessageRepository)(nil)

func (r *ChatMessageRepository) Append(ctx context.Context, message *entity.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return apperror.StoreUnavailable(err)
	}
	if err := message.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	now := r.now()
	row := message.Clone()
	row.Id = r.seq
	row.CreatedAt = now
	row.UpdatedAt = now

	list := append(r.bySession[row.SessionId], row)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Before(list[j]) })
	r.bySession[row.SessionId] = list
	r.byID[row.Id] = row

	*message = *row.Clone()
	return nil
}

func (r *ChatMessageRepository) ListBySession(ctx context.Context, sessionId uint64, sinceId *uint64) ([]*entity.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.bySession[sessionId]
	out := make([]*entity.ChatMessage, 0, len(rows))
	for _, m := range rows {
		if sinceId != nil && m.Id <= *sinceId {
			continue
		}
		out = append(out, m.Clone())
	}
	return out, nil
}

func (r *ChatMessageRepository) MarkRead(ctx context.Context, sessionId, messageId uint64) (*entity.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.byID[messageId]
	if !ok || row.SessionId != sessionId {
		return nil, apperror.NotFound("chat message", messageId)
	}
	if row.ReadAt == nil {
		now := r.now()
		row.ReadAt = &now
		row.UpdatedAt = now
	}
	return row.Clone(), nil
}

func (r *ChatMessageRepository) Latest(ctx context.Context, sessionId uint64) (*entity.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.bySession[sessionId]
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[len(rows)-1].Clone(), nil
}

func (r *ChatMessageRepository) LatestReadAt(ctx context.Context, sessionId uint64) (*time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *time.Time
	for _, m := range r.bySession[sessionId] {
		if m.ReadAt != nil && (latest == nil || m.ReadAt.After(*latest)) {
			t := *m.ReadAt
			latest = &t
		}
	}
	return latest, nil
}

// lastActivity reports the created_at of the newest message in a session.
func (r *ChatMessageRepository) lastActivity(sessionId uint64) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.bySession[sessionId]
	if len(rows) == 0 {
		return time.Time{}, false
	}
	return rows[len(rows)-1].CreatedAt, true
}
