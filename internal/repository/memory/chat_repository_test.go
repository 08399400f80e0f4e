package memory

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/repository/specification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uptr(v uint64) *uint64 { return &v }

func TestSessionRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewChatSessionRepository(nil)

	s := &entity.ChatSession{CompanyId: 7, ContactId: uptr(42), Metadata: entity.Metadata{"channel": "web"}}
	require.NoError(t, repo.Create(ctx, s))
	assert.NotZero(t, s.Id)
	assert.Equal(t, entity.SessionStatusActive, s.Status)
	assert.False(t, s.StartedAt.IsZero())

	got, err := repo.Get(ctx, s.Id)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	// Callers never share memory with the store.
	got.Metadata["channel"] = "email"
	again, err := repo.Get(ctx, s.Id)
	require.NoError(t, err)
	assert.Equal(t, "web", again.Metadata["channel"])

	_, err = repo.Get(ctx, 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	bad := &entity.ChatSession{CompanyId: 7, Metadata: entity.Metadata{"nested": map[string]interface{}{}}}
	assert.ErrorIs(t, repo.Create(ctx, bad), apperror.ErrValidation)
}

func TestSessionRepositoryGuardedUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewChatSessionRepository(nil)

	s := &entity.ChatSession{CompanyId: 7, ContactId: uptr(42)}
	require.NoError(t, repo.Create(ctx, s))

	closed := entity.SessionStatusClosed
	now := time.Now()
	closePatch := entity.SessionPatch{Status: &closed, EndedAt: &now}
	closeGuards := []specification.SessionSpecification{
		specification.ByStatus{Statuses: []entity.SessionStatus{entity.SessionStatusActive}},
		specification.AgentAssigned{},
	}

	_, err := repo.Update(ctx, s.Id, closePatch, closeGuards...)
	assert.ErrorIs(t, err, apperror.ErrConflict, "guard fails while unassigned")

	_, err = repo.Update(ctx, 999, closePatch, closeGuards...)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	updated, err := repo.Update(ctx, s.Id, entity.SessionPatch{AgentId: uptr(9)})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(s.UpdatedAt))

	updated, err = repo.Update(ctx, s.Id, closePatch, closeGuards...)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusClosed, updated.Status)
	assert.NoError(t, updated.CheckInvariants())

	// A patch that would break the row invariants is refused outright.
	_, err = repo.Update(ctx, s.Id, entity.SessionPatch{ClearAgent: true})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestSessionRepositoryListing(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewChatSessionRepository(nil)

	for i := 0; i < 5; i++ {
		s := &entity.ChatSession{CompanyId: 7, ContactId: uptr(uint64(i%2 + 1)), StartedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, repo.Create(ctx, s))
	}
	require.NoError(t, repo.Create(ctx, &entity.ChatSession{CompanyId: 8, ContactId: uptr(1)}))

	all, total, err := repo.ListByCompany(ctx, 7, entity.SessionFilter{}, entity.Page{Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, all, 3)
	assert.True(t, sort.SliceIsSorted(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) }))

	second, _, err := repo.ListByCompany(ctx, 7, entity.SessionFilter{}, entity.Page{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, second, 2)

	beyond, total, err := repo.ListByCompany(ctx, 7, entity.SessionFilter{}, entity.Page{Page: 9, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, beyond)

	byContact, total, err := repo.ListByContact(ctx, 7, 1, entity.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, byContact, 3)
	for _, s := range byContact {
		assert.Equal(t, uint64(7), s.CompanyId)
	}

	// Paging counts only the tenant's rows.
	paged, total, err := repo.ListByContact(ctx, 7, 1, entity.Page{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, paged, 1)

	otherTenant, total, err := repo.ListByContact(ctx, 8, 1, entity.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, otherTenant, 1)

	contact := uint64(2)
	filtered, total, err := repo.ListByCompany(ctx, 7, entity.SessionFilter{ContactId: &contact, Unassigned: true}, entity.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, filtered, 2)
}

func TestSessionRepositoryIdleCandidates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	repo := NewChatSessionRepository(clock)

	old := &entity.ChatSession{CompanyId: 7}
	require.NoError(t, repo.Create(ctx, old))
	now = now.Add(2 * time.Hour)
	fresh := &entity.ChatSession{CompanyId: 7}
	require.NoError(t, repo.Create(ctx, fresh))

	idle, err := repo.FindIdleCandidates(ctx, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, idle, 1)
	assert.Equal(t, old.Id, idle[0].Id)
}

func TestIdleCandidatesSkipSessionsWithRecentMessages(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	factory := NewRepositoryFactory(func() time.Time { return now })
	uow := factory.NewUnitOfWork(ctx)
	sessions := uow.ChatSessionRepository()

	chatty := &entity.ChatSession{CompanyId: 7}
	require.NoError(t, sessions.Create(ctx, chatty))
	quiet := &entity.ChatSession{CompanyId: 7}
	require.NoError(t, sessions.Create(ctx, quiet))

	now = now.Add(2 * time.Hour)
	require.NoError(t, uow.ChatMessageRepository().Append(ctx, &entity.ChatMessage{
		CompanyId: 7, SessionId: chatty.Id, SenderType: entity.SenderTypeContact, Message: "ping", MessageType: entity.MessageTypeText,
	}))

	idle, err := sessions.FindIdleCandidates(ctx, now.Add(-time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, idle, 1)
	assert.Equal(t, quiet.Id, idle[0].Id)
}

func TestMessageRepositoryOrdering(t *testing.T) {
	ctx := context.Background()
	// Every message gets the same timestamp; ids break the tie.
	stamp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewChatMessageRepository(func() time.Time { return stamp })

	for _, text := range []string{"a", "b", "c"} {
		m := &entity.ChatMessage{CompanyId: 7, SessionId: 1, SenderType: entity.SenderTypeContact, Message: text, MessageType: entity.MessageTypeText}
		require.NoError(t, repo.Append(ctx, m))
	}
	other := &entity.ChatMessage{CompanyId: 7, SessionId: 2, SenderType: entity.SenderTypeAgent, Message: "x", MessageType: entity.MessageTypeText}
	require.NoError(t, repo.Append(ctx, other))

	list, err := repo.ListBySession(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].Before(list[i]))
	}
	assert.Equal(t, "a", list[0].Message)

	again, err := repo.ListBySession(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, list, again)

	latest, err := repo.Latest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "c", latest.Message)

	none, err := repo.Latest(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, none)

	empty, err := repo.ListBySession(ctx, 404, nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMessageRepositoryConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	repo := NewChatMessageRepository(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := &entity.ChatMessage{CompanyId: 7, SessionId: 1, SenderType: entity.SenderTypeContact, Message: "hi", MessageType: entity.MessageTypeText}
			assert.NoError(t, repo.Append(ctx, m))
		}()
	}
	wg.Wait()

	list, err := repo.ListBySession(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, list, 50)
	seen := make(map[uint64]bool)
	for i, m := range list {
		assert.False(t, seen[m.Id])
		seen[m.Id] = true
		if i > 0 {
			assert.True(t, list[i-1].Before(list[i]))
		}
	}
}

func TestMessageRepositoryRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := NewChatMessageRepository(nil)

	err := repo.Append(ctx, &entity.ChatMessage{CompanyId: 7, SessionId: 1, SenderType: entity.SenderTypeContact, Message: "", MessageType: entity.MessageTypeText})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	list, err := repo.ListBySession(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = repo.MarkRead(ctx, 1, 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMessageRepositoryMarkReadIsSessionScoped(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := NewChatMessageRepository(func() time.Time { return now })

	m := &entity.ChatMessage{CompanyId: 7, SessionId: 1, SenderType: entity.SenderTypeContact, Message: "hello", MessageType: entity.MessageTypeText}
	require.NoError(t, repo.Append(ctx, m))

	_, err := repo.MarkRead(ctx, 2, m.Id)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	readAt, err := repo.LatestReadAt(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, readAt, "a mismatched session must not stamp the row")

	now = now.Add(time.Minute)
	read, err := repo.MarkRead(ctx, 1, m.Id)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)
	assert.True(t, read.ReadAt.Equal(now))

	readAt, err = repo.LatestReadAt(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, readAt)
	assert.True(t, readAt.Equal(now))
}

func TestIdempotencyRepository(t *testing.T) {
	repo := NewIdempotencyRepository(time.Minute)

	assert.True(t, repo.Claim("k1"))
	assert.False(t, repo.Claim("k1"))

	_, found, done := repo.Get("k1")
	assert.True(t, found)
	assert.False(t, done)

	repo.Save("k1", "response")
	resp, found, done := repo.Get("k1")
	assert.True(t, found)
	assert.True(t, done)
	assert.Equal(t, "response", resp)

	assert.True(t, repo.Claim("k2"))
	repo.Release("k2")
	assert.True(t, repo.Claim("k2"))
}
