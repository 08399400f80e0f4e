package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"support-chat-be/internal/delivery"
	"support-chat-be/internal/entity"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/pkg/logger"
	"support-chat-be/internal/repository/memory"
	"support-chat-be/internal/statemachine"
	pkgEvents "support-chat-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []delivery.Notification
}

func (p *recordingPublisher) Publish(ctx context.Context, notifications ...delivery.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, notifications...)
}

func (p *recordingPublisher) byTopic(topic string) []delivery.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []delivery.Notification
	for _, n := range p.sent {
		if n.Topic == topic {
			out = append(out, n)
		}
	}
	return out
}

type mockChatEvents struct {
	mock.Mock
}

func (m *mockChatEvents) PublishSessionStarted(ctx context.Context, session *entity.ChatSession) {
	m.Called(ctx, session)
}

func (m *mockChatEvents) PublishSessionChanged(ctx context.Context, eventType string, session *entity.ChatSession) {
	m.Called(ctx, eventType, session)
}

func newTestChatService(t *testing.T) (IChatSessionService, *recordingPublisher, *memory.RepositoryFactory) {
	t.Helper()
	factory := memory.NewRepositoryFactory(nil)
	pub := &recordingPublisher{}
	svc := NewChatSessionService(factory, statemachine.NewMachine(nil), pub, nil, logger.NewNopLogger())
	return svc, pub, factory
}

func assertConsistent(t *testing.T, s *entity.ChatSession) {
	t.Helper()
	assert.NoError(t, s.CheckInvariants())
}

func TestChatSessionScenario(t *testing.T) {
	ctx := context.Background()
	svc, pub, _ := newTestChatService(t)

	session, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusActive, session.Status)
	assert.Nil(t, session.AgentId)
	assert.Equal(t, uint64(42), *session.ContactId)
	assertConsistent(t, session)
	assert.Len(t, pub.byTopic(delivery.CompanyTopic(7)), 1)

	hello, err := svc.SendMessage(ctx, SendMessageInput{
		SessionId: session.Id, SenderType: entity.SenderTypeContact, SenderId: 42, Message: "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.MessageTypeText, hello.MessageType)

	current, err := svc.GetSession(ctx, session.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusActive, current.Status)

	assigned, err := svc.Assign(ctx, session.Id, 9)
	require.NoError(t, err)
	require.NotNil(t, assigned.AgentId)
	assert.Equal(t, uint64(9), *assigned.AgentId)

	reply, err := svc.SendMessage(ctx, SendMessageInput{
		SessionId: session.Id, SenderType: entity.SenderTypeAgent, SenderId: 9, Message: "Hi, how can I help?",
	})
	require.NoError(t, err)

	messages, err := svc.ListMessages(ctx, session.Id, nil)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, hello.Id, messages[0].Id)
	assert.Equal(t, reply.Id, messages[1].Id)
	assert.True(t, messages[0].Before(messages[1]))

	closed, err := svc.UpdateStatus(ctx, session.Id, entity.SessionStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusClosed, closed.Status)
	assert.NotNil(t, closed.EndedAt)
	assertConsistent(t, closed)

	_, err = svc.SendMessage(ctx, SendMessageInput{
		SessionId: session.Id, SenderType: entity.SenderTypeContact, SenderId: 42, Message: "are you there?",
	})
	assert.ErrorIs(t, err, apperror.ErrSessionClosed)

	messages, err = svc.ListMessages(ctx, session.Id, nil)
	require.NoError(t, err)
	assert.Len(t, messages, 2, "a rejected send must not append")

	sessionSignals := pub.byTopic(delivery.SessionTopic(session.Id))
	kinds := make([]delivery.Kind, len(sessionSignals))
	for i, n := range sessionSignals {
		kinds[i] = n.Kind
	}
	assert.Equal(t, []delivery.Kind{
		delivery.KindMessageAppended,
		delivery.KindSessionUpdated,
		delivery.KindMessageAppended,
		delivery.KindSessionUpdated,
	}, kinds)
}

func TestAgentMayWriteIntoClosedSession(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestChatService(t)

	session, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, session.Id, 9)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, session.Id, entity.SessionStatusClosed)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, SendMessageInput{
		SessionId: session.Id, SenderType: entity.SenderTypeContact, SenderId: 42, Message: "hello?",
	})
	assert.ErrorIs(t, err, apperror.ErrSessionClosed)

	note, err := svc.SendMessage(ctx, SendMessageInput{
		SessionId: session.Id, SenderType: entity.SenderTypeAgent, SenderId: 9, Message: "Closing note",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SenderTypeAgent, note.SenderType)

	system, err := svc.SendMessage(ctx, SendMessageInput{
		SessionId: session.Id, SenderType: entity.SenderTypeSystem, SenderId: 123, Message: "Chat ended",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SystemSenderID, system.SenderId)
	assert.Equal(t, entity.MessageTypeSystem, system.MessageType)
}

func TestCloseUnassignedSessionIsInvalid(t *testing.T) {
	ctx := context.Background()
	svc, pub, _ := newTestChatService(t)

	session, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, session.Id, entity.SessionStatusClosed)
	require.ErrorIs(t, err, apperror.ErrInvalidTransition)

	current, err := svc.GetSession(ctx, session.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.SessionStatusActive, current.Status)
	assert.Nil(t, current.EndedAt)
	assert.Empty(t, pub.byTopic(delivery.SessionTopic(session.Id)), "failed transitions publish nothing")
}

func TestArchiveEdges(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestChatService(t)

	t.Run("active unassigned to archived", func(t *testing.T) {
		session, err := svc.StartSession(ctx, 7, 42, nil)
		require.NoError(t, err)

		archived, err := svc.UpdateStatus(ctx, session.Id, entity.SessionStatusArchived)
		require.NoError(t, err)
		assert.Equal(t, entity.SessionStatusArchived, archived.Status)
		assert.Nil(t, archived.AgentId)
		assertConsistent(t, archived)
	})

	t.Run("closed to archived", func(t *testing.T) {
		session, err := svc.StartSession(ctx, 7, 43, nil)
		require.NoError(t, err)
		_, err = svc.Assign(ctx, session.Id, 9)
		require.NoError(t, err)
		_, err = svc.UpdateStatus(ctx, session.Id, entity.SessionStatusClosed)
		require.NoError(t, err)

		archived, err := svc.UpdateStatus(ctx, session.Id, entity.SessionStatusArchived)
		require.NoError(t, err)
		assert.Equal(t, entity.SessionStatusArchived, archived.Status)
		assertConsistent(t, archived)
	})

	t.Run("no way back to active", func(t *testing.T) {
		session, err := svc.StartSession(ctx, 7, 44, nil)
		require.NoError(t, err)
		_, err = svc.UpdateStatus(ctx, session.Id, entity.SessionStatusArchived)
		require.NoError(t, err)

		_, err = svc.UpdateStatus(ctx, session.Id, entity.SessionStatusActive)
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
		_, err = svc.Assign(ctx, session.Id, 9)
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
		_, err = svc.UpdateStatus(ctx, session.Id, entity.SessionStatusArchived)
		assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
	})
}

func TestConcurrentAssignLeavesOneWinner(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestChatService(t)

	session, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)

	agents := []uint64{9, 10, 11, 12}
	var wg sync.WaitGroup
	for _, agent := range agents {
		wg.Add(1)
		go func(agent uint64) {
			defer wg.Done()
			_, err := svc.Assign(ctx, session.Id, agent)
			assert.NoError(t, err)
		}(agent)
	}
	wg.Wait()

	final, err := svc.GetSession(ctx, session.Id)
	require.NoError(t, err)
	require.NotNil(t, final.AgentId)
	assert.Contains(t, agents, *final.AgentId)
	assertConsistent(t, final)
}

func TestCompareAndAssign(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestChatService(t)

	session, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)

	_, err = svc.CompareAndAssign(ctx, session.Id, 9, nil)
	require.NoError(t, err)

	_, err = svc.CompareAndAssign(ctx, session.Id, 10, nil)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	expected := uint64(9)
	updated, err := svc.CompareAndAssign(ctx, session.Id, 10, &expected)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), *updated.AgentId)
}

func TestUnassign(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestChatService(t)

	session, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)

	_, err = svc.Unassign(ctx, session.Id)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)

	_, err = svc.Assign(ctx, session.Id, 9)
	require.NoError(t, err)
	updated, err := svc.Unassign(ctx, session.Id)
	require.NoError(t, err)
	assert.Nil(t, updated.AgentId)
	assert.Equal(t, entity.SessionStatusActive, updated.Status)
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestChatService(t)

	session, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   SendMessageInput
		wantErr *apperror.AppError
	}{
		{"empty text", SendMessageInput{SessionId: session.Id, SenderType: entity.SenderTypeContact, Message: ""}, apperror.ErrValidation},
		{"blank text", SendMessageInput{SessionId: session.Id, SenderType: entity.SenderTypeContact, Message: "   "}, apperror.ErrValidation},
		{"unknown sender", SendMessageInput{SessionId: session.Id, SenderType: "bot", Message: "hi"}, apperror.ErrValidation},
		{"bad message type", SendMessageInput{SessionId: session.Id, SenderType: entity.SenderTypeAgent, Message: "hi", MessageType: "video"}, apperror.ErrValidation},
		{"nested metadata", SendMessageInput{SessionId: session.Id, SenderType: entity.SenderTypeAgent, Message: "hi", Metadata: entity.Metadata{"a": []int{1}}}, apperror.ErrValidation},
		{"unknown session", SendMessageInput{SessionId: 999, SenderType: entity.SenderTypeContact, Message: "hi"}, apperror.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendMessage(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	messages, err := svc.ListMessages(ctx, session.Id, nil)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestListMessagesSinceId(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestChatService(t)

	session, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)

	var ids []uint64
	for _, text := range []string{"one", "two", "three"} {
		m, err := svc.SendMessage(ctx, SendMessageInput{SessionId: session.Id, SenderType: entity.SenderTypeContact, Message: text})
		require.NoError(t, err)
		ids = append(ids, m.Id)
	}

	since := ids[0]
	rest, err := svc.ListMessages(ctx, session.Id, &since)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, ids[1], rest[0].Id)

	again, err := svc.ListMessages(ctx, session.Id, &since)
	require.NoError(t, err)
	assert.Equal(t, rest, again)

	last := ids[2]
	none, err := svc.ListMessages(ctx, session.Id, &last)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.ListMessages(ctx, 999, nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMarkReadPublishesReceipt(t *testing.T) {
	ctx := context.Background()
	svc, pub, _ := newTestChatService(t)

	session, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)
	m, err := svc.SendMessage(ctx, SendMessageInput{SessionId: session.Id, SenderType: entity.SenderTypeContact, Message: "hi"})
	require.NoError(t, err)

	read, err := svc.MarkRead(ctx, session.Id, m.Id)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	again, err := svc.MarkRead(ctx, session.Id, m.Id)
	require.NoError(t, err)
	assert.Equal(t, read.ReadAt, again.ReadAt)

	signals := pub.byTopic(delivery.SessionTopic(session.Id))
	require.NotEmpty(t, signals)
	assert.Equal(t, delivery.KindMessageRead, signals[len(signals)-1].Kind)

	_, err = svc.MarkRead(ctx, session.Id, 999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMarkReadRejectsMessageFromAnotherSession(t *testing.T) {
	ctx := context.Background()
	svc, pub, _ := newTestChatService(t)

	victim, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)
	m, err := svc.SendMessage(ctx, SendMessageInput{SessionId: victim.Id, SenderType: entity.SenderTypeContact, Message: "private"})
	require.NoError(t, err)
	other, err := svc.StartSession(ctx, 99, 8, nil)
	require.NoError(t, err)
	published := len(pub.byTopic(delivery.SessionTopic(victim.Id)))

	_, err = svc.MarkRead(ctx, other.Id, m.Id)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	messages, err := svc.ListMessages(ctx, victim.Id, nil)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Nil(t, messages[0].ReadAt)
	assert.Len(t, pub.byTopic(delivery.SessionTopic(victim.Id)), published, "no read receipt is published")
}

func TestLinkTicket(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestChatService(t)

	session, err := svc.StartSession(ctx, 7, 42, entity.Metadata{"channel": "web", "lang": "en"})
	require.NoError(t, err)

	linked, err := svc.LinkTicket(ctx, session.Id, 555, entity.Metadata{"priority": "high", "lang": nil})
	require.NoError(t, err)
	require.NotNil(t, linked.TicketId)
	assert.Equal(t, uint64(555), *linked.TicketId)
	assert.Equal(t, entity.Metadata{"channel": "web", "priority": "high"}, linked.Metadata)

	_, err = svc.LinkTicket(ctx, session.Id, 0, nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestChatService(t)

	for contact := uint64(1); contact <= 5; contact++ {
		_, err := svc.StartSession(ctx, 7, contact, nil)
		require.NoError(t, err)
	}
	other, err := svc.StartSession(ctx, 8, 1, nil)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, other.Id, 9)
	require.NoError(t, err)

	page, total, err := svc.ListSessionsForCompany(ctx, 7, entity.SessionFilter{}, entity.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 2)

	_, total, err = svc.ListSessionsForCompany(ctx, 8, entity.SessionFilter{Unassigned: true}, entity.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	sessions, total, err := svc.ListSessionsForContact(ctx, 7, 1, entity.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, sessions, 1)
	assert.Equal(t, uint64(7), sessions[0].CompanyId)

	sessions, total, err = svc.ListSessionsForContact(ctx, 8, 1, entity.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, sessions, 1)
	assert.Equal(t, other.Id, sessions[0].Id)

	empty, total, err := svc.ListSessionsForContact(ctx, 7, 404, entity.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, empty)
}

func TestPollState(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestChatService(t)

	session, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)

	first, err := svc.PollState(ctx, session.Id, "")
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, delivery.ActivePollInterval, first.Interval)

	same, err := svc.PollState(ctx, session.Id, first.Version)
	require.NoError(t, err)
	assert.False(t, same.Changed)

	_, err = svc.SendMessage(ctx, SendMessageInput{SessionId: session.Id, SenderType: entity.SenderTypeContact, Message: "hi"})
	require.NoError(t, err)
	afterMessage, err := svc.PollState(ctx, session.Id, first.Version)
	require.NoError(t, err)
	assert.True(t, afterMessage.Changed)

	_, err = svc.MarkRead(ctx, session.Id, afterMessage.LatestMessageId)
	require.NoError(t, err)
	afterRead, err := svc.PollState(ctx, session.Id, afterMessage.Version)
	require.NoError(t, err)
	assert.True(t, afterRead.Changed, "a read receipt changes the version")
	assert.Equal(t, afterMessage.LatestMessageId, afterRead.LatestMessageId)

	_, err = svc.UpdateStatus(ctx, session.Id, entity.SessionStatusArchived)
	require.NoError(t, err)
	archived, err := svc.PollState(ctx, session.Id, afterRead.Version)
	require.NoError(t, err)
	assert.True(t, archived.Changed)
	assert.Equal(t, time.Duration(0), archived.Interval)
}

func TestLifecycleEventsArePublished(t *testing.T) {
	ctx := context.Background()
	factory := memory.NewRepositoryFactory(nil)
	events := &mockChatEvents{}
	svc := NewChatSessionService(factory, statemachine.NewMachine(nil), &recordingPublisher{}, events, logger.NewNopLogger())

	events.On("PublishSessionStarted", mock.Anything, mock.AnythingOfType("*entity.ChatSession")).Return().Once()
	events.On("PublishSessionChanged", mock.Anything, pkgEvents.ChatSessionAssigned, mock.Anything).Return().Once()
	events.On("PublishSessionChanged", mock.Anything, pkgEvents.ChatSessionClosed, mock.Anything).Return().Once()

	session, err := svc.StartSession(ctx, 7, 42, nil)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, session.Id, 9)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, session.Id, entity.SessionStatusClosed)
	require.NoError(t, err)

	events.AssertExpectations(t)
}
