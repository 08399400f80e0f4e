package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"support-chat-be/internal/delivery"
	"support-chat-be/internal/entity"
	"support-chat-be/internal/metrics"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/pkg/logger"
	"support-chat-be/internal/pkg/validation"
	"support-chat-be/internal/repository/unitofwork"
	"support-chat-be/internal/statemachine"
	chatEvents "support-chat-be/pkg/chat/events"
	pkgEvents "support-chat-be/pkg/events"
)

// A guarded update that loses a race is re-read and re-validated once.
const maxTransitionAttempts = 2

// INotificationPublisher is the write side of the Delivery Bus. Implementations
// must not fail the caller; see delivery.Bus.
type INotificationPublisher interface {
	Publish(ctx context.Context, notifications ...delivery.Notification)
}

type SendMessageInput struct {
	SessionId   uint64             `validate:"required"`
	SenderType  entity.SenderType  `validate:"required,oneof=contact agent system"`
	SenderId    uint64
	Message     string             `validate:"required,notblank"`
	MessageType entity.MessageType `validate:"omitempty,oneof=text image file system"`
	Metadata    entity.Metadata
}

type PollState struct {
	SessionId       uint64
	Status          entity.SessionStatus
	Version         string
	Changed         bool
	Interval        time.Duration
	LatestMessageId uint64
}

type IChatSessionService interface {
	StartSession(ctx context.Context, companyId, contactId uint64, metadata entity.Metadata) (*entity.ChatSession, error)
	SendMessage(ctx context.Context, in SendMessageInput) (*entity.ChatMessage, error)
	UpdateStatus(ctx context.Context, sessionId uint64, status entity.SessionStatus) (*entity.ChatSession, error)
	Assign(ctx context.Context, sessionId, agentId uint64) (*entity.ChatSession, error)
	CompareAndAssign(ctx context.Context, sessionId, agentId uint64, expectedAgentId *uint64) (*entity.ChatSession, error)
	Unassign(ctx context.Context, sessionId uint64) (*entity.ChatSession, error)
	LinkTicket(ctx context.Context, sessionId, ticketId uint64, metadata entity.Metadata) (*entity.ChatSession, error)
	GetSession(ctx context.Context, sessionId uint64) (*entity.ChatSession, error)
	ListMessages(ctx context.Context, sessionId uint64, sinceId *uint64) ([]*entity.ChatMessage, error)
	MarkRead(ctx context.Context, sessionId, messageId uint64) (*entity.ChatMessage, error)
	ListSessionsForCompany(ctx context.Context, companyId uint64, filter entity.SessionFilter, page entity.Page) ([]*entity.ChatSession, int64, error)
	ListSessionsForContact(ctx context.Context, companyId, contactId uint64, page entity.Page) ([]*entity.ChatSession, int64, error)
	PollState(ctx context.Context, sessionId uint64, sinceVersion string) (*PollState, error)
}

type chatSessionService struct {
	uowFactory unitofwork.RepositoryFactory
	machine    *statemachine.Machine
	bus        INotificationPublisher
	events     chatEvents.Publisher
	logger     logger.ILogger
}

func NewChatSessionService(
	uowFactory unitofwork.RepositoryFactory,
	machine *statemachine.Machine,
	bus INotificationPublisher,
	events chatEvents.Publisher,
	logger logger.ILogger,
) IChatSessionService {
	return &chatSessionService{
		uowFactory: uowFactory,
		machine:    machine,
		bus:        bus,
		events:     events,
		logger:     logger,
	}
}

func (s *chatSessionService) StartSession(ctx context.Context, companyId, contactId uint64, metadata entity.Metadata) (*entity.ChatSession, error) {
	if companyId == 0 || contactId == 0 {
		return nil, apperror.Validation("company id and contact id are required", map[string]interface{}{
			"company_id": companyId,
			"contact_id": contactId,
		})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	session := &entity.ChatSession{
		CompanyId: companyId,
		ContactId: &contactId,
		Status:    entity.SessionStatusActive,
		Metadata:  metadata,
	}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}

	metrics.SessionsStarted.Inc()
	s.logger.Info("CHAT", "Session started", map[string]interface{}{
		"session_id": session.Id,
		"company_id": companyId,
		"contact_id": contactId,
	})

	s.bus.Publish(ctx, delivery.NewNotification(delivery.CompanyTopic(companyId), delivery.KindSessionStarted, companyId, session.Id))
	if s.events != nil {
		s.events.PublishSessionStarted(ctx, session)
	}

	return session, nil
}

func (s *chatSessionService) SendMessage(ctx context.Context, in SendMessageInput) (*entity.ChatMessage, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := in.Metadata.Validate(); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().Get(ctx, in.SessionId)
	if err != nil {
		return nil, err
	}

	// Agents and system may still write closing notes.
	if in.SenderType == entity.SenderTypeContact && session.Status != entity.SessionStatusActive {
		return nil, apperror.SessionClosed(session.Id, string(session.Status))
	}

	message := &entity.ChatMessage{
		CompanyId:   session.CompanyId,
		SessionId:   session.Id,
		SenderType:  in.SenderType,
		SenderId:    in.SenderId,
		Message:     in.Message,
		MessageType: in.MessageType,
		Metadata:    in.Metadata,
	}
	if message.SenderType == entity.SenderTypeSystem {
		message.SenderId = entity.SystemSenderID
	}
	if message.MessageType == "" {
		message.MessageType = entity.MessageTypeText
		if message.SenderType == entity.SenderTypeSystem {
			message.MessageType = entity.MessageTypeSystem
		}
	}

	if err := uow.ChatMessageRepository().Append(ctx, message); err != nil {
		return nil, err
	}
	metrics.MessagesAppended.WithLabelValues(string(message.SenderType)).Inc()

	n := delivery.NewNotification(delivery.SessionTopic(session.Id), delivery.KindMessageAppended, session.CompanyId, session.Id)
	n.MessageId = &message.Id
	s.bus.Publish(ctx, n)

	return message, nil
}

func (s *chatSessionService) UpdateStatus(ctx context.Context, sessionId uint64, status entity.SessionStatus) (*entity.ChatSession, error) {
	event, err := statemachine.EventForStatus(status)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, sessionId, event)
}

func (s *chatSessionService) Assign(ctx context.Context, sessionId, agentId uint64) (*entity.ChatSession, error) {
	return s.transition(ctx, sessionId, statemachine.Assign(agentId))
}

func (s *chatSessionService) CompareAndAssign(ctx context.Context, sessionId, agentId uint64, expectedAgentId *uint64) (*entity.ChatSession, error) {
	return s.transition(ctx, sessionId, statemachine.CompareAndAssign(agentId, expectedAgentId))
}

func (s *chatSessionService) Unassign(ctx context.Context, sessionId uint64) (*entity.ChatSession, error) {
	return s.transition(ctx, sessionId, statemachine.Unassign())
}

// transition reads the session, validates event against it and writes the
// result guarded by the same precondition. Nothing is written on failure.
func (s *chatSessionService) transition(ctx context.Context, sessionId uint64, event statemachine.Event) (*entity.ChatSession, error) {
	repo := s.uowFactory.NewUnitOfWork(ctx).ChatSessionRepository()

	var lastErr error
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		current, err := repo.Get(ctx, sessionId)
		if err != nil {
			return nil, err
		}

		t, err := s.machine.Apply(current, event)
		if err != nil {
			metrics.SessionTransitions.WithLabelValues(string(event.Name), "rejected").Inc()
			return nil, err
		}

		updated, err := repo.Update(ctx, sessionId, t.Patch, t.Guards...)
		if err == nil {
			metrics.SessionTransitions.WithLabelValues(string(event.Name), "ok").Inc()
			s.afterTransition(ctx, t, updated)
			return updated, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}

		metrics.SessionTransitions.WithLabelValues(string(event.Name), "conflict").Inc()
		s.logger.Warn("CHAT", "Session changed under transition, retrying", map[string]interface{}{
			"session_id": sessionId,
			"event":      event.Name,
			"attempt":    attempt + 1,
		})
		lastErr = err
	}
	return nil, lastErr
}

func (s *chatSessionService) afterTransition(ctx context.Context, t *statemachine.Transition, session *entity.ChatSession) {
	s.logger.Info("CHAT", "Session transitioned", map[string]interface{}{
		"session_id": session.Id,
		"event":      t.Event.Name,
		"from":       t.From,
		"to":         t.To,
		"agent_id":   session.AgentId,
	})

	s.publishSessionUpdated(ctx, session)

	if s.events == nil {
		return
	}
	switch t.Event.Name {
	case statemachine.EventClose:
		s.events.PublishSessionChanged(ctx, pkgEvents.ChatSessionClosed, session)
	case statemachine.EventArchive:
		s.events.PublishSessionChanged(ctx, pkgEvents.ChatSessionArchived, session)
	case statemachine.EventAssign:
		s.events.PublishSessionChanged(ctx, pkgEvents.ChatSessionAssigned, session)
	case statemachine.EventUnassign:
		s.events.PublishSessionChanged(ctx, pkgEvents.ChatSessionUnassigned, session)
	}
}

func (s *chatSessionService) publishSessionUpdated(ctx context.Context, session *entity.ChatSession) {
	toSession := delivery.NewNotification(delivery.SessionTopic(session.Id), delivery.KindSessionUpdated, session.CompanyId, session.Id)
	toSession.Status = string(session.Status)
	toCompany := toSession
	toCompany.Topic = delivery.CompanyTopic(session.CompanyId)
	s.bus.Publish(ctx, toSession, toCompany)
}

// LinkTicket attaches a support ticket in any status; tickets are often opened
// after a conversation has ended.
func (s *chatSessionService) LinkTicket(ctx context.Context, sessionId, ticketId uint64, metadata entity.Metadata) (*entity.ChatSession, error) {
	if ticketId == 0 {
		return nil, apperror.Validation("ticket id is required", map[string]interface{}{"ticket_id": "required"})
	}
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	repo := s.uowFactory.NewUnitOfWork(ctx).ChatSessionRepository()

	current, err := repo.Get(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	patch := entity.SessionPatch{TicketId: &ticketId}
	if len(metadata) > 0 {
		patch.Metadata = current.Metadata.Merge(metadata)
	}

	updated, err := repo.Update(ctx, sessionId, patch)
	if err != nil {
		return nil, err
	}

	s.publishSessionUpdated(ctx, updated)
	if s.events != nil {
		s.events.PublishSessionChanged(ctx, pkgEvents.ChatSessionTicketLinked, updated)
	}
	return updated, nil
}

func (s *chatSessionService) GetSession(ctx context.Context, sessionId uint64) (*entity.ChatSession, error) {
	return s.uowFactory.NewUnitOfWork(ctx).ChatSessionRepository().Get(ctx, sessionId)
}

func (s *chatSessionService) ListMessages(ctx context.Context, sessionId uint64, sinceId *uint64) ([]*entity.ChatMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if _, err := uow.ChatSessionRepository().Get(ctx, sessionId); err != nil {
		return nil, err
	}
	return uow.ChatMessageRepository().ListBySession(ctx, sessionId, sinceId)
}

func (s *chatSessionService) MarkRead(ctx context.Context, sessionId, messageId uint64) (*entity.ChatMessage, error) {
	message, err := s.uowFactory.NewUnitOfWork(ctx).ChatMessageRepository().MarkRead(ctx, sessionId, messageId)
	if err != nil {
		return nil, err
	}

	n := delivery.NewNotification(delivery.SessionTopic(message.SessionId), delivery.KindMessageRead, message.CompanyId, message.SessionId)
	n.MessageId = &message.Id
	s.bus.Publish(ctx, n)

	return message, nil
}

func (s *chatSessionService) ListSessionsForCompany(ctx context.Context, companyId uint64, filter entity.SessionFilter, page entity.Page) ([]*entity.ChatSession, int64, error) {
	return s.uowFactory.NewUnitOfWork(ctx).ChatSessionRepository().ListByCompany(ctx, companyId, filter, page.Normalize())
}

func (s *chatSessionService) ListSessionsForContact(ctx context.Context, companyId, contactId uint64, page entity.Page) ([]*entity.ChatSession, int64, error) {
	return s.uowFactory.NewUnitOfWork(ctx).ChatSessionRepository().ListByContact(ctx, companyId, contactId, page.Normalize())
}

// PollState backs clients without a live subscription. The version is derived
// from the stores, so every instance computes the same value.
func (s *chatSessionService) PollState(ctx context.Context, sessionId uint64, sinceVersion string) (*PollState, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().Get(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	latest, err := uow.ChatMessageRepository().Latest(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	readAt, err := uow.ChatMessageRepository().LatestReadAt(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	var latestId uint64
	if latest != nil {
		latestId = latest.Id
	}
	var readMicro int64
	if readAt != nil {
		readMicro = readAt.UnixMicro()
	}
	version := fmt.Sprintf("%d-%d-%d", session.UpdatedAt.UnixMicro(), latestId, readMicro)

	return &PollState{
		SessionId:       session.Id,
		Status:          session.Status,
		Version:         version,
		Changed:         sinceVersion != version,
		Interval:        delivery.PollInterval(session.Status),
		LatestMessageId: latestId,
	}, nil
}
