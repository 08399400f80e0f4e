package events

import (
	"context"
	"time"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/pkg/logger"
	pkgEvents "support-chat-be/pkg/events"
	pktNats "support-chat-be/pkg/nats"
)

// Publisher emits durable chat lifecycle events for downstream consumers
// (ticketing, analytics). Failures are logged, never returned.
type Publisher interface {
	PublishSessionStarted(ctx context.Context, session *entity.ChatSession)
	PublishSessionChanged(ctx context.Context, eventType string, session *entity.ChatSession)
}

// NatsPublisher implements Publisher using NATS JetStream. A nil publisher
// turns every call into a no-op.
type NatsPublisher struct {
	publisher *pktNats.Publisher
	logger    logger.ILogger
}

func NewNatsPublisher(publisher *pktNats.Publisher, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

func (p *NatsPublisher) PublishSessionStarted(ctx context.Context, session *entity.ChatSession) {
	p.publish(ctx, pkgEvents.ChatSessionStarted, session)
}

func (p *NatsPublisher) PublishSessionChanged(ctx context.Context, eventType string, session *entity.ChatSession) {
	p.publish(ctx, eventType, session)
}

func (p *NatsPublisher) publish(ctx context.Context, eventType string, session *entity.ChatSession) {
	if p.publisher == nil {
		return
	}

	now := time.Now()
	evt := pkgEvents.BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			"session_id":  session.Id,
			"company_id":  session.CompanyId,
			"contact_id":  session.ContactId,
			"agent_id":    session.AgentId,
			"ticket_id":   session.TicketId,
			"status":      session.Status,
			"ended_at":    session.EndedAt,
			"entity_type": "chat_session",
			"occurred_at": now,
		},
		OccurredAt: now,
	}

	if err := p.publisher.Publish(ctx, evt); err != nil {
		p.logger.Error("CHAT", "Failed to publish "+eventType+" event", map[string]interface{}{
			"session_id": session.Id,
			"error":      err.Error(),
		})
	}
}
