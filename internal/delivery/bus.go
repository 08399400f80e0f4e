package delivery

import (
	"context"
	"time"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/metrics"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/pkg/logger"
)

// ActivePollInterval is how often clients without a subscription should poll an active session.
const ActivePollInterval = 3 * time.Second

// PollInterval returns 0 once the session can no longer change from the contact side.
func PollInterval(status entity.SessionStatus) time.Duration {
	if status.IsTerminal() {
		return 0
	}
	return ActivePollInterval
}

// Bus publishes through the broker and feeds whatever the broker delivers into
// the local Hub.
type Bus struct {
	hub    *Hub
	broker Broker
	logger logger.ILogger
}

func NewBus(hub *Hub, broker Broker, log logger.ILogger) *Bus {
	return &Bus{hub: hub, broker: broker, logger: log}
}

func (b *Bus) Start(ctx context.Context) error {
	if err := b.broker.Listen(ctx, b.hub.Dispatch); err != nil {
		return apperror.BusUnavailable(err)
	}
	b.logger.Info("Bus", "Delivery bus listening", nil)
	return nil
}

// Publish never fails the caller. The store write it follows is already
// committed and polling clients converge without the signal.
func (b *Bus) Publish(ctx context.Context, notifications ...Notification) {
	for _, n := range notifications {
		if err := b.broker.Publish(ctx, n); err != nil {
			metrics.NotificationsFailed.WithLabelValues(string(n.Kind)).Inc()
			b.logger.Warn("Bus", "Failed to publish notification", map[string]interface{}{
				"topic":      n.Topic,
				"kind":       n.Kind,
				"session_id": n.SessionId,
				"error":      apperror.BusUnavailable(err).Error(),
			})
			continue
		}
		metrics.NotificationsPublished.WithLabelValues(string(n.Kind)).Inc()
	}
}

func (b *Bus) Subscribe(topics ...string) *Subscription {
	return b.hub.Subscribe(topics...)
}

func (b *Bus) Close() error {
	return b.broker.Close()
}
