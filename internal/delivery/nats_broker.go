package delivery

import (
	"context"
	"fmt"
	"strings"

	"support-chat-be/internal/pkg/logger"
	pktNats "support-chat-be/pkg/nats"
)

const natsSubjectPrefix = "chat.notify."

// NatsBroker uses core NATS subjects. Refetch signals need no persistence, so
// JetStream is left to lifecycle events.
type NatsBroker struct {
	publisher  *pktNats.Publisher
	subscriber *pktNats.Subscriber
	logger     logger.ILogger
}

func NewNatsBroker(publisher *pktNats.Publisher, subscriber *pktNats.Subscriber, log logger.ILogger) *NatsBroker {
	return &NatsBroker{publisher: publisher, subscriber: subscriber, logger: log}
}

// subjectFor maps "session:42" to "chat.notify.session.42".
func subjectFor(topic string) string {
	return natsSubjectPrefix + strings.ReplaceAll(topic, ":", ".")
}

func (b *NatsBroker) Publish(ctx context.Context, n Notification) error {
	payload, err := encode(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return b.publisher.PublishCore(subjectFor(n.Topic), payload)
}

func (b *NatsBroker) Listen(ctx context.Context, handler Handler) error {
	return b.subscriber.Listen(natsSubjectPrefix+">", func(subject string, data []byte) {
		n, err := decode(data)
		if err != nil {
			b.logger.Warn("NatsBroker", "Dropping undecodable notification", map[string]interface{}{
				"subject": subject,
				"error":   err.Error(),
			})
			return
		}
		handler(n)
	})
}

func (b *NatsBroker) Close() error {
	b.subscriber.Close()
	return nil
}
