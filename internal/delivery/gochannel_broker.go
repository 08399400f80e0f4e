package delivery

import (
	"context"
	"fmt"

	"support-chat-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const notificationTopic = "chat_notifications"

// GoChannelBroker keeps fan-out inside one process. It is the default broker
// for single-instance deployments and tests.
type GoChannelBroker struct {
	pubSub *gochannel.GoChannel
	logger logger.ILogger
}

func NewGoChannelBroker(pubSub *gochannel.GoChannel, log logger.ILogger) *GoChannelBroker {
	return &GoChannelBroker{pubSub: pubSub, logger: log}
}

func (b *GoChannelBroker) Publish(ctx context.Context, n Notification) error {
	payload, err := encode(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	msg := message.NewMessage(n.Id.String(), payload)
	msg.SetContext(ctx)
	return b.pubSub.Publish(notificationTopic, msg)
}

func (b *GoChannelBroker) Listen(ctx context.Context, handler Handler) error {
	messages, err := b.pubSub.Subscribe(ctx, notificationTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			n, err := decode(msg.Payload)
			if err != nil {
				b.logger.Warn("GoChannelBroker", "Dropping undecodable notification", map[string]interface{}{"error": err.Error()})
				msg.Ack() // Ack invalid messages to prevent infinite retry
				continue
			}
			handler(n)
			msg.Ack()
		}
	}()

	return nil
}

func (b *GoChannelBroker) Close() error {
	return b.pubSub.Close()
}
