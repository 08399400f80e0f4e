package delivery

import (
	"context"
	"fmt"
	"sync"

	"support-chat-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisBroker fans notifications out across instances over one pub/sub channel.
// Every instance receives everything and its Hub drops topics nobody watches locally.
type RedisBroker struct {
	rdb     *redis.Client
	channel string
	logger  logger.ILogger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewRedisBroker(rdb *redis.Client, log logger.ILogger) *RedisBroker {
	return &RedisBroker{rdb: rdb, channel: notificationTopic, logger: log}
}

func (b *RedisBroker) Publish(ctx context.Context, n Notification) error {
	payload, err := encode(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBroker) Listen(ctx context.Context, handler Handler) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	b.mu.Lock()
	b.pubsub = pubsub
	b.mu.Unlock()

	go func() {
		for msg := range pubsub.Channel() {
			n, err := decode([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("RedisBroker", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			handler(n)
		}
	}()

	return nil
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pubsub != nil {
		if err := b.pubsub.Close(); err != nil {
			return err
		}
		b.pubsub = nil
	}
	return b.rdb.Close()
}
