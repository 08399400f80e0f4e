package nats

import (
	"fmt"
	"log"
	"sync"

	"github.com/nats-io/nats.go"
)

// MessageHandler receives raw core-NATS messages.
type MessageHandler func(subject string, data []byte)

// Subscriber listens on core subjects.
type Subscriber struct {
	nc *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewSubscriber(url string) (*Subscriber, error) {
	nc, err := connect(url, "support-chat-subscriber")
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc}, nil
}

// Listen registers handler for subject, which may use wildcards.
func (s *Subscriber) Listen(subject string, handler MessageHandler) error {
	sub, err := s.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	log.Printf("Subscribed to %s", subject)
	return nil
}

// Close unsubscribes and drains the connection.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
	if s.nc != nil {
		_ = s.nc.Drain()
	}
}
