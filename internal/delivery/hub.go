package delivery

import (
	"sync"

	"support-chat-be/internal/metrics"
	"support-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

const DefaultSubscriberBuffer = 16

// Hub is the local topic registry. The topic map is guarded by mu; each topic's
// subscriber set has its own lock so connects on one topic never wait on
// dispatch to another. Lock order is always mu, then topicSet.mu.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topicSet
	buffer int
	logger logger.ILogger
}

type topicSet struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription receives every notification dispatched on its topics until Close.
type Subscription struct {
	Id     uuid.UUID
	topics []string
	ch     chan Notification
	hub    *Hub
	once   sync.Once
}

func NewHub(buffer int, log logger.ILogger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		topics: make(map[string]*topicSet),
		buffer: buffer,
		logger: log,
	}
}

func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		Id:     uuid.New(),
		topics: topics,
		ch:     make(chan Notification, h.buffer),
		hub:    h,
	}

	h.mu.Lock()
	for _, topic := range topics {
		ts, ok := h.topics[topic]
		if !ok {
			ts = &topicSet{subs: make(map[*Subscription]struct{})}
			h.topics[topic] = ts
		}
		ts.mu.Lock()
		ts.subs[sub] = struct{}{}
		ts.mu.Unlock()
	}
	h.mu.Unlock()

	metrics.ActiveSubscriptions.Inc()
	h.logger.Info("Hub", "Subscribed", map[string]interface{}{"subscription_id": sub.Id, "topics": topics})
	return sub
}

// Dispatch never blocks. When a subscriber's buffer is full it already holds an
// undelivered refetch signal, so the new one is coalesced into it.
func (h *Hub) Dispatch(n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ts, ok := h.topics[n.Topic]
	if !ok {
		return
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	for sub := range ts.subs {
		select {
		case sub.ch <- n:
			metrics.NotificationsDelivered.Inc()
		default:
			metrics.NotificationsCoalesced.Inc()
		}
	}
}

// Count returns the number of local subscribers on topic.
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ts, ok := h.topics[topic]
	if !ok {
		return 0
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.subs)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range sub.topics {
		ts, ok := h.topics[topic]
		if !ok {
			continue
		}
		ts.mu.Lock()
		delete(ts.subs, sub)
		empty := len(ts.subs) == 0
		ts.mu.Unlock()
		if empty {
			delete(h.topics, topic)
		}
	}
}

// C yields refetch signals. It is closed after Close.
func (s *Subscription) C() <-chan Notification {
	return s.ch
}

func (s *Subscription) Topics() []string {
	return s.topics
}

// Close is safe to call more than once and from any goroutine.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
		metrics.ActiveSubscriptions.Dec()
		s.hub.logger.Info("Hub", "Unsubscribed", map[string]interface{}{"subscription_id": s.Id})
	})
}
