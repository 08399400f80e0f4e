package delivery

import (
	"sync"
	"testing"
	"time"

	"support-chat-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDispatchesToTopicSubscribersOnly(t *testing.T) {
	hub := NewHub(4, logger.NewNopLogger())

	a := hub.Subscribe(SessionTopic(1))
	b := hub.Subscribe(SessionTopic(1), CompanyTopic(7))
	c := hub.Subscribe(SessionTopic(2))
	defer a.Close()
	defer b.Close()
	defer c.Close()

	hub.Dispatch(NewNotification(SessionTopic(1), KindMessageAppended, 7, 1))

	assert.Len(t, a.C(), 1)
	assert.Len(t, b.C(), 1)
	assert.Len(t, c.C(), 0)

	hub.Dispatch(NewNotification(CompanyTopic(7), KindSessionStarted, 7, 3))
	assert.Len(t, a.C(), 1)
	assert.Len(t, b.C(), 2)

	// Nobody listens here; must not panic or block.
	hub.Dispatch(NewNotification(SessionTopic(99), KindMessageAppended, 7, 99))
}

func TestHubCoalescesWhenBufferIsFull(t *testing.T) {
	hub := NewHub(1, logger.NewNopLogger())
	sub := hub.Subscribe(SessionTopic(1))
	defer sub.Close()

	for i := 0; i < 10; i++ {
		hub.Dispatch(NewNotification(SessionTopic(1), KindMessageAppended, 7, 1))
	}

	assert.Len(t, sub.C(), 1, "a full buffer already holds a pending refetch")

	n := <-sub.C()
	assert.Equal(t, KindMessageAppended, n.Kind)

	hub.Dispatch(NewNotification(SessionTopic(1), KindSessionUpdated, 7, 1))
	n = <-sub.C()
	assert.Equal(t, KindSessionUpdated, n.Kind)
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	hub := NewHub(4, logger.NewNopLogger())
	sub := hub.Subscribe(SessionTopic(1), SessionTopic(2))
	assert.Equal(t, 1, hub.Count(SessionTopic(1)))

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, hub.Count(SessionTopic(1)))
	assert.Equal(t, 0, hub.Count(SessionTopic(2)))

	_, open := <-sub.C()
	assert.False(t, open)

	// Dispatch after close must not send on the closed channel.
	hub.Dispatch(NewNotification(SessionTopic(1), KindMessageAppended, 7, 1))
}

func TestHubConcurrentSubscribeDispatchClose(t *testing.T) {
	hub := NewHub(2, logger.NewNopLogger())
	topic := SessionTopic(1)

	stop := make(chan struct{})
	var dispatchers sync.WaitGroup
	for i := 0; i < 4; i++ {
		dispatchers.Add(1)
		go func() {
			defer dispatchers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Dispatch(NewNotification(topic, KindMessageAppended, 7, 1))
				}
			}
		}()
	}

	var subscribers sync.WaitGroup
	for i := 0; i < 50; i++ {
		subscribers.Add(1)
		go func() {
			defer subscribers.Done()
			sub := hub.Subscribe(topic, SessionTopic(2))
			time.Sleep(time.Millisecond)
			sub.Close()
		}()
	}
	subscribers.Wait()
	close(stop)
	dispatchers.Wait()

	assert.Equal(t, 0, hub.Count(topic))
}

func TestSubscriberReceivesAfterOtherTopicChurn(t *testing.T) {
	hub := NewHub(4, logger.NewNopLogger())
	watcher := hub.Subscribe(SessionTopic(1))
	defer watcher.Close()

	for i := 0; i < 20; i++ {
		hub.Subscribe(SessionTopic(2)).Close()
	}

	hub.Dispatch(NewNotification(SessionTopic(1), KindMessageAppended, 7, 1))
	select {
	case n := <-watcher.C():
		require.Equal(t, SessionTopic(1), n.Topic)
	case <-time.After(time.Second):
		t.Fatal("no notification delivered")
	}
}
