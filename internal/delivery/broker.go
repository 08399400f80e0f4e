package delivery

import "context"

type Handler func(n Notification)

// Broker carries notifications between instances. Delivery is at-least-once at
// best; receivers refetch, so loss or duplication only costs an extra read.
type Broker interface {
	Publish(ctx context.Context, n Notification) error
	// Listen starts delivering to handler in the background and returns once
	// the broker is subscribed.
	Listen(ctx context.Context, handler Handler) error
	Close() error
}
