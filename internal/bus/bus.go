// Package bus is the publish/subscribe boundary. Delivery order is preserved
// per channel for a given subscription; nothing is replayed across a
// disconnect.
package bus

import (
	"context"

	"github.com/chatsync/internal/protocol"
)

// Delivery is one event received on a subscribed channel.
type Delivery struct {
	Channel string
	Event   protocol.Event
}

// Publisher is the server-side half used by the services.
type Publisher interface {
	Publish(ctx context.Context, channel string, ev protocol.Event) error
}

// Subscription is a single connection to the broker whose channel set can
// grow and shrink. Deliveries is closed after Close.
type Subscription interface {
	Subscribe(ctx context.Context, channels ...string) error
	Unsubscribe(ctx context.Context, channels ...string) error
	Deliveries() <-chan Delivery
	Close() error
}

type Bus interface {
	Publisher
	Open(ctx context.Context) (Subscription, error)
}
