// Package bustest holds the behaviour every bus.Bus backend must share.
package bustest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsync/internal/bus"
	"github.com/chatsync/internal/model"
	"github.com/chatsync/internal/protocol"
)

// Ready blocks until the broker has registered the subscription to channel.
// Backends that subscribe synchronously pass a func that returns immediately.
type Ready func(t *testing.T, channel string)

func next(t *testing.T, sub bus.Subscription) bus.Delivery {
	t.Helper()
	select {
	case d, ok := <-sub.Deliveries():
		require.True(t, ok, "deliveries closed")
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
	return bus.Delivery{}
}

// Run exercises newBus against the bus.Bus contract.
func Run(t *testing.T, newBus func(t *testing.T) bus.Bus, ready Ready) {
	t.Run("OrderPerChannel", func(t *testing.T) {
		b := newBus(t)
		ctx := context.Background()
		sub, err := b.Open(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, sub.Subscribe(ctx, "chan-a"))
		ready(t, "chan-a")

		for i := int64(1); i <= 3; i++ {
			ev := protocol.NewMessage{Message: model.Message{ID: "m", SenderID: "u1", Text: "x", Timestamp: i}}
			require.NoError(t, b.Publish(ctx, "chan-a", ev))
		}
		for i := int64(1); i <= 3; i++ {
			d := next(t, sub)
			assert.Equal(t, "chan-a", d.Channel)
			nm, ok := d.Event.(protocol.NewMessage)
			require.True(t, ok)
			assert.Equal(t, i, nm.Message.Timestamp)
		}
	})

	t.Run("OnlySubscribedChannels", func(t *testing.T) {
		b := newBus(t)
		ctx := context.Background()
		sub, err := b.Open(ctx)
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, sub.Subscribe(ctx, "mine"))
		ready(t, "mine")
		require.NoError(t, b.Publish(ctx, "other", protocol.DenyFriend{}))
		require.NoError(t, b.Publish(ctx, "mine", protocol.DenyFriend{}))

		d := next(t, sub)
		assert.Equal(t, "mine", d.Channel)
		assert.Equal(t, protocol.DenyFriend{}, d.Event)
	})

	t.Run("CloseEndsDeliveries", func(t *testing.T) {
		b := newBus(t)
		sub, err := b.Open(context.Background())
		require.NoError(t, err)
		require.NoError(t, sub.Close())
		select {
		case _, ok := <-sub.Deliveries():
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("deliveries not closed")
		}
	})
}
