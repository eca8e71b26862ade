package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatsync/internal/bus"
	"github.com/chatsync/internal/bus/bustest"
	"github.com/chatsync/internal/protocol"
)

func TestContract(t *testing.T) {
	bustest.Run(t,
		func(t *testing.T) bus.Bus { return New() },
		func(t *testing.T, channel string) {},
	)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ctx := context.Background()
	sub, err := b.Open(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, sub.Subscribe(ctx, "c"))
	require.NoError(t, sub.Unsubscribe(ctx, "c"))
	require.NoError(t, b.Publish(ctx, "c", protocol.DenyFriend{}))

	select {
	case d := <-sub.Deliveries():
		t.Fatalf("unexpected delivery %+v", d)
	default:
	}
	assert.ErrorIs(t, closedSubscribe(t, b), ErrClosed)
}

func closedSubscribe(t *testing.T, b *Bus) error {
	sub, err := b.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	return sub.Subscribe(context.Background(), "c")
}
