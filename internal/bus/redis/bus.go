package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/chatsync/internal/bus"
	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/protocol"
)

const deliveryBuffer = 256

// Bus publishes protocol envelopes with PUBLISH and receives them over a
// single PubSub connection per subscription.
type Bus struct {
	cli *redis.Client
}

func New(cli *redis.Client) *Bus {
	return &Bus{cli: cli}
}

func (b *Bus) Publish(ctx context.Context, channel string, ev protocol.Event) error {
	raw, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	if err := b.cli.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

func (b *Bus) Open(ctx context.Context) (bus.Subscription, error) {
	ps := b.cli.Subscribe(ctx)
	s := &subscription{
		ps:   ps,
		out:  make(chan bus.Delivery, deliveryBuffer),
		done: make(chan struct{}),
	}
	go s.pump(ps.Channel())
	return s, nil
}

type subscription struct {
	ps   *redis.PubSub
	out  chan bus.Delivery
	done chan struct{}
	once sync.Once
}

func (s *subscription) pump(in <-chan *redis.Message) {
	defer close(s.out)
	for msg := range in {
		ev, err := protocol.Decode([]byte(msg.Payload))
		if err != nil {
			logger.Errorf("redis bus: drop message on %s: %v", msg.Channel, err)
			continue
		}
		select {
		case s.out <- bus.Delivery{Channel: msg.Channel, Event: ev}:
		case <-s.done:
			return
		}
	}
}

func (s *subscription) Subscribe(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	if err := s.ps.Subscribe(ctx, channels...); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	return nil
}

func (s *subscription) Unsubscribe(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	if err := s.ps.Unsubscribe(ctx, channels...); err != nil {
		return fmt.Errorf("redis unsubscribe: %w", err)
	}
	return nil
}

func (s *subscription) Deliveries() <-chan bus.Delivery { return s.out }

// Close stops the PubSub connection; Deliveries is closed once the pump drains.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
