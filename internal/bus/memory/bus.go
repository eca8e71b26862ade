package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/chatsync/internal/bus"
	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/protocol"
)

const deliveryBuffer = 256

var ErrClosed = errors.New("subscription closed")

// Bus fans events out inside one process.
type Bus struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

func New() *Bus {
	return &Bus{subs: make(map[*subscription]struct{})}
}

func (b *Bus) Publish(ctx context.Context, channel string, ev protocol.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.deliver(bus.Delivery{Channel: channel, Event: ev})
	}
	return nil
}

func (b *Bus) Open(ctx context.Context) (bus.Subscription, error) {
	s := &subscription{
		bus:      b,
		channels: make(map[string]struct{}),
		out:      make(chan bus.Delivery, deliveryBuffer),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s, nil
}

type subscription struct {
	bus      *Bus
	mu       sync.Mutex
	channels map[string]struct{}
	out      chan bus.Delivery
	closed   bool
}

// deliver holds mu while sending so per-channel order matches publish order
// and Close cannot race with a send on out.
func (s *subscription) deliver(d bus.Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.channels[d.Channel]; !ok {
		return
	}
	select {
	case s.out <- d:
	default:
		logger.Errorf("memory bus: buffer full, dropping %s on %s", d.Event.Name(), d.Channel)
	}
}

func (s *subscription) Subscribe(ctx context.Context, channels ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, ch := range channels {
		s.channels[ch] = struct{}{}
	}
	return nil
}

func (s *subscription) Unsubscribe(ctx context.Context, channels ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		delete(s.channels, ch)
	}
	return nil
}

func (s *subscription) Deliveries() <-chan bus.Delivery { return s.out }

func (s *subscription) Close() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	return nil
}
