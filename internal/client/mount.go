package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/protocol"
)

type State int

const (
	Uninitialized State = iota
	Subscribed
	Updating
	Unsubscribed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Subscribed:
		return "subscribed"
	case Updating:
		return "updating"
	case Unsubscribed:
		return "unsubscribed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Machine сводит события своих каналов в локальное состояние.
type Machine interface {
	Handle(channel string, ev protocol.Event)
}

// Mount — подписка машины на набор каналов на время жизни вида.
// Close снимает всё, что было взято, и безопасен для повторного вызова.
type Mount struct {
	transport Transport
	machine   Machine

	state atomic.Int32

	mu       sync.Mutex
	channels map[string]struct{}
	acquired []string
	unbind   func()
}

// NewMount подписывает machine на channels. При ошибке на любом шаге уже взятые
// подписки освобождаются и возвращается ошибка; Mount в этом случае не создаётся.
func NewMount(ctx context.Context, t Transport, m Machine, channels ...string) (*Mount, error) {
	mt := &Mount{
		transport: t,
		machine:   m,
		channels:  make(map[string]struct{}, len(channels)),
	}
	mt.unbind = t.Bind(mt.handle)
	for _, ch := range channels {
		if _, dup := mt.channels[ch]; dup {
			continue
		}
		if err := t.Subscribe(ctx, ch); err != nil {
			if cerr := mt.Close(context.WithoutCancel(ctx)); cerr != nil {
				logger.Errorf("mount: release after failed subscribe: %v", cerr)
			}
			return nil, fmt.Errorf("mount %s: %w", ch, err)
		}
		mt.mu.Lock()
		mt.channels[ch] = struct{}{}
		mt.acquired = append(mt.acquired, ch)
		mt.mu.Unlock()
	}
	mt.mu.Lock()
	mt.state.Store(int32(Subscribed))
	mt.mu.Unlock()
	return mt, nil
}

// handle пропускает только события своих каналов; события разбираются по одному.
func (mt *Mount) handle(channel string, ev protocol.Event) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.State() == Unsubscribed {
		return
	}
	if _, ok := mt.channels[channel]; !ok {
		return
	}
	prev := mt.state.Swap(int32(Updating))
	mt.machine.Handle(channel, ev)
	mt.state.Store(prev)
}

func (mt *Mount) State() State { return State(mt.state.Load()) }

// Channels — каналы, на которые mount подписан сейчас.
func (mt *Mount) Channels() []string {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return append([]string(nil), mt.acquired...)
}

func (mt *Mount) Close(ctx context.Context) error {
	mt.mu.Lock()
	if mt.State() == Unsubscribed {
		mt.mu.Unlock()
		return nil
	}
	mt.state.Store(int32(Unsubscribed))
	acquired := mt.acquired
	mt.acquired = nil
	mt.channels = map[string]struct{}{}
	unbind := mt.unbind
	mt.mu.Unlock()

	unbind()
	var errs []error
	for _, ch := range acquired {
		if err := mt.transport.Unsubscribe(ctx, ch); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}
