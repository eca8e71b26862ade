// Package client — клиентская сторона realtime-протокола: транспорты с подсчётом
// подписок и машины состояний, которые сводят события каналов в локальное состояние вида.
package client

import (
	"context"
	"errors"
	"sync"

	"github.com/chatsync/internal/protocol"
)

var ErrNotSubscribed = errors.New("channel is not subscribed")

// Handler получает каждое событие транспорта вместе с каналом, из которого оно пришло.
type Handler func(channel string, ev protocol.Event)

// Transport — клиентский конец шины. Subscribe/Unsubscribe считают ссылки:
// удалённая подписка снимается только когда канал освободил последний владелец.
type Transport interface {
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
	Bind(h Handler) (unbind func())
}

// dispatcher — общая часть транспортов: счётчики каналов и реестр обработчиков.
type dispatcher struct {
	subMu sync.Mutex
	refs  map[string]int

	mu       sync.RWMutex
	handlers map[uint64]Handler
	nextID   uint64
}

func newDispatcher() *dispatcher {
	return &dispatcher{refs: make(map[string]int), handlers: make(map[uint64]Handler)}
}

// acquire вызывает remote только для первого владельца канала.
func (d *dispatcher) acquire(ctx context.Context, channel string, remote func(context.Context, string) error) error {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	if d.refs[channel] == 0 {
		if err := remote(ctx, channel); err != nil {
			return err
		}
	}
	d.refs[channel]++
	return nil
}

// release вызывает remote, когда уходит последний владелец.
func (d *dispatcher) release(ctx context.Context, channel string, remote func(context.Context, string) error) error {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	n := d.refs[channel]
	if n == 0 {
		return ErrNotSubscribed
	}
	if n > 1 {
		d.refs[channel] = n - 1
		return nil
	}
	delete(d.refs, channel)
	return remote(ctx, channel)
}

// Refs — число владельцев канала.
func (d *dispatcher) Refs(channel string) int {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	return d.refs[channel]
}

func (d *dispatcher) Bind(h Handler) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.handlers[id] = h
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.handlers, id)
			d.mu.Unlock()
		})
	}
}

// dispatch вызывает обработчики вне блокировки: обработчик может сам вызвать Bind/unbind.
func (d *dispatcher) dispatch(channel string, ev protocol.Event) {
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers))
	for _, h := range d.handlers {
		hs = append(hs, h)
	}
	d.mu.RUnlock()
	for _, h := range hs {
		h(channel, ev)
	}
}
