package client

import (
	"context"

	"github.com/chatsync/internal/bus"
)

// BusTransport — транспорт поверх подписки шины в том же процессе (dev-режим, тесты, фоновые воркеры).
type BusTransport struct {
	*dispatcher
	sub  bus.Subscription
	done chan struct{}
}

func NewBusTransport(ctx context.Context, b bus.Bus) (*BusTransport, error) {
	sub, err := b.Open(ctx)
	if err != nil {
		return nil, err
	}
	t := &BusTransport{dispatcher: newDispatcher(), sub: sub, done: make(chan struct{})}
	go t.pump()
	return t, nil
}

func (t *BusTransport) pump() {
	defer close(t.done)
	for d := range t.sub.Deliveries() {
		t.dispatch(d.Channel, d.Event)
	}
}

func (t *BusTransport) Subscribe(ctx context.Context, channel string) error {
	return t.acquire(ctx, channel, func(ctx context.Context, ch string) error {
		return t.sub.Subscribe(ctx, ch)
	})
}

func (t *BusTransport) Unsubscribe(ctx context.Context, channel string) error {
	return t.release(ctx, channel, func(ctx context.Context, ch string) error {
		return t.sub.Unsubscribe(ctx, ch)
	})
}

// Close закрывает подписку и ждёт, пока будут разобраны уже полученные события.
func (t *BusTransport) Close() error {
	err := t.sub.Close()
	<-t.done
	return err
}
