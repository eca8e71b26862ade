package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/ws"
)

var ErrTransportClosed = errors.New("transport closed")

const wsWriteWait = 10 * time.Second

// WSTransport — транспорт поверх /ws: подписки идут кадрами subscribe/unsubscribe,
// события приходят кадрами event. Управляющие запросы выполняются по одному.
type WSTransport struct {
	*dispatcher
	conn *websocket.Conn

	ctrlMu  sync.Mutex
	acks    chan ws.OutgoingFrame
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	readErr   error
}

// DialWS открывает соединение с url (ws://host/ws) и сессией token.
func DialWS(ctx context.Context, url, token string) (*WSTransport, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws dial %s: %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("ws dial %s: %w", url, err)
	}
	t := &WSTransport{
		dispatcher: newDispatcher(),
		conn:       conn,
		acks:       make(chan ws.OutgoingFrame, 4),
		done:       make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *WSTransport) readLoop() {
	defer close(t.done)
	for {
		var f ws.OutgoingFrame
		if err := t.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugf("ws transport read: %v", err)
			}
			t.readErr = err
			return
		}
		if f.Type != ws.FrameEvent {
			select {
			case t.acks <- f:
			default:
				logger.Errorf("ws transport: dropped %s frame for %s", f.Type, f.Channel)
			}
			continue
		}
		ev, err := f.Envelope().Unwrap()
		if err != nil {
			logger.Errorf("ws transport: bad event on %s: %v", f.Channel, err)
			continue
		}
		t.dispatch(f.Channel, ev)
	}
}

func (t *WSTransport) write(f ws.IncomingFrame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return t.conn.WriteJSON(f)
}

// request отправляет управляющий кадр и ждёт ответ по тому же каналу.
func (t *WSTransport) request(ctx context.Context, typ ws.FrameType, channel string) error {
	t.ctrlMu.Lock()
	defer t.ctrlMu.Unlock()
	if err := t.write(ws.IncomingFrame{Type: typ, Channel: channel}); err != nil {
		return fmt.Errorf("ws %s %s: %w", typ, channel, err)
	}
	for {
		select {
		case f := <-t.acks:
			if f.Channel != channel {
				continue
			}
			if f.Type == ws.FrameError {
				return fmt.Errorf("ws %s %s: %s", typ, channel, f.Error)
			}
			return nil
		case <-t.done:
			return ErrTransportClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *WSTransport) Subscribe(ctx context.Context, channel string) error {
	return t.acquire(ctx, channel, func(ctx context.Context, ch string) error {
		return t.request(ctx, ws.FrameSubscribe, ch)
	})
}

func (t *WSTransport) Unsubscribe(ctx context.Context, channel string) error {
	return t.release(ctx, channel, func(ctx context.Context, ch string) error {
		return t.request(ctx, ws.FrameUnsubscribe, ch)
	})
}

// Done закрывается при обрыве соединения. Догрузки пропущенных событий нет:
// после обрыва состояние восстанавливается через Resync.
func (t *WSTransport) Done() <-chan struct{} { return t.done }

// Err — причина обрыва; читать после Done.
func (t *WSTransport) Err() error {
	select {
	case <-t.done:
		return t.readErr
	default:
		return nil
	}
}

// Close шлёт close-кадр и ждёт завершения чтения.
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
		t.writeMu.Unlock()
		select {
		case <-t.done:
		case <-time.After(wsWriteWait):
		}
		err = t.conn.Close()
		<-t.done
	})
	return err
}
