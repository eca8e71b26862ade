package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chatsync/internal/bus"
	"github.com/chatsync/internal/logger"
	"github.com/chatsync/internal/protocol"
)

var (
	ErrForbidden     = errors.New("forbidden channel")
	ErrHubFull       = errors.New("connection limit reached")
	errHubNotRunning = errors.New("hub not running")
	errClientClosed  = errors.New("client closed")
)

// Options are the per-connection limits taken from config.
type Options struct {
	MaxConns       int
	SendBufSize    int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func (o Options) withDefaults() Options {
	if o.MaxConns <= 0 {
		o.MaxConns = 10000
	}
	if o.SendBufSize <= 0 {
		o.SendBufSize = 256
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	return o
}

// Hub fans bus deliveries out to websocket clients. It holds one bus
// subscription per process; a broker channel stays subscribed while at
// least one client listens on it.
type Hub struct {
	opts     Options
	channels protocol.Channels
	bus      bus.Bus

	mu        sync.RWMutex
	clients   map[*Client]struct{}
	listeners map[string]map[*Client]struct{}

	// subMu serializes broker subscribe/unsubscribe with the refcounts in listeners.
	subMu sync.Mutex
	sub   bus.Subscription

	register   chan *Client
	unregister chan *Client
	ready      chan struct{}
	stopping   chan struct{}
	done       chan struct{}
}

func NewHub(b bus.Bus, channels protocol.Channels, opts Options) *Hub {
	return &Hub{
		opts:       opts.withDefaults(),
		channels:   channels,
		bus:        b,
		clients:    make(map[*Client]struct{}),
		listeners:  make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		ready:      make(chan struct{}),
		stopping:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run opens the bus subscription and serves until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	sub, err := h.bus.Open(ctx)
	if err != nil {
		return err
	}
	h.subMu.Lock()
	h.sub = sub
	h.subMu.Unlock()
	close(h.ready)
	logger.Info("ws hub started")

	deliveries := sub.Deliveries()
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case d, ok := <-deliveries:
			if !ok {
				logger.Error("ws hub: bus subscription closed")
				h.shutdown()
				return errors.New("bus subscription closed")
			}
			h.dispatch(d)
		}
	}
}

// Ready is closed once the hub accepts subscriptions.
func (h *Hub) Ready() <-chan struct{} { return h.ready }

func (h *Hub) shutdown() {
	close(h.stopping)
	h.mu.Lock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.clients = make(map[*Client]struct{})
	h.listeners = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
	h.subMu.Lock()
	if err := h.sub.Close(); err != nil {
		logger.Errorf("ws hub: close bus subscription: %v", err)
	}
	h.subMu.Unlock()
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if len(h.clients) >= h.opts.MaxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.opts.MaxConns, c.userID)
		c.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.Close()
	h.subMu.Lock()
	defer h.subMu.Unlock()
	for _, ch := range c.subscribedChannels() {
		h.unsubscribeLocked(c, ch)
	}
}

// Authorize reports whether userID may listen on channel: its own
// personal channels or a conversation it takes part in.
func (h *Hub) Authorize(userID, channel string) error {
	scope, err := h.channels.Parse(channel)
	if err != nil {
		return ErrForbidden
	}
	switch scope.Kind {
	case protocol.KindMessages:
		if _, ok := protocol.Partner(scope.Owner, userID); ok {
			return nil
		}
	default:
		if scope.Owner == userID {
			return nil
		}
	}
	return ErrForbidden
}

// HandleFrame applies a client subscription frame and acknowledges it.
func (h *Hub) HandleFrame(ctx context.Context, c *Client, f IncomingFrame) {
	switch f.Type {
	case FrameSubscribe:
		if err := h.Authorize(c.userID, f.Channel); err != nil {
			h.sendToClient(c, OutgoingFrame{Type: FrameError, Channel: f.Channel, Error: err.Error()})
			return
		}
		if err := h.subscribe(ctx, c, f.Channel); err != nil {
			logger.Errorf("ws subscribe user=%s channel=%s: %v", c.userID, f.Channel, err)
			h.sendToClient(c, OutgoingFrame{Type: FrameError, Channel: f.Channel, Error: "subscribe failed"})
			return
		}
		h.sendToClient(c, OutgoingFrame{Type: FrameSubscribed, Channel: f.Channel})
	case FrameUnsubscribe:
		h.unsubscribe(c, f.Channel)
		h.sendToClient(c, OutgoingFrame{Type: FrameUnsubscribed, Channel: f.Channel})
	default:
		h.sendToClient(c, OutgoingFrame{Type: FrameError, Error: "unknown frame type"})
	}
}

func (h *Hub) subscribe(ctx context.Context, c *Client, channel string) error {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	if h.sub == nil {
		return errHubNotRunning
	}
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	h.mu.RLock()
	first := len(h.listeners[channel]) == 0
	h.mu.RUnlock()
	if first {
		if err := h.sub.Subscribe(ctx, channel); err != nil {
			return err
		}
	}

	h.mu.Lock()
	if h.listeners[channel] == nil {
		h.listeners[channel] = make(map[*Client]struct{})
	}
	h.listeners[channel][c] = struct{}{}
	h.mu.Unlock()
	c.track(channel, true)
	return nil
}

func (h *Hub) unsubscribe(c *Client, channel string) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.unsubscribeLocked(c, channel)
}

// unsubscribeLocked requires subMu.
func (h *Hub) unsubscribeLocked(c *Client, channel string) {
	c.track(channel, false)
	h.mu.Lock()
	set, ok := h.listeners[channel]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := set[c]; !member {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	last := len(set) == 0
	if last {
		delete(h.listeners, channel)
	}
	h.mu.Unlock()

	if last && h.sub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.sub.Unsubscribe(ctx, channel); err != nil {
			logger.Errorf("ws unsubscribe channel=%s: %v", channel, err)
		}
	}
}

func (h *Hub) dispatch(d bus.Delivery) {
	frame, err := EventFrame(d.Channel, d.Event)
	if err != nil {
		logger.Errorf("ws encode %s on %s: %v", d.Event.Name(), d.Channel, err)
		return
	}
	h.mu.RLock()
	set := h.listeners[d.Channel]
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, frame)
	}
}

func (h *Hub) sendToClient(c *Client, f OutgoingFrame) {
	select {
	case c.send <- f:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

// Admit reports whether a new connection would be accepted: the hub is
// running and below MaxConns. Registration still re-checks the limit.
func (h *Hub) Admit() error {
	select {
	case <-h.ready:
	default:
		return errHubNotRunning
	}
	select {
	case <-h.stopping:
		return errHubNotRunning
	default:
	}
	if h.Connections() >= h.opts.MaxConns {
		return ErrHubFull
	}
	return nil
}

// Connections returns the number of registered clients.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Listeners returns how many clients listen on channel.
func (h *Hub) Listeners(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[channel])
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopping:
		c.Close()
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopping:
	case <-h.done:
	}
}
