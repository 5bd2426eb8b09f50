// Package sockets fans messages out to browser clients over websockets.
package sockets

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxMessageSize = 8192

var ErrClosed = errors.New("closed connection")

// Connection is one subscribed client as seen by hub callbacks.
type Connection interface {
	Send(msg []byte) error
	Close() error
}

type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
	sendBuffer   int
	onConnected  func(Connection)
	onError      func(error)
	logger       *zap.Logger

	mu     sync.Mutex
	conns  map[*Conn]struct{}
	closed bool
}

func New(opts ...func(*Hub)) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
		sendBuffer:   16,
		conns:        make(map[*Conn]struct{}),
		logger:       zap.L(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ServeHTTP upgrades the request and keeps the client subscribed until it
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &Conn{
		ws:   ws,
		hub:  h,
		send: make(chan []byte, h.sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr))

	go c.writeLoop()
	if h.onConnected != nil {
		h.onConnected(c)
	}
	c.readLoop()
}

// Broadcast queues msg for every client. Clients that cannot keep up are
// dropped.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			h.logger.Warn("dropping websocket client", zap.Error(err))
			_ = c.Close()
		}
	}
}

// Len returns the number of subscribed clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

type Conn struct {
	ws   *websocket.Conn
	hub  *Hub
	send chan []byte

	once sync.Once
	done chan struct{}
}

// Send queues msg without blocking.
func (c *Conn) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Close unsubscribes the client. The write loop sends a close frame and
// releases the socket.
func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.hub.remove(c)
	})
	return nil
}

// readLoop discards client frames; it exists to process control frames and
// notice disconnects.
func (c *Conn) readLoop() {
	defer c.Close()
	c.ws.SetReadLimit(maxMessageSize)
	if c.hub.pingInterval > 0 {
		// a peer may miss one ping before it is dropped
		pongWait := 2 * c.hub.pingInterval
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.ws.SetPongHandler(func(string) error {
			return c.ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.hub.onError != nil {
				c.hub.onError(err)
			}
			return
		}
	}
}

func (c *Conn) writeLoop() {
	var tick <-chan time.Time
	if c.hub.pingInterval > 0 {
		ticker := time.NewTicker(c.hub.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() {
		_ = c.Close()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.hub.writeTimeout))
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				if c.hub.onError != nil {
					c.hub.onError(err)
				}
				return
			}
		case <-tick:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.hub.writeTimeout)); err != nil {
				return
			}
		}
	}
}
