// Package realtime pushes commands to seat terminals over websockets.  Each
// seat has at most one terminal connection; a new connection replaces the
// old one.
package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Notify when no terminal is attached to the
// seat.
var ErrNotConnected = errors.New("seat terminal not connected")

// Upgrader is shared by the seat websocket endpoint.  Terminals run on the
// venue network and are authenticated by token, so any origin is accepted.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub tracks one terminal connection per seat.
type Hub struct {
	mu      sync.RWMutex
	clients map[int]*Client
	buf     int
}

// NewHub returns an empty Hub.  buf is the per-client send buffer.
func NewHub(buf int) *Hub {
	if buf <= 0 {
		buf = 16
	}
	return &Hub{clients: make(map[int]*Client), buf: buf}
}

// Serve attaches conn as the terminal of seat and blocks until the
// connection closes.
func (h *Hub) Serve(conn *websocket.Conn, seat int, memberID string) {
	c := newClient(h, conn, seat, memberID, h.buf)
	h.attach(c)
	go c.writePump()
	c.readPump()
}

func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	existing := h.clients[c.seat]
	h.clients[c.seat] = c
	h.mu.Unlock()
	if existing != nil && existing != c {
		existing.close()
	}
	slog.Info("seat terminal attached", slog.Int("seat", c.seat), slog.String("member_id", c.memberID))
}

func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	if h.clients[c.seat] == c {
		delete(h.clients, c.seat)
	}
	h.mu.Unlock()
	c.close()
	slog.Info("seat terminal detached", slog.Int("seat", c.seat), slog.String("member_id", c.memberID))
}

// Notify sends msg as JSON to the terminal of seat.  A client whose buffer
// is full is dropped.
func (h *Hub) Notify(seat int, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.mu.RLock()
	c := h.clients[seat]
	h.mu.RUnlock()
	if c == nil {
		return ErrNotConnected
	}
	if !c.enqueue(data) {
		go h.detach(c)
		return ErrNotConnected
	}
	return nil
}

// Connected reports whether seat has a terminal attached.
func (h *Hub) Connected(seat int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[seat] != nil
}

// Close disconnects every terminal.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[int]*Client)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}
