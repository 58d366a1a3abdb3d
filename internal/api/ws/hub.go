package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// pushMessage is one host-to-UI notification.
type pushMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// client is one UI connection. Writes are serialized: pushes arrive from
// component goroutines while responses come from the read loop.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub fans push notifications out to every connected UI process. It is
// the production notify.Sink handed to the registry, supervisor, and
// relay.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Notify implements notify.Sink by broadcasting to every connection.
// Connections that fail to accept the write are dropped from the hub;
// the read loop notices the closed socket and cleans up.
func (h *Hub) Notify(topic string, payload interface{}) {
	msg := pushMessage{Type: topic, Payload: payload}
	for _, c := range h.snapshot() {
		if err := c.writeJSON(msg); err != nil {
			h.remove(c)
		}
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) snapshot() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}
