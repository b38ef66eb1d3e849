// Package realtime pushes conversation events to connected operator
// dashboards over websockets.
package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const clientBuffer = 64

// Frame is the envelope written to every socket.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub fans frames out to subscribed clients. Each client has its own FIFO
// queue, so frames broadcast from one goroutine arrive in call order.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan Frame
	closed  bool
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: map[string]chan Frame{},
		logger:  logger.With("module", "realtime"),
	}
}

// Subscribe registers a client. cancel is idempotent and closes the queue.
func (h *Hub) Subscribe() (string, <-chan Frame, func()) {
	id := uuid.NewString()
	ch := make(chan Frame, clientBuffer)

	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.clients[id] = ch
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if current, ok := h.clients[id]; ok {
			delete(h.clients, id)
			close(current)
		}
		h.mu.Unlock()
	}
	return id, ch, cancel
}

// Broadcast implements whatsapp.Broadcaster.
func (h *Hub) Broadcast(event string, data any) {
	f := Frame{Event: event, Data: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		h.push(id, ch, f)
	}
}

// Send queues a frame for one client and reports whether it was accepted.
func (h *Hub) Send(id, event string, data any) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.clients[id]
	if !ok {
		return false
	}
	return h.push(id, ch, Frame{Event: event, Data: data})
}

// push never blocks. A client that cannot keep up is disconnected rather
// than shown a gap; it reloads state when it reconnects. Callers hold mu.
func (h *Hub) push(id string, ch chan Frame, f Frame) bool {
	select {
	case ch <- f:
		return true
	default:
		h.logger.Warn("client queue full, disconnecting", "client", id, "event", f.Event)
		delete(h.clients, id)
		close(ch)
		return false
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client; later subscriptions get a closed queue.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
	h.closed = true
}
