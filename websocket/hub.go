package websocket

import (
	"sync"
)

// Hub is an application-owned registry of open connections used for
// broadcast fan-out. Handlers add themselves on accept and must remove
// themselves before returning; the manager does not track membership.
//
// Create hubs at application build time and close them at shutdown; never
// reach for package-level globals.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*Conn]struct{})}
}

// Add registers a connection.
func (h *Hub) Add(c *Conn) {
	if c == nil {
		return
	}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

// Remove unregisters a connection. Removing an absent connection is a
// no-op.
func (h *Hub) Remove(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Snapshot returns the registered connections at a point in time. Fan-out
// iterates the snapshot, never the live set, so concurrent removals cannot
// corrupt the iteration.
func (h *Hub) Snapshot() []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		out = append(out, c)
	}
	return out
}

// Broadcast sends one message to every registered connection and returns
// the number of successful deliveries. A target that closed concurrently
// is skipped; its send failure never propagates to the caller.
func (h *Hub) Broadcast(messageType int, data []byte) int {
	delivered := 0
	for _, c := range h.Snapshot() {
		if err := c.Send(messageType, data); err == nil {
			delivered++
		}
	}
	return delivered
}

// CloseAll closes every registered connection with the given code and
// clears the hub. Intended for application shutdown.
func (h *Hub) CloseAll(code int, reason string) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*Conn]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(code, reason)
	}
}
