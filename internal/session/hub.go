package session

import (
	"sync"

	"github.com/plunkit-dev/plunkit/pkg/protocol"
)

// Hub is the per-world session registry: a single-writer, multi-reader
// map from entity id to the connection owning it, used to broadcast
// packets to every connected player in a world.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int32]*Conn
}

// NewHub returns an empty session registry.
func NewHub() *Hub {
	return &Hub{sessions: make(map[int32]*Conn)}
}

// Register adds a connection to the hub, keyed by entity id.
func (h *Hub) Register(entityID int32, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[entityID] = c
}

// Unregister removes a connection from the hub.
func (h *Hub) Unregister(entityID int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, entityID)
}

// Broadcast writes pkt to every registered connection. Write failures on
// one connection are swallowed here; that connection's own read loop will
// observe the failure and close.
func (h *Hub) Broadcast(pkt *protocol.Packet) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.sessions))
	for _, c := range h.sessions {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.send(pkt)
	}
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
