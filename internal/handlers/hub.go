// Package handlers exposes the lobby over WebSocket and serves health checks.
package handlers

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tschausepp/internal/models"
)

// sendBuffer is the per-connection queue length. A client that falls this far
// behind starts losing messages rather than stalling its room.
const sendBuffer = 64

type client struct {
	id   uuid.UUID
	send chan models.ServerMessage
}

// Hub tracks live connections and implements game.Sender.
type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*client
	log   logrus.FieldLogger
}

// NewHub returns an empty hub.
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{conns: make(map[uuid.UUID]*client), log: log}
}

func (h *Hub) register(id uuid.UUID) *client {
	c := &client{id: id, send: make(chan models.ServerMessage, sendBuffer)}
	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(id uuid.UUID) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Send queues msg for conn without blocking. Messages for unknown
// connections are dropped.
func (h *Hub) Send(conn uuid.UUID, msg models.ServerMessage) {
	h.mu.RLock()
	c := h.conns[conn]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.log.WithFields(logrus.Fields{"conn": conn, "type": msg.Type}).Warn("send buffer full, dropping message")
	}
}
