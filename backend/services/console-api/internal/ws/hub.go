// Package ws pushes committed booking events to connected console users.
package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"evconsole/backend/services/console-api/internal/authz"
	"evconsole/backend/services/console-api/internal/metrics"
	"evconsole/backend/services/console-api/internal/models"
)

// Hub tracks feed clients and fans events out to those allowed to see them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub builds an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID()] = c
	metrics.AddWSClients(1)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID()]; ok {
		delete(h.clients, c.ID())
		metrics.AddWSClients(-1)
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish delivers event to Backoffice clients and to operators assigned to the event's station.
func (h *Hub) Publish(event models.BookingEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode booking event", zap.String("booking_id", event.BookingID), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if Visible(c.principal, event) {
			c.enqueue(payload)
		}
	}
}

// Visible reports whether p may observe event.
func Visible(p authz.Principal, event models.BookingEvent) bool {
	return p.Can(authz.ActionReadStation, event.StationOperators)
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
}
