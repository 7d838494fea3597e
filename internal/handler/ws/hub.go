package ws

import (
	"sync"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/internal/usecase"
)

// Hub tracks live sessions and fans signal updates out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	metrics domrepo.Metrics
}

func NewHub(m domrepo.Metrics) *Hub {
	return &Hub{clients: make(map[string]*Client), metrics: m}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.setSessions(n)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	h.setSessions(n)
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast hands u to every session. Sessions viewing another stock
// ignore it.
func (h *Hub) Broadcast(u models.SignalUpdate) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.session.Deliver(u)
	}
}

// CloseAll disconnects every session. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.close()
	}
}

func (h *Hub) setSessions(n int) {
	if h.metrics != nil {
		h.metrics.SetSessions(n)
	}
}

var _ usecase.Fanout = (*Hub)(nil)
