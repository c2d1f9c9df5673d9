package notifications

import (
	"context"
	"errors"
	"sync"

	"fourwcycle/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	maxConnsPerAdmin = 8
	maxTotalConns    = 256
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("hub is shut down")

// AdminHub maps admin subject -> connected clients and fans moderation events out to all of them.
type AdminHub struct {
	mu         sync.RWMutex
	conns      map[string]map[*Client]struct{}
	totalConns int
	closed     bool
}

// NewAdminHub creates an empty hub.
func NewAdminHub() *AdminHub {
	return &AdminHub{conns: make(map[string]map[*Client]struct{})}
}

// Name returns a human-readable identifier for this hub.
func (h *AdminHub) Name() string { return "moderation hub" }

// Register adds a connection for subject. Returns an error if limits are exceeded.
func (h *AdminHub) Register(subject string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}
	m, ok := h.conns[subject]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[subject] = m
	}
	if len(m) >= maxConnsPerAdmin {
		return nil, errors.New("admin connection limit reached")
	}

	client := NewClient(h, conn, subject)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes client; unknown clients are ignored.
func (h *AdminHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.conns[client.Subject]
	if !ok {
		return
	}
	if _, exists := m[client]; exists {
		delete(m, client)
		h.totalConns--
		observability.WebSocketConnectionsTotal.Dec()
		close(client.Send)
	}
	if len(m) == 0 {
		delete(h.conns, client.Subject)
	}
}

// Count returns the number of registered clients.
func (h *AdminHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// BroadcastAll sends message to every connected client.
func (h *AdminHub) BroadcastAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// StartWiring subscribes the hub to moderation events published through n.
func (h *AdminHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartModerationSubscriber(ctx, h.BroadcastAll)
}

// Shutdown closes every client's send channel and rejects further registrations. Each WritePump
// then sends the close frame itself, so the hub never writes to a connection.
func (h *AdminHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for _, clients := range h.conns {
		for client := range clients {
			close(client.Send)
		}
		observability.WebSocketConnectionsTotal.Sub(float64(len(clients)))
	}
	h.conns = make(map[string]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
