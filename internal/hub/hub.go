// Package hub tracks authenticated connections and fans broadcast events out
// to the subset of them each message type is meant for.
package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/gymgate/access-router/internal/metrics"
	"github.com/gymgate/access-router/internal/protocol"
)

// ErrQueueFull is returned when a client's outbound queue cannot take a frame.
var ErrQueueFull = errors.New("client send queue full")

// Event is a message to broadcast. OperatorID 0 addresses the super scope.
// Location only matters for device delivery.
type Event struct {
	Type       string
	OperatorID int64
	Location   protocol.Location
	Data       any
}

// Hub is the live-connection registry. Only handshaken clients are ever
// registered, so unauthenticated sockets are never broadcast targets.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *slog.Logger
}

// New creates an empty hub. If logger is nil, slog.Default() is used.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds c to the registry.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	count := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectionOpened(string(c.Type))
	h.logger.Info("client registered",
		"client_id", c.ID,
		"client_type", c.Type,
		"admin_id", c.OperatorID,
		"super", c.Super,
		"location", c.Location,
		"connections", count,
	)
}

// Unregister removes c. It reports false if c was not registered.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return false
	}
	metrics.ConnectionClosed(string(c.Type))
	h.logger.Info("client unregistered",
		"client_id", c.ID,
		"client_type", c.Type,
		"connections", count,
	)
	return true
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Snapshot lists registered clients ordered by connection time.
func (h *Hub) Snapshot() []Info {
	h.mu.RLock()
	out := make([]Info, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c.info())
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Broadcast delivers ev to every client in its audience and returns the
// number of clients it was queued for. Full queues drop the frame.
func (h *Hub) Broadcast(ev Event) int {
	frame, err := json.Marshal(protocol.Envelope{Type: ev.Type, Data: ev.Data})
	if err != nil {
		h.logger.Error("failed to encode broadcast", "type", ev.Type, "error", err)
		return 0
	}
	metrics.RecordBroadcast(ev.Type)

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, c := range h.clients {
		if !inAudience(ev, c) {
			continue
		}
		if !c.Enqueue(frame) {
			metrics.RecordDroppedFrame()
			h.logger.Warn("dropping frame for slow client",
				"client_id", c.ID,
				"type", ev.Type,
			)
			continue
		}
		delivered++
	}
	return delivered
}

// CloseAll closes every registered client, e.g. on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}

// inAudience applies the per-type targeting rules.
func inAudience(ev Event, c *Client) bool {
	switch ev.Type {
	case protocol.TypeRegistrationCheck:
		return c.Type == Dashboard && c.Super
	case protocol.TypeScanModeUpdated,
		protocol.TypeReplacementModeUpdated,
		protocol.TypeScannedForStaff,
		protocol.TypeReplacementScanned,
		protocol.TypeStaffScan:
		return c.Type == Dashboard && c.OperatorID == ev.OperatorID
	}

	if c.OperatorID != ev.OperatorID {
		return false
	}
	if c.Type == Dashboard {
		return true
	}
	return c.Location == protocol.LocationLock || c.Location == ev.Location
}
