package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/lorrc/team-kpi-backend/internal/core/domain"
	"github.com/lorrc/team-kpi-backend/internal/core/ports"
)

// Hub maintains the set of active Clients and pushes every published
// snapshot to them, filtered to each client's team.
type Hub struct {
	// Clients maps user IDs to their active connections
	// A single user can have multiple connections (multiple tabs/devices)
	clients map[uuid.UUID]map[*Client]bool

	// Only the newest pending snapshot matters, so the queue holds one.
	broadcast chan domain.Snapshot

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// mu protects clients and latest
	mu     sync.RWMutex
	latest *domain.Snapshot

	// done is closed when Run returns.
	done chan struct{}

	logger *slog.Logger
}

// Ensure Hub implements the SnapshotBroadcaster interface.
var _ ports.SnapshotBroadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		broadcast:  make(chan domain.Snapshot, 1),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// BroadcastSnapshot queues a snapshot for delivery. A snapshot still waiting
// in the queue is replaced by the newer one.
func (h *Hub) BroadcastSnapshot(snapshot domain.Snapshot) error {
	for {
		select {
		case h.broadcast <- snapshot:
			return nil
		default:
		}
		select {
		case dropped := <-h.broadcast:
			h.logger.Debug("superseded queued snapshot", "version", dropped.Version)
		default:
		}
	}
}

// Run starts the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case snapshot := <-h.broadcast:
			h.broadcastSnapshot(snapshot)
		}
	}
}

// registerClient adds a client to the hub and sends it the latest snapshot.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true
	latest := h.latest
	total := len(h.clients[client.UserID])
	h.mu.Unlock()

	h.logger.Info("client registered",
		"user_id", client.UserID,
		"total_connections", total,
	)

	if latest != nil {
		h.deliver(client, *latest)
	}
}

// unregisterClient removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if userClients, ok := h.clients[client.UserID]; ok {
		if _, exists := userClients[client]; exists {
			delete(userClients, client)
			if len(userClients) == 0 {
				delete(h.clients, client.UserID)
			}
		}
	}

	client.CloseSend()

	h.logger.Info("client unregistered",
		"user_id", client.UserID,
	)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, userClients := range h.clients {
		for client := range userClients {
			client.CloseSend()
		}
		delete(h.clients, userID)
	}
}

// broadcastSnapshot sends the snapshot to every client
func (h *Hub) broadcastSnapshot(snapshot domain.Snapshot) {
	h.mu.Lock()
	h.latest = &snapshot
	clients := h.clientList()
	h.mu.Unlock()

	h.logger.Debug("broadcasting snapshot",
		"version", snapshot.Version,
		"client_count", len(clients),
	)

	views := make(map[uuid.UUID]domain.Snapshot)
	for _, client := range clients {
		scope := client.Scope()
		if scope == nil {
			h.send(client, snapshot)
			continue
		}
		view, ok := views[*scope]
		if !ok {
			view = snapshot.ForTeam(*scope)
			views[*scope] = view
		}
		h.send(client, view)
	}
}

// resend pushes the latest snapshot again, used after a client changes team.
func (h *Hub) resend(client *Client) {
	h.mu.RLock()
	latest := h.latest
	h.mu.RUnlock()
	if latest != nil {
		h.deliver(client, *latest)
	}
}

func (h *Hub) deliver(client *Client, snapshot domain.Snapshot) {
	if scope := client.Scope(); scope != nil {
		snapshot = snapshot.ForTeam(*scope)
	}
	h.send(client, snapshot)
}

func (h *Hub) send(client *Client, snapshot domain.Snapshot) {
	event := domain.Event{Type: domain.EventAggregatesUpdated, Payload: snapshot}
	if !client.trySend(event) {
		// A client that fell SendBufferSize snapshots behind reconnects and
		// gets the latest one on attach.
		h.logger.Warn("client send buffer full, unregistering",
			"user_id", client.UserID,
		)
		h.unregisterClient(client)
	}
}

// Attach registers client with the running hub. It returns false once the
// hub has stopped.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Detach unregisters client unless the hub has already stopped.
func (h *Hub) Detach(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// clientList copies the client set; callers hold mu.
func (h *Hub) clientList() []*Client {
	clients := make([]*Client, 0)
	for _, userClients := range h.clients {
		for client := range userClients {
			clients = append(clients, client)
		}
	}
	return clients
}

// GetClientCount returns the total number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, userClients := range h.clients {
		count += len(userClients)
	}
	return count
}

// IsUserConnected checks if a user has any active connections
func (h *Hub) IsUserConnected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.clients[userID]
	return ok && len(clients) > 0
}
