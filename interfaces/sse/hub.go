// Package sse implements the change bus: a per-user registry of long-lived
// push connections and ordered fan-out of mutation events over Server-Sent
// Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/events"
	"github.com/teamthinqers/thinkersweb-backend-sub006/pkg/observability"
)

const (
	registerQueueSize  = 100
	broadcastQueueSize = 1000

	// DefaultHeartbeatInterval paces the heartbeat event clients use to
	// detect dead connections.
	DefaultHeartbeatInterval = 30 * time.Second
)

// Hub maintains active push connections and broadcasts events to users. All
// registry mutations and broadcasts flow through a single event loop, which
// gives each user's connections in-order delivery.
type Hub struct {
	// User connections - one user can have multiple connections
	connections map[string]map[*Client]bool
	mu          sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	heartbeatInterval time.Duration
	logger            *zap.Logger
	done              chan struct{}
}

type broadcastMessage struct {
	userID    string
	eventType string
	frame     []byte
}

// NewHub creates a new hub. A non-positive heartbeat interval falls back to
// the default.
func NewHub(logger *zap.Logger, heartbeatInterval time.Duration) *Hub {
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	return &Hub{
		connections:       make(map[string]map[*Client]bool),
		register:          make(chan *Client, registerQueueSize),
		unregister:        make(chan *Client, registerQueueSize),
		broadcast:         make(chan *broadcastMessage, broadcastQueueSize),
		heartbeatInterval: heartbeatInterval,
		logger:            logger,
		done:              make(chan struct{}),
	}
}

// Run starts the hub's event loop and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAllConnections()
			close(h.done)
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToUser(message)

		case <-ticker.C:
			h.sendHeartbeats()
		}
	}
}

// Register adds a client connection to the fan-out registry.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client connection. Safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish implements ports.EventPublisher. The event is queued for the hub
// loop and fanned out to every connection of the user; a full queue drops the
// event rather than blocking the mutation path.
func (h *Hub) Publish(ctx context.Context, userID, eventType string, payload interface{}) error {
	frame, err := formatFrame(eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	message := &broadcastMessage{userID: userID, eventType: eventType, frame: frame}
	select {
	case h.broadcast <- message:
		observability.EventsPublished.WithLabelValues(eventType).Inc()
		return nil
	default:
		observability.EventsDropped.Inc()
		return fmt.Errorf("broadcast queue full, event dropped: %s", eventType)
	}
}

// ConnectionCount returns the number of active connections for a user.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[client.userID] == nil {
		h.connections[client.userID] = make(map[*Client]bool)
	}
	h.connections[client.userID][client] = true
	observability.ActiveConnections.Inc()

	h.logger.Info("Client registered",
		zap.String("userID", client.userID),
		zap.String("connectionID", client.id),
		zap.Int("userConnections", len(h.connections[client.userID])),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.connections[client.userID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.connections, client.userID)
	}
	observability.ActiveConnections.Dec()

	h.logger.Info("Client unregistered",
		zap.String("userID", client.userID),
		zap.String("connectionID", client.id),
		zap.Int("remainingConnections", len(clients)),
	)
}

func (h *Hub) broadcastToUser(message *broadcastMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.connections[message.userID]))
	for client := range h.connections[message.userID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		h.logger.Debug("No active connections for user",
			zap.String("userID", message.userID),
			zap.String("eventType", message.eventType),
		)
		return
	}

	for _, client := range clients {
		select {
		case client.send <- message.frame:
		default:
			// Client cannot keep up, evict it
			observability.EventsDropped.Inc()
			h.logger.Warn("Evicting slow client",
				zap.String("userID", client.userID),
				zap.String("connectionID", client.id),
			)
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) sendHeartbeats() {
	frame, err := formatFrame(events.EventHeartbeat, events.HeartbeatPayload{Timestamp: time.Now()})
	if err != nil {
		return
	}

	h.mu.RLock()
	stale := make([]*Client, 0)
	for _, clients := range h.connections {
		for client := range clients {
			select {
			case client.send <- frame:
			default:
				stale = append(stale, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Warn("Evicting client that missed a heartbeat",
			zap.String("userID", client.userID),
			zap.String("connectionID", client.id),
		)
		h.unregisterClient(client)
	}
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, clients := range h.connections {
		for client := range clients {
			close(client.send)
			observability.ActiveConnections.Dec()
		}
		delete(h.connections, userID)
	}
	h.logger.Info("All connections closed")
}

// formatFrame renders one named SSE event with a JSON payload.
func formatFrame(eventType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)), nil
}
