package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"fleetwatch-backend/internal/models"
)

// Engine is the slice of the monitor engine that viewer sessions use
type Engine interface {
	Dashboard(ctx context.Context, fleetID, viewerID string, onRouteOnly bool) (models.Dashboard, error)
	Dismiss(ctx context.Context, fleetID, viewerID string, kind models.AlertKind, unitName string) error
	DismissAll(ctx context.Context, fleetID, viewerID string, kind models.AlertKind) (int, error)
}

// Hub maintains viewer sessions and pushes dashboards to them
type Hub struct {
	// Registered clients (viewer ID -> Client)
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	engine Engine

	mu sync.RWMutex
}

// OutgoingMessage is every server-to-viewer frame
type OutgoingMessage struct {
	Type      string              `json:"type"`
	ViewerID  string              `json:"viewer_id,omitempty"`
	Fleet     string              `json:"fleet,omitempty"`
	Data      *models.Dashboard   `json:"data,omitempty"`
	Alert     *models.AlertNotice `json:"alert,omitempty"`
	Error     string              `json:"error,omitempty"`
	Count     int                 `json:"count,omitempty"`
	Timestamp string              `json:"timestamp,omitempty"`
}

func NewHub(engine Engine) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		engine:     engine,
	}
}

// Run starts the hub's main loop. Cancelling ctx disconnects every viewer.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, client := range h.clients {
				client.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				// same viewer reconnected; the newer session wins
				old.close()
			}
			h.clients[client.ID] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("✅ [WEBSOCKET] Viewer connected: %s (fleet %q, %d connected)", client.ID, client.Fleet(), total)

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.ID]; ok && current == client {
				delete(h.clients, client.ID)
				log.Printf("🔴 [WEBSOCKET] Viewer disconnected: %s (%d remaining)", client.ID, len(h.clients))
			}
			client.close()
			h.mu.Unlock()
		}
	}
}

// Register adds a viewer session. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.close()
	}
}

// BroadcastFleet renders and sends a dashboard to every viewer of the fleet
func (h *Hub) BroadcastFleet(ctx context.Context, fleetID string) {
	for _, client := range h.clientsFor(fleetID) {
		h.SendDashboard(ctx, client)
	}
}

// BroadcastAlert pushes a freshly raised alert to every viewer of its fleet
func (h *Hub) BroadcastAlert(notice models.AlertNotice) {
	for _, client := range h.clientsFor(notice.FleetID) {
		h.send(client, OutgoingMessage{Type: "alert", Fleet: notice.FleetID, Alert: &notice})
	}
}

// Notify lets the hub act as an alert notifier on a single replica
func (h *Hub) Notify(_ context.Context, notice models.AlertNotice) error {
	h.BroadcastAlert(notice)
	return nil
}

// SendDashboard renders the dashboard for one viewer's current subscription
func (h *Hub) SendDashboard(ctx context.Context, client *Client) {
	fleetID, onRoute := client.Subscription()
	d, err := h.engine.Dashboard(ctx, fleetID, client.ID, onRoute)
	if err != nil {
		log.Printf("❌ [WEBSOCKET] Dashboard for %s failed: %v", client.ID, err)
		h.send(client, OutgoingMessage{Type: "error", Fleet: fleetID, Error: "dashboard unavailable"})
		return
	}
	h.send(client, OutgoingMessage{Type: "dashboard", Fleet: fleetID, Data: &d})
}

func (h *Hub) send(client *Client, msg OutgoingMessage) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().Format(time.RFC3339)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("❌ Failed to marshal message: %v", err)
		return
	}
	if !client.enqueue(data) {
		log.Printf("⚠️ Viewer buffer full or closed, dropping %s for %s", msg.Type, client.ID)
	}
}

// clientsFor returns the viewers subscribed to fleetID
func (h *Hub) clientsFor(fleetID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.Fleet() == fleetID {
			out = append(out, c)
		}
	}
	return out
}

// GetClientCount returns the number of connected viewers
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ViewersByFleet counts connected viewers per subscribed fleet
func (h *Hub) ViewersByFleet() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	counts := make(map[string]int)
	for _, c := range h.clients {
		counts[c.Fleet()]++
	}
	return counts
}
