package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fleetwatch-backend/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024

	sendBuffer = 16
)

// Client is one viewer session. The viewer ID scopes dismissals when
// dismissals are per viewer.
type Client struct {
	ID     string
	UserID string
	conn   *websocket.Conn
	hub    *Hub

	mu      sync.Mutex
	fleet   string
	onRoute bool
	send    chan []byte
	closed  bool
}

// IncomingMessage represents a message from the viewer
type IncomingMessage struct {
	Type    string `json:"type"`
	Fleet   string `json:"fleet,omitempty"`
	OnRoute *bool  `json:"on_route,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Unit    string `json:"unit,omitempty"`
}

func NewClient(viewerID, userID, fleet string, onRoute bool, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:      viewerID,
		UserID:  userID,
		fleet:   fleet,
		onRoute: onRoute,
		conn:    conn,
		hub:     hub,
		send:    make(chan []byte, sendBuffer),
	}
}

func (c *Client) Fleet() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fleet
}

func (c *Client) Subscription() (fleet string, onRoute bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fleet, c.onRoute
}

func (c *Client) subscribe(fleet string, onRoute *bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fleet = fleet
	if onRoute != nil {
		c.onRoute = *onRoute
	}
}

// enqueue never blocks; it reports false when the buffer is full or the session closed
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads viewer messages until the connection drops
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Invalid message format: %v", err)
			continue
		}

		c.handle(ctx, msg)
	}
}

func (c *Client) handle(ctx context.Context, msg IncomingMessage) {
	switch msg.Type {
	case "ping":
		c.hub.send(c, OutgoingMessage{Type: "pong"})

	case "subscribe":
		c.subscribe(msg.Fleet, msg.OnRoute)
		c.hub.SendDashboard(ctx, c)

	case "dismiss":
		kind := models.AlertKind(msg.Kind)
		if err := c.hub.engine.Dismiss(ctx, c.Fleet(), c.ID, kind, msg.Unit); err != nil {
			c.hub.send(c, OutgoingMessage{Type: "error", Error: err.Error()})
			return
		}
		c.hub.BroadcastFleet(ctx, c.Fleet())

	case "dismiss_all":
		kind := models.AlertKind(msg.Kind)
		n, err := c.hub.engine.DismissAll(ctx, c.Fleet(), c.ID, kind)
		if err != nil {
			c.hub.send(c, OutgoingMessage{Type: "error", Error: err.Error()})
			return
		}
		c.hub.send(c, OutgoingMessage{Type: "dismissed", Fleet: c.Fleet(), Count: n})
		c.hub.BroadcastFleet(ctx, c.Fleet())

	default:
		c.hub.send(c, OutgoingMessage{Type: "error", Error: "unknown message type: " + msg.Type})
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
