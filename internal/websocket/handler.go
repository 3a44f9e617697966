package websocket

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fleetwatch-backend/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades a dashboard viewer to a live session.
// Query parameters: fleet, on_route, viewer (a previously issued viewer id)
// and an optional token identifying a logged-in user.
func HandleWebSocket(hub *Hub, auth *middleware.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var userID string
		if tokenString := q.Get("token"); tokenString != "" {
			claims, err := auth.ParseToken(tokenString)
			if err != nil {
				log.Printf("❌ Invalid token in query parameter: %v", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			userID = claims.UserID
		}

		viewerID := q.Get("viewer")
		if _, err := uuid.Parse(viewerID); err != nil {
			viewerID = uuid.New().String()
		}
		onRoute, _ := strconv.ParseBool(q.Get("on_route"))
		fleet := q.Get("fleet")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(viewerID, userID, fleet, onRoute, conn, hub)
		if !hub.Register(client) {
			conn.Close()
			return
		}

		go client.WritePump()

		ctx := context.Background()
		hub.send(client, OutgoingMessage{Type: "welcome", ViewerID: viewerID, Fleet: fleet})
		hub.SendDashboard(ctx, client)

		go client.ReadPump(ctx)
	}
}
