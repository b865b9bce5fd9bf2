package handlers

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"messenger-inbox/services"
)

const (
	// pingInterval must stay below pongWait so a live peer always refreshes
	// its read deadline in time.
	pingInterval = 54 * time.Second
	pongWait     = 70 * time.Second
	writeWait    = 10 * time.Second
)

// WebSocketUpgrade upgrades HTTP connection to WebSocket
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("page_id", c.Query("pageId"))
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleWebSocket attaches a client to the change feed. An empty pageId
// subscribes to changes for every page.
func HandleWebSocket(hub *services.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		pageID, _ := c.Locals("page_id").(string)

		sub := &services.Subscriber{
			Conn:   c,
			ID:     uuid.New().String(),
			PageID: pageID,
			Send:   make(chan []byte, 256),
		}

		hub.Register(sub)
		defer hub.Unregister(sub)

		slog.Info("Change-feed connection established",
			"connectionID", sub.ID,
			"pageID", pageID)

		// Send initial connection success message
		welcomeMsg := map[string]interface{}{
			"type":          "connected",
			"connection_id": sub.ID,
		}
		if welcomeData, err := json.Marshal(welcomeMsg); err == nil {
			c.WriteMessage(websocket.TextMessage, welcomeData)
		}

		go websocketSend(sub)
		websocketReceive(sub)
	}
}

// websocketSend pushes hub events to the client and keeps the connection
// alive with pings.
func websocketSend(sub *services.Subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		sub.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-sub.Send:
			sub.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed
				sub.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := sub.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Error("Failed to write WebSocket message", "error", err)
				return
			}

		case <-ticker.C:
			sub.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readDeadlineConn is the slice of the connection the deadline setup needs.
type readDeadlineConn interface {
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// armReadDeadline bounds reads so a silently dead peer fails the read loop
// instead of lingering until a write; each pong answering the ping ticker
// pushes the deadline out again.
func armReadDeadline(conn readDeadlineConn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// websocketReceive drains the client until it disconnects. The feed is
// one-way; inbound frames are ignored.
func websocketReceive(sub *services.Subscriber) {
	defer sub.Conn.Close()

	armReadDeadline(sub.Conn)

	for {
		if _, _, err := sub.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket closed unexpectedly", "connectionID", sub.ID, "error", err)
			}
			return
		}
	}
}
