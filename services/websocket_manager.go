package services

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Change-feed event types pushed to subscribed clients.
const (
	EventConversationCreated = "conversation.created"
	EventConversationUpdated = "conversation.updated"
	EventConversationDeleted = "conversation.deleted"
	EventMessageCreated      = "message.created"
)

// Hub fans change-feed events out to WebSocket subscribers. Connections are
// grouped by the page they watch; an empty page id subscribes to everything.
type Hub struct {
	// Map of page ID to map of connection ID to connection
	connections map[string]map[string]*Subscriber
	mu          sync.RWMutex
	broadcast   chan ChangeEvent
}

// Subscriber represents a single WebSocket connection
type Subscriber struct {
	Conn   *websocket.Conn
	ID     string
	PageID string
	Send   chan []byte
}

// ChangeEvent is a row-level change published to the feed.
type ChangeEvent struct {
	Type   string      `json:"type"`
	PageID string      `json:"-"`
	Data   interface{} `json:"data"`
}

type eventPayload struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// NewHub creates the hub and starts its broadcast loop.
func NewHub() *Hub {
	h := &Hub{
		connections: make(map[string]map[string]*Subscriber),
		broadcast:   make(chan ChangeEvent, 100),
	}
	go h.run()
	return h
}

// Register adds a subscriber to the hub.
func (h *Hub) Register(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[sub.PageID] == nil {
		h.connections[sub.PageID] = make(map[string]*Subscriber)
	}
	h.connections[sub.PageID][sub.ID] = sub

	slog.Info("Change-feed subscriber registered",
		"connectionID", sub.ID,
		"pageID", sub.PageID,
		"totalForPage", len(h.connections[sub.PageID]))
}

// Unregister removes a subscriber and closes its send channel.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if pageConns, exists := h.connections[sub.PageID]; exists {
		if _, exists := pageConns[sub.ID]; exists {
			close(sub.Send)
			delete(pageConns, sub.ID)

			slog.Info("Change-feed subscriber unregistered",
				"connectionID", sub.ID,
				"pageID", sub.PageID,
				"remainingForPage", len(pageConns))

			// Clean up empty page map
			if len(pageConns) == 0 {
				delete(h.connections, sub.PageID)
			}
		}
	}
}

// Publish queues an event for delivery to matching subscribers.
func (h *Hub) Publish(event ChangeEvent) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("Change-feed broadcast buffer full, dropping event", "type", event.Type)
	}
}

// run delivers queued events to subscribers of the event's page and to
// wildcard subscribers.
func (h *Hub) run() {
	for event := range h.broadcast {
		payload, err := json.Marshal(eventPayload{
			Type:      event.Type,
			Data:      event.Data,
			Timestamp: time.Now().UnixMilli(),
		})
		if err != nil {
			slog.Error("Failed to marshal change event", "error", err, "type", event.Type)
			continue
		}

		// The lock is held across the sends so Unregister cannot close a
		// channel mid-delivery; the non-blocking send keeps slow consumers
		// from stalling the feed while the lock is held.
		h.mu.RLock()
		for _, sub := range h.connections[event.PageID] {
			h.deliver(sub, payload, event.Type)
		}
		if event.PageID != "" {
			for _, sub := range h.connections[""] {
				h.deliver(sub, payload, event.Type)
			}
		}
		h.mu.RUnlock()
	}
}

// deliver hands a payload to one subscriber without blocking. Callers must
// hold at least the read lock.
func (h *Hub) deliver(sub *Subscriber, payload []byte, eventType string) {
	select {
	case sub.Send <- payload:
	default:
		// Slow consumer, skip rather than block the feed
		slog.Warn("Subscriber buffer full, dropping event",
			"connectionID", sub.ID,
			"type", eventType)
	}
}

// SubscriberCount returns the number of active subscribers for a page.
func (h *Hub) SubscriberCount(pageID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[pageID])
}
