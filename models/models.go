package models

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Conversation represents a message thread between a page and one customer.
// Its id is a pure function of (page id, sender id), so repeated webhook
// deliveries for the same pair always resolve to the same row.
type Conversation struct {
	ID              string    `bson:"_id" json:"id"`
	PageID          string    `bson:"page_id" json:"page_id"`
	CustomerID      string    `bson:"customer_id" json:"customer_id"`
	CustomerName    string    `bson:"customer_name" json:"customer_name"`
	CustomerAvatar  string    `bson:"customer_avatar" json:"customer_avatar"`
	LastMessage     string    `bson:"last_message" json:"last_message"`
	LastTimestamp   time.Time `bson:"last_timestamp" json:"last_timestamp"`
	Status          string    `bson:"status" json:"status"` // "OPEN" at creation, free-form after
	AssignedAgentID *string   `bson:"assigned_agent_id,omitempty" json:"assigned_agent_id,omitempty"`
	UnreadCount     int       `bson:"unread_count" json:"unread_count"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// Message represents a single message inside a conversation. Rows are
// immutable after insert.
type Message struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	SenderName     string    `bson:"sender_name" json:"sender_name"`
	Text           string    `bson:"text" json:"text"`
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`
	IsIncoming     bool      `bson:"is_incoming" json:"is_incoming"`
	IsRead         bool      `bson:"is_read" json:"is_read"`
}

// StatusOpen is the only status the ingestion path ever writes.
const StatusOpen = "OPEN"

// ConversationID derives the deterministic conversation id for a
// (page, sender) pair.
func ConversationID(pageID, senderID string) string {
	return fmt.Sprintf("conv-%s-%s", pageID, senderID)
}

// PageIDFromConversationID recovers the page id embedded in a deterministic
// conversation id. Page ids on the platform are numeric, so the first "-"
// after the prefix always ends the page segment. Returns "" for ids not
// produced by ConversationID.
func PageIDFromConversationID(conversationID string) string {
	rest, ok := strings.CutPrefix(conversationID, "conv-")
	if !ok {
		return ""
	}
	pageID, _, ok := strings.Cut(rest, "-")
	if !ok {
		return ""
	}
	return pageID
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewMessageID generates a message id from the current time plus a random
// base36 suffix. Collision-resistant for inbox volumes, not globally unique.
func NewMessageID() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}
	return fmt.Sprintf("msg-%d-%s", time.Now().UnixMilli(), suffix)
}

// NewInboundMessage builds the row for an inbound webhook event.
func NewInboundMessage(conversationID, senderID, text string) *Message {
	return &Message{
		ID:             NewMessageID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     FallbackName(senderID),
		Text:           text,
		Timestamp:      time.Now().UTC(),
		IsIncoming:     true,
		IsRead:         false,
	}
}

// FallbackName builds a display name from a truncated sender id, used until a
// real profile name is known.
func FallbackName(senderID string) string {
	return fmt.Sprintf("User %s", senderID[:min(8, len(senderID))])
}

// AvatarURL returns a placeholder avatar seeded by the sender id so the same
// customer always renders the same picture.
func AvatarURL(senderID string) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s/200", senderID)
}
