package handlers

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"messenger-inbox/models"
	"messenger-inbox/services"
)

// SendMessageRequest is the POST /api/messages body.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName"`
	Text           string `json:"text"`
	IsIncoming     bool   `json:"isIncoming"`
}

// SendMessage records an outbound (or, for integrations, inbound) message and
// best-effort refreshes the parent conversation's last-message fields.
func (h *InboxHandler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ConversationID == "" || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required fields",
		})
	}

	// Default to the generic agent identity
	senderID := req.SenderID
	if senderID == "" {
		senderID = "agent"
	}
	senderName := req.SenderName
	if senderName == "" {
		senderName = "Agent"
	}

	message := &models.Message{
		ID:             models.NewMessageID(),
		ConversationID: req.ConversationID,
		SenderID:       senderID,
		SenderName:     senderName,
		Text:           req.Text,
		Timestamp:      time.Now().UTC(),
		IsIncoming:     req.IsIncoming,
		IsRead:         !req.IsIncoming,
	}

	if err := h.store.InsertMessage(c.Context(), message); err != nil {
		if services.IsNotProvisioned(err) {
			slog.Warn("Messages collection not provisioned, simulating send",
				"conversationID", req.ConversationID)
			return c.JSON(fiber.Map{
				"id":              message.ID,
				"conversation_id": message.ConversationID,
				"sender_id":       message.SenderID,
				"sender_name":     message.SenderName,
				"text":            message.Text,
				"timestamp":       message.Timestamp,
				"is_incoming":     message.IsIncoming,
				"is_read":         message.IsRead,
				"simulated":       true,
				"message":         "Store not provisioned, message simulated",
			})
		}

		slog.Error("Failed to insert message",
			"conversationID", req.ConversationID,
			"error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send message",
		})
	}

	// The send itself succeeded; a stale last-message pointer is tolerable.
	if err := h.store.TouchConversation(c.Context(), req.ConversationID, req.Text, message.Timestamp); err != nil {
		slog.Warn("Could not update conversation last message",
			"conversationID", req.ConversationID,
			"error", err)
	}

	return c.JSON(message)
}
