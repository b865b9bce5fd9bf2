package webhooks

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"messenger-inbox/models"
)

// InboxStore is the slice of the store the webhook receiver needs.
type InboxStore interface {
	UpsertInboundConversation(ctx context.Context, pageID, senderID, text string) (*models.Conversation, error)
	InsertMessage(ctx context.Context, message *models.Message) error
}

// Handler receives the Messenger platform's verification handshake and event
// deliveries.
type Handler struct {
	store       InboxStore
	verifyToken string
}

func NewHandler(store InboxStore, verifyToken string) *Handler {
	return &Handler{
		store:       store,
		verifyToken: verifyToken,
	}
}

// RegisterRoutes mounts the webhook endpoints. The /api/webhook alias matches
// the path the platform was originally subscribed with.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	for _, path := range []string{"/webhook", "/api/webhook"} {
		app.Get(path, h.Verify)
		app.Post(path, h.HandleEvent)
	}
}

// Verify handles the platform's one-time handshake: echo the challenge when
// the mode and pre-shared token match, 403 otherwise.
func (h *Handler) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		slog.Info("Webhook verified successfully")
		return c.SendString(challenge)
	}

	slog.Warn("Webhook verification failed", "mode", mode)
	return c.Status(fiber.StatusForbidden).SendString("Verification failed")
}

// HandleEvent processes an event delivery. Unparseable bodies and non-page
// objects are acknowledged with 200 so the platform does not retry them; only
// persistence failures return 500, which the platform retries.
func (h *Handler) HandleEvent(c *fiber.Ctx) error {
	var body WebhookEvent
	if err := c.BodyParser(&body); err != nil {
		slog.Warn("Ignoring unparseable webhook body", "error", err)
		return c.SendString("EVENT_RECEIVED")
	}

	// Only page events carry messaging entries
	if body.Object != "page" {
		slog.Info("Ignoring non-page webhook event", "object", body.Object)
		return c.SendString("EVENT_RECEIVED")
	}

	for _, entry := range body.Entry {
		pageID := entry.ID

		for _, messaging := range entry.Messaging {
			if messaging.Message == nil || messaging.Message.Text == "" {
				continue
			}

			if err := h.recordInbound(c.Context(), pageID, messaging.Sender.ID, messaging.Message.Text); err != nil {
				return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
			}
		}
	}

	return c.SendString("EVENT_RECEIVED")
}

// recordInbound upserts the conversation for the (page, sender) pair and
// appends the message row. The two writes are not transactional: if the
// message insert fails after the conversation upsert, the 500 response makes
// the platform redeliver and the idempotent conversation id converges the
// conversation row.
func (h *Handler) recordInbound(ctx context.Context, pageID, senderID, text string) error {
	conversation, err := h.store.UpsertInboundConversation(ctx, pageID, senderID, text)
	if err != nil {
		slog.Error("Failed to upsert conversation",
			"pageID", pageID,
			"senderID", senderID,
			"error", err)
		return err
	}

	message := models.NewInboundMessage(conversation.ID, senderID, text)
	if err := h.store.InsertMessage(ctx, message); err != nil {
		slog.Error("Failed to insert inbound message",
			"conversationID", conversation.ID,
			"messageID", message.ID,
			"error", err)
		return err
	}

	slog.Info("Inbound message recorded",
		"conversationID", conversation.ID,
		"messageID", message.ID,
		"unreadCount", conversation.UnreadCount)

	return nil
}
