package services

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"messenger-inbox/models"
)

// WatchChanges tails change streams on both collections and publishes
// row-level events to the hub, so UI clients observe inserts and updates
// without polling the REST surface. Startup is best-effort: standalone Mongo
// deployments do not support change streams, and the REST surface works
// without the feed.
func (s *Store) WatchChanges(ctx context.Context, hub *Hub) {
	go s.watchConversations(ctx, hub)
	go s.watchMessages(ctx, hub)
}

func (s *Store) watchConversations(ctx context.Context, hub *Hub) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := s.conversations.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		slog.Warn("Conversation change stream unavailable, live updates disabled",
			"error", err)
		return
	}
	defer stream.Close(ctx)

	for stream.Next(ctx) {
		var change struct {
			OperationType string               `bson:"operationType"`
			FullDocument  *models.Conversation `bson:"fullDocument"`
			DocumentKey   struct {
				ID string `bson:"_id"`
			} `bson:"documentKey"`
		}
		if err := stream.Decode(&change); err != nil {
			slog.Error("Failed to decode conversation change", "error", err)
			continue
		}

		switch change.OperationType {
		case "insert":
			hub.Publish(ChangeEvent{
				Type:   EventConversationCreated,
				PageID: change.FullDocument.PageID,
				Data:   change.FullDocument,
			})
		case "update", "replace":
			if change.FullDocument == nil {
				continue
			}
			hub.Publish(ChangeEvent{
				Type:   EventConversationUpdated,
				PageID: change.FullDocument.PageID,
				Data:   change.FullDocument,
			})
		case "delete":
			// Deletes carry no full document; the page is recovered from
			// the deterministic id so page-scoped subscribers see them too.
			hub.Publish(ChangeEvent{
				Type:   EventConversationDeleted,
				PageID: models.PageIDFromConversationID(change.DocumentKey.ID),
				Data:   bson.M{"id": change.DocumentKey.ID},
			})
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		slog.Error("Conversation change stream closed", "error", err)
	}
}

func (s *Store) watchMessages(ctx context.Context, hub *Hub) {
	// Messages are immutable, only inserts matter.
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"operationType": "insert"}}},
	}

	stream, err := s.messages.Watch(ctx, pipeline)
	if err != nil {
		slog.Warn("Message change stream unavailable, live updates disabled",
			"error", err)
		return
	}
	defer stream.Close(ctx)

	for stream.Next(ctx) {
		var change struct {
			FullDocument *models.Message `bson:"fullDocument"`
		}
		if err := stream.Decode(&change); err != nil {
			slog.Error("Failed to decode message change", "error", err)
			continue
		}
		if change.FullDocument == nil {
			continue
		}

		// Messages do not carry a page id; route through the owning
		// conversation's deterministic id instead.
		hub.Publish(ChangeEvent{
			Type:   EventMessageCreated,
			PageID: s.conversationPageID(ctx, change.FullDocument.ConversationID),
			Data:   change.FullDocument,
		})
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		slog.Error("Message change stream closed", "error", err)
	}
}

func (s *Store) conversationPageID(ctx context.Context, conversationID string) string {
	conversation, err := s.GetConversation(ctx, conversationID)
	if err != nil || conversation == nil {
		return ""
	}
	return conversation.PageID
}
