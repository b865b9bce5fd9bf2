package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"messenger-inbox/models"
)

// UpsertInboundConversation records an inbound message against the
// conversation for (pageID, senderID), creating the row on first contact.
// The unread counter is incremented with a store-side $inc in the same
// operation as the last-message overwrite, so concurrent deliveries for the
// same conversation cannot lose increments.
func (s *Store) UpsertInboundConversation(ctx context.Context, pageID, senderID, text string) (*models.Conversation, error) {
	now := time.Now().UTC()
	conversationID := models.ConversationID(pageID, senderID)

	filter := bson.M{"_id": conversationID}
	update := bson.M{
		"$set": bson.M{
			"last_message":   text,
			"last_timestamp": now,
			"updated_at":     now,
		},
		"$inc": bson.M{
			"unread_count": 1,
		},
		"$setOnInsert": bson.M{
			"page_id":         pageID,
			"customer_id":     senderID,
			"customer_name":   models.FallbackName(senderID),
			"customer_avatar": models.AvatarURL(senderID),
			"status":          models.StatusOpen,
			"created_at":      now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var conversation models.Conversation
	if err := s.conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conversation); err != nil {
		slog.Error("Failed to upsert conversation",
			"conversationID", conversationID,
			"pageID", pageID,
			"error", err)
		return nil, classifyStoreErr(err)
	}

	if conversation.UnreadCount == 1 {
		slog.Info("New conversation created",
			"conversationID", conversationID,
			"pageID", pageID,
			"customerID", senderID)
	}

	return &conversation, nil
}

// GetConversation retrieves a conversation by its id.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conversation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Conversation not found
		}
		return nil, classifyStoreErr(err)
	}

	return &conversation, nil
}

// ListConversations returns conversations, newest activity first, optionally
// filtered by page. The query degrades in tiers: ordered, then unordered if
// the ordered query fails, then an empty list when the collection has not
// been provisioned at all.
func (s *Store) ListConversations(ctx context.Context, pageID string) ([]models.Conversation, error) {
	filter := bson.M{}
	if pageID != "" {
		filter["page_id"] = pageID
	}

	findOptions := options.Find().SetSort(bson.M{"last_timestamp": -1})

	conversations, err := s.findConversations(ctx, filter, findOptions)
	if err == nil {
		return conversations, nil
	}
	if IsNotProvisioned(err) {
		slog.Warn("Conversations collection not provisioned, returning empty list")
		return []models.Conversation{}, nil
	}

	slog.Warn("Ordered conversation query failed, retrying unordered", "error", err)
	conversations, err = s.findConversations(ctx, filter, options.Find())
	if err != nil {
		if IsNotProvisioned(err) {
			return []models.Conversation{}, nil
		}
		return nil, err
	}

	// Keep newest-first ordering even when the store could not sort.
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastTimestamp.After(conversations[j].LastTimestamp)
	})

	return conversations, nil
}

func (s *Store) findConversations(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Conversation, error) {
	cursor, err := s.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, classifyStoreErr(err)
	}
	defer cursor.Close(ctx)

	conversations := []models.Conversation{}
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, classifyStoreErr(err)
	}

	return conversations, nil
}

// UpdateConversation applies a partial patch to a conversation and returns
// the updated row. Identifier fields are stripped from the patch; everything
// else is caller-controlled. Returns (nil, nil) when no such conversation
// exists.
func (s *Store) UpdateConversation(ctx context.Context, conversationID string, patch map[string]interface{}) (*models.Conversation, error) {
	fields := bson.M{}
	for key, value := range patch {
		if key == "id" || key == "_id" {
			continue
		}
		fields[key] = value
	}
	fields["updated_at"] = time.Now().UTC()

	update := bson.M{"$set": fields}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conversation models.Conversation
	err := s.conversations.FindOneAndUpdate(ctx, bson.M{"_id": conversationID}, update, opts).Decode(&conversation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Conversation not found
		}
		slog.Error("Failed to update conversation",
			"conversationID", conversationID,
			"error", err)
		return nil, classifyStoreErr(err)
	}

	return &conversation, nil
}

// TouchConversation overwrites the last-message fields after an outbound
// send. Callers treat failures as non-fatal.
func (s *Store) TouchConversation(ctx context.Context, conversationID, lastMessage string, ts time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"last_message":   lastMessage,
			"last_timestamp": ts,
			"updated_at":     time.Now().UTC(),
		},
	}

	result, err := s.conversations.UpdateOne(ctx, bson.M{"_id": conversationID}, update)
	if err != nil {
		return classifyStoreErr(err)
	}

	if result.MatchedCount == 0 {
		slog.Warn("No conversation found to touch", "conversationID", conversationID)
	}

	return nil
}
