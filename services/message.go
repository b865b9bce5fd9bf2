package services

import (
	"context"
	"log/slog"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"messenger-inbox/models"
)

// InsertMessage appends a message row. Messages are immutable after insert.
func (s *Store) InsertMessage(ctx context.Context, message *models.Message) error {
	if _, err := s.messages.InsertOne(ctx, message); err != nil {
		slog.Error("Failed to insert message",
			"messageID", message.ID,
			"conversationID", message.ConversationID,
			"error", err)
		return classifyStoreErr(err)
	}

	return nil
}

// ListMessages returns all messages for a conversation, oldest first. An
// unprovisioned collection degrades to an empty list; if the store cannot
// sort, the rows are resorted in memory.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	findOptions := options.Find().SetSort(bson.M{"timestamp": 1})

	cursor, err := s.messages.Find(ctx, filter, findOptions)
	if err != nil {
		if IsNotProvisioned(err) {
			slog.Warn("Messages collection not provisioned, returning empty list")
			return []models.Message{}, nil
		}

		slog.Warn("Sorted message query failed, retrying unsorted", "error", err)
		cursor, err = s.messages.Find(ctx, filter)
		if err != nil {
			if IsNotProvisioned(err) {
				return []models.Message{}, nil
			}
			return nil, classifyStoreErr(err)
		}
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		if IsNotProvisioned(err) {
			return []models.Message{}, nil
		}
		return nil, classifyStoreErr(err)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	return messages, nil
}
