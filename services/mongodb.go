package services

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

// Store is the typed accessor over the backing database. It is constructed
// once in main and handed to every consumer, replacing any lazily-initialized
// global handle.
type Store struct {
	db            *mongo.Database
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// InitMongoDB initializes the MongoDB connection
func InitMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	slog.Info("Connected to MongoDB")
	return client, nil
}

// NewStore wraps a connected client into the typed store.
func NewStore(client *mongo.Client, databaseName string) *Store {
	db := client.Database(databaseName)
	return &Store{
		db:            db,
		conversations: db.Collection(conversationsCollection),
		messages:      db.Collection(messagesCollection),
	}
}

// EnsureIndexes provisions the indexes both collections rely on. The schema is
// created explicitly at startup instead of being inferred from errors at every
// call site.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"page_id": 1}},
		{Keys: bson.M{"last_timestamp": -1}},
	})
	if err != nil {
		return err
	}

	_, err = s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "timestamp", Value: 1},
		}},
		{Keys: bson.M{"sender_id": 1}},
	})
	return err
}
