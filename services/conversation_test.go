package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"messenger-inbox/models"
)

func conversationDoc(id, pageID string, lastTimestamp time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "page_id", Value: pageID},
		{Key: "customer_id", Value: "USER42"},
		{Key: "status", Value: models.StatusOpen},
		{Key: "last_timestamp", Value: primitive.NewDateTimeFromTime(lastTimestamp)},
		{Key: "unread_count", Value: 1},
	}
}

func TestUpsertInboundConversation(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sends atomic upsert with creation defaults", func(mt *mtest.T) {
		store := NewStore(mt.Client, "inbox_test")

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "conv-PAGE1-USER42"},
			{Key: "page_id", Value: "PAGE1"},
			{Key: "customer_id", Value: "USER42"},
			{Key: "customer_name", Value: "User USER42"},
			{Key: "status", Value: models.StatusOpen},
			{Key: "last_message", Value: "hi"},
			{Key: "last_timestamp", Value: primitive.NewDateTimeFromTime(time.Now().UTC())},
			{Key: "unread_count", Value: 1},
		}}))

		conversation, err := store.UpsertInboundConversation(context.Background(), "PAGE1", "USER42", "hi")
		require.NoError(mt, err)
		require.NotNil(mt, conversation)
		assert.Equal(mt, "conv-PAGE1-USER42", conversation.ID)
		assert.Equal(mt, models.StatusOpen, conversation.Status)
		assert.Equal(mt, 1, conversation.UnreadCount)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "findAndModify", evt.CommandName)

		cmd := evt.Command
		assert.Equal(mt, "conv-PAGE1-USER42", cmd.Lookup("query", "_id").StringValue())
		assert.True(mt, cmd.Lookup("upsert").Boolean())
		assert.True(mt, cmd.Lookup("new").Boolean())

		// Increment and last-message overwrite ride the same update document
		// as the creation defaults, so there is no read-modify-write window.
		inc, ok := cmd.Lookup("update", "$inc", "unread_count").AsInt64OK()
		require.True(mt, ok)
		assert.Equal(mt, int64(1), inc)
		assert.Equal(mt, "hi", cmd.Lookup("update", "$set", "last_message").StringValue())
		assert.Equal(mt, models.StatusOpen, cmd.Lookup("update", "$setOnInsert", "status").StringValue())
		assert.Equal(mt, "User USER42", cmd.Lookup("update", "$setOnInsert", "customer_name").StringValue())
		assert.Equal(mt, "https://picsum.photos/seed/USER42/200", cmd.Lookup("update", "$setOnInsert", "customer_avatar").StringValue())
		assert.Equal(mt, "PAGE1", cmd.Lookup("update", "$setOnInsert", "page_id").StringValue())
	})

	mt.Run("classifies missing namespace", func(mt *mtest.T) {
		store := NewStore(mt.Client, "inbox_test")

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 26, Name: "NamespaceNotFound", Message: "ns does not exist",
		}))

		_, err := store.UpsertInboundConversation(context.Background(), "PAGE1", "USER42", "hi")
		assert.ErrorIs(mt, err, ErrNotProvisioned)
	})
}

func TestListConversationsOrdered(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("queries newest-first with page filter", func(mt *mtest.T) {
		store := NewStore(mt.Client, "inbox_test")

		now := time.Now().UTC()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "inbox_test.conversations", mtest.FirstBatch,
			conversationDoc("conv-PAGE1-USER42", "PAGE1", now),
			conversationDoc("conv-PAGE1-USER43", "PAGE1", now.Add(-time.Hour)),
		))

		conversations, err := store.ListConversations(context.Background(), "PAGE1")
		require.NoError(mt, err)
		require.Len(mt, conversations, 2)
		assert.Equal(mt, "conv-PAGE1-USER42", conversations[0].ID)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "find", evt.CommandName)
		assert.Equal(mt, "PAGE1", evt.Command.Lookup("filter", "page_id").StringValue())

		sortDir, ok := evt.Command.Lookup("sort", "last_timestamp").AsInt64OK()
		require.True(mt, ok)
		assert.Equal(mt, int64(-1), sortDir)
	})
}

func TestListConversationsDegradeTiers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing collection degrades to empty list", func(mt *mtest.T) {
		store := NewStore(mt.Client, "inbox_test")

		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 26, Name: "NamespaceNotFound", Message: "ns does not exist",
		}))

		conversations, err := store.ListConversations(context.Background(), "PAGE1")
		require.NoError(mt, err)
		assert.Empty(mt, conversations)
		assert.NotNil(mt, conversations)
	})

	mt.Run("ordered failure falls back to unordered and resorts", func(mt *mtest.T) {
		store := NewStore(mt.Client, "inbox_test")

		now := time.Now().UTC()
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code: 2, Name: "BadValue", Message: "cannot sort",
			}),
			mtest.CreateCursorResponse(0, "inbox_test.conversations", mtest.FirstBatch,
				conversationDoc("conv-PAGE1-OLD", "PAGE1", now.Add(-time.Hour)),
				conversationDoc("conv-PAGE1-NEW", "PAGE1", now),
			),
		)

		conversations, err := store.ListConversations(context.Background(), "PAGE1")
		require.NoError(mt, err)
		require.Len(mt, conversations, 2)
		// Newest-first even though the store returned the rows unordered
		assert.Equal(mt, "conv-PAGE1-NEW", conversations[0].ID)
		assert.Equal(mt, "conv-PAGE1-OLD", conversations[1].ID)
	})

	mt.Run("missing collection on the unordered retry degrades too", func(mt *mtest.T) {
		store := NewStore(mt.Client, "inbox_test")

		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code: 2, Name: "BadValue", Message: "cannot sort",
			}),
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code: 26, Name: "NamespaceNotFound", Message: "ns does not exist",
			}),
		)

		conversations, err := store.ListConversations(context.Background(), "")
		require.NoError(mt, err)
		assert.Empty(mt, conversations)
	})

	mt.Run("unexpected error propagates", func(mt *mtest.T) {
		store := NewStore(mt.Client, "inbox_test")

		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code: 11601, Name: "Interrupted", Message: "interrupted",
			}),
			mtest.CreateCommandErrorResponse(mtest.CommandError{
				Code: 11601, Name: "Interrupted", Message: "interrupted",
			}),
		)

		_, err := store.ListConversations(context.Background(), "")
		require.Error(mt, err)
		assert.False(mt, IsNotProvisioned(err))
	})
}

func TestUpdateConversationStripsIdentifiers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("patch never rewrites the id", func(mt *mtest.T) {
		store := NewStore(mt.Client, "inbox_test")

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "conv-PAGE1-USER42"},
			{Key: "page_id", Value: "PAGE1"},
			{Key: "status", Value: "CLOSED"},
		}}))

		conversation, err := store.UpdateConversation(context.Background(), "conv-PAGE1-USER42", map[string]interface{}{
			"status": "CLOSED",
			"id":     "evil",
			"_id":    "evil",
		})
		require.NoError(mt, err)
		require.NotNil(mt, conversation)
		assert.Equal(mt, "CLOSED", conversation.Status)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		setDoc := evt.Command.Lookup("update", "$set").Document()
		assert.Equal(mt, "CLOSED", setDoc.Lookup("status").StringValue())
		assert.Nil(mt, setDoc.Lookup("id").Value)
		assert.Nil(mt, setDoc.Lookup("_id").Value)
	})
}
