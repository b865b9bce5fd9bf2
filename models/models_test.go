package models

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationIDIsDeterministic(t *testing.T) {
	first := ConversationID("PAGE1", "USER42")
	second := ConversationID("PAGE1", "USER42")

	assert.Equal(t, "conv-PAGE1-USER42", first)
	assert.Equal(t, first, second)
}

func TestConversationIDVariesByPair(t *testing.T) {
	assert.NotEqual(t, ConversationID("PAGE1", "USER42"), ConversationID("PAGE2", "USER42"))
	assert.NotEqual(t, ConversationID("PAGE1", "USER42"), ConversationID("PAGE1", "USER43"))
}

func TestPageIDFromConversationID(t *testing.T) {
	assert.Equal(t, "PAGE1", PageIDFromConversationID(ConversationID("PAGE1", "USER42")))
	// Sender ids may contain dashes without disturbing the page segment
	assert.Equal(t, "1234567890", PageIDFromConversationID(ConversationID("1234567890", "user-42")))
	assert.Equal(t, "", PageIDFromConversationID("not-a-conversation-id"))
	assert.Equal(t, "", PageIDFromConversationID("conv-onlyonesegment"))
}

func TestNewMessageIDFormat(t *testing.T) {
	id := NewMessageID()
	assert.Regexp(t, regexp.MustCompile(`^msg-\d+-[0-9a-z]{9}$`), id)
}

func TestNewMessageIDCollisionResistance(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewMessageID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestFallbackName(t *testing.T) {
	assert.Equal(t, "User 12345678", FallbackName("123456789012"))
	// Short sender ids must not panic
	assert.Equal(t, "User abc", FallbackName("abc"))
}

func TestAvatarURLSeededBySender(t *testing.T) {
	assert.Equal(t, "https://picsum.photos/seed/USER42/200", AvatarURL("USER42"))
}

func TestNewInboundMessageDefaults(t *testing.T) {
	msg := NewInboundMessage("conv-PAGE1-USER42", "USER42", "hi")

	assert.Equal(t, "conv-PAGE1-USER42", msg.ConversationID)
	assert.Equal(t, "USER42", msg.SenderID)
	assert.Equal(t, "User USER42", msg.SenderName)
	assert.Equal(t, "hi", msg.Text)
	assert.True(t, msg.IsIncoming)
	assert.False(t, msg.IsRead)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}
