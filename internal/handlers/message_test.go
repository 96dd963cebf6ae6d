package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/config"
	"github.com/pushp314/converse-backend/internal/database"
	"github.com/pushp314/converse-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func sendTestMessage(t *testing.T, conversationId, senderId, content string) models.Message {
	t.Helper()
	w, c := newTestContext(t, "POST", "/api/chat/conversations/"+conversationId+"/messages",
		map[string]string{"content": content}, senderId,
		gin.Params{{Key: "id", Value: conversationId}})
	SendMessage(c)
	if w.Code != http.StatusOK {
		t.Fatalf("send failed with status %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message models.Message `json:"message"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Message
}

func listTestMessages(t *testing.T, conversationId, userId string) ([]map[string]interface{}, int) {
	t.Helper()
	w, c := newTestContext(t, "GET", "/api/chat/conversations/"+conversationId+"/messages",
		nil, userId, gin.Params{{Key: "id", Value: conversationId}})
	ListMessages(c)

	var resp struct {
		Messages []map[string]interface{} `json:"messages"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Messages, w.Code
}

func TestSendMessage_SideEffects(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	a := createTestUser(t, "send_a", "Alice Send")
	b := createTestUser(t, "send_b", "Bob Send")
	conv := createTestConversation(t, false, a.ID, b.ID)

	// A typing indicator that the send must clear
	database.DB.Create(&models.TypingIndicator{
		ConversationID: conv.ID,
		UserID:         a.ID,
		ExpiresAt:      time.Now().Add(time.Minute),
	})

	before := time.Now().Add(-time.Second)
	msg := sendTestMessage(t, conv.ID, a.ID, "Hello there")

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "Hello there", msg.Content)
	assert.Equal(t, models.MessageTypeText, msg.Type)
	assert.Equal(t, a.ID, msg.SenderID)

	// lastMessageTime advanced with the send
	var fresh models.Conversation
	database.DB.First(&fresh, "id = ?", conv.ID)
	assert.True(t, fresh.LastMessageTime.After(before))

	// Sender's typing indicator gone
	var typing int64
	database.DB.Model(&models.TypingIndicator{}).
		Where("conversation_id = ? AND user_id = ?", conv.ID, a.ID).
		Count(&typing)
	assert.Equal(t, int64(0), typing)
}

func TestSendMessage_Guards(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	a := createTestUser(t, "sg_a", "Alice Guard")
	b := createTestUser(t, "sg_b", "Bob Guard")
	outsider := createTestUser(t, "sg_c", "Eve Guard")
	conv := createTestConversation(t, false, a.ID, b.ID)
	params := gin.Params{{Key: "id", Value: conv.ID}}

	// Anonymous
	w, c := newTestContext(t, "POST", "/x", map[string]string{"content": "hi"}, "", params)
	SendMessage(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Missing conversation
	w, c = newTestContext(t, "POST", "/x", map[string]string{"content": "hi"}, a.ID,
		gin.Params{{Key: "id", Value: "missing"}})
	SendMessage(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Non-participant
	w, c = newTestContext(t, "POST", "/x", map[string]string{"content": "hi"}, outsider.ID, params)
	SendMessage(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Whitespace-only content
	w, c = newTestContext(t, "POST", "/x", map[string]string{"content": "   "}, a.ID, params)
	SendMessage(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendImageMessage(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	config.AppConfig = &config.Config{R2PublicURL: "https://cdn.example.com"}
	t.Cleanup(func() { config.AppConfig = nil })

	a := createTestUser(t, "img_a", "Alice Image")
	b := createTestUser(t, "img_b", "Bob Image")
	outsider := createTestUser(t, "img_c", "Eve Image")
	conv := createTestConversation(t, false, a.ID, b.ID)
	params := gin.Params{{Key: "id", Value: conv.ID}}
	body := map[string]string{"blobKey": "converse/chat/pic.png"}

	// Anonymous
	w, c := newTestContext(t, "POST", "/x", body, "", params)
	SendImageMessage(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Missing conversation
	w, c = newTestContext(t, "POST", "/x", body, a.ID, gin.Params{{Key: "id", Value: "missing"}})
	SendImageMessage(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Non-participant
	w, c = newTestContext(t, "POST", "/x", body, outsider.ID, params)
	SendImageMessage(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Missing blob key
	w, c = newTestContext(t, "POST", "/x", map[string]string{}, a.ID, params)
	SendImageMessage(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A typing indicator that the image send must NOT touch
	database.DB.Create(&models.TypingIndicator{
		ConversationID: conv.ID,
		UserID:         a.ID,
		ExpiresAt:      time.Now().Add(time.Minute),
	})

	before := time.Now().Add(-time.Second)
	w, c = newTestContext(t, "POST", "/x", body, a.ID, params)
	SendImageMessage(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Message  models.Message `json:"message"`
		ImageURL string         `json:"imageUrl"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, models.ImageMessageCaption, resp.Message.Content)
	assert.Equal(t, models.MessageTypeImage, resp.Message.Type)
	assert.Equal(t, "https://cdn.example.com/converse/chat/pic.png", resp.ImageURL)

	// lastMessageTime advanced with the send
	var fresh models.Conversation
	database.DB.First(&fresh, "id = ?", conv.ID)
	assert.True(t, fresh.LastMessageTime.After(before))

	// Typing indicator survives an image send
	var typing int64
	database.DB.Model(&models.TypingIndicator{}).
		Where("conversation_id = ? AND user_id = ?", conv.ID, a.ID).
		Count(&typing)
	assert.Equal(t, int64(1), typing)

	// Readers get the resolved URL at list time
	msgs, code := listTestMessages(t, conv.ID, b.ID)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, msgs, 1)
	assert.Equal(t, models.ImageMessageCaption, msgs[0]["content"])
	assert.Equal(t, models.MessageTypeImage, msgs[0]["type"])
	assert.Equal(t, "https://cdn.example.com/converse/chat/pic.png", msgs[0]["imageUrl"])

	// Without blob configuration the URL degrades to empty instead of failing
	config.AppConfig = nil
	msgs, _ = listTestMessages(t, conv.ID, b.ID)
	assert.Len(t, msgs, 1)
	assert.Equal(t, "", msgs[0]["imageUrl"])
	config.AppConfig = &config.Config{R2PublicURL: "https://cdn.example.com"}

	// A deleted image message loses its URL along with its content
	w, c = newTestContext(t, "DELETE", "/x", nil, a.ID,
		gin.Params{{Key: "id", Value: resp.Message.ID}})
	DeleteMessage(c)
	assert.Equal(t, http.StatusOK, w.Code)

	msgs, _ = listTestMessages(t, conv.ID, b.ID)
	assert.Len(t, msgs, 1)
	assert.Equal(t, models.DeletedMessagePlaceholder, msgs[0]["content"])
	assert.Equal(t, "", msgs[0]["imageUrl"])
}

func TestListMessages_MembershipAndEnrichment(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	a := createTestUser(t, "lm_a", "Alice List")
	b := createTestUser(t, "lm_b", "Bob List")
	outsider := createTestUser(t, "lm_c", "Eve List")
	conv := createTestConversation(t, false, a.ID, b.ID)

	sendTestMessage(t, conv.ID, a.ID, "First")
	sendTestMessage(t, conv.ID, b.ID, "Second")

	msgs, code := listTestMessages(t, conv.ID, a.ID)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, msgs, 2)

	// Ascending order, sender profile attached
	assert.Equal(t, "First", msgs[0]["content"])
	assert.Equal(t, "Alice List", msgs[0]["senderName"])
	assert.Equal(t, "Second", msgs[1]["content"])
	assert.Equal(t, "Bob List", msgs[1]["senderName"])

	// Reaction map always carries all five kinds
	reactions := msgs[0]["reactions"].(map[string]interface{})
	assert.Len(t, reactions, len(models.AllowedReactionKinds))

	// Non-participant cannot tell the conversation exists
	_, code = listTestMessages(t, conv.ID, outsider.ID)
	assert.Equal(t, http.StatusNotFound, code)

	// Anonymous read is empty, not an error
	msgs, code = listTestMessages(t, conv.ID, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, msgs, 0)
}

func TestListMessages_SeenByOnlyOwnMessages(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	a := createTestUser(t, "seen_a", "Alice Seen")
	b := createTestUser(t, "seen_b", "Bob Seen")
	conv := createTestConversation(t, false, a.ID, b.ID)
	params := gin.Params{{Key: "id", Value: conv.ID}}

	sendTestMessage(t, conv.ID, a.ID, "From Alice")
	sendTestMessage(t, conv.ID, b.ID, "From Bob")

	// Bob reads the conversation
	w, c := newTestContext(t, "POST", "/x", nil, b.ID, params)
	MarkConversationRead(c)
	assert.Equal(t, http.StatusOK, w.Code)

	msgs, _ := listTestMessages(t, conv.ID, a.ID)
	assert.Len(t, msgs, 2)

	// Alice's own message shows Bob in seenBy
	seenBy := msgs[0]["seenBy"].([]interface{})
	assert.Len(t, seenBy, 1)
	assert.Equal(t, b.ID, seenBy[0])

	// Bob's message shows nothing to Alice even though Alice could have read it
	assert.Len(t, msgs[1]["seenBy"].([]interface{}), 0)
}

func TestUnreadCountFlow(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	a := createTestUser(t, "uc_a", "Alice Unread")
	b := createTestUser(t, "uc_b", "Bob Unread")
	conv := createTestConversation(t, false, a.ID, b.ID)
	params := gin.Params{{Key: "id", Value: conv.ID}}

	sendTestMessage(t, conv.ID, b.ID, "Ping")
	assert.Equal(t, int64(1), unreadCount(conv.ID, a.ID))

	// Own messages never count
	sendTestMessage(t, conv.ID, a.ID, "Pong")
	assert.Equal(t, int64(1), unreadCount(conv.ID, a.ID))

	// Read drops it to zero
	w, c := newTestContext(t, "POST", "/x", nil, a.ID, params)
	MarkConversationRead(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), unreadCount(conv.ID, a.ID))

	// A later message brings it back to one
	time.Sleep(5 * time.Millisecond)
	sendTestMessage(t, conv.ID, b.ID, "Ping again")
	assert.Equal(t, int64(1), unreadCount(conv.ID, a.ID))
}

func TestDeleteMessage_PlaceholderForEveryone(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	a := createTestUser(t, "del_a", "Alice Del")
	b := createTestUser(t, "del_b", "Bob Del")
	conv := createTestConversation(t, false, a.ID, b.ID)

	msg := sendTestMessage(t, conv.ID, a.ID, "Regret this")

	// Bob reacts before the delete
	w, c := newTestContext(t, "POST", "/x", map[string]string{"kind": "heart"}, b.ID,
		gin.Params{{Key: "id", Value: msg.ID}})
	ReactToMessage(c)
	assert.Equal(t, http.StatusOK, w.Code)

	// Only the sender may delete
	w, c = newTestContext(t, "DELETE", "/x", nil, b.ID, gin.Params{{Key: "id", Value: msg.ID}})
	DeleteMessage(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, c = newTestContext(t, "DELETE", "/x", nil, a.ID, gin.Params{{Key: "id", Value: msg.ID}})
	DeleteMessage(c)
	assert.Equal(t, http.StatusOK, w.Code)

	// Both readers see the placeholder and an empty reaction set
	for _, reader := range []string{a.ID, b.ID} {
		msgs, _ := listTestMessages(t, conv.ID, reader)
		assert.Len(t, msgs, 1)
		assert.Equal(t, models.DeletedMessagePlaceholder, msgs[0]["content"])
		assert.Equal(t, true, msgs[0]["isDeleted"])
		reactions := msgs[0]["reactions"].(map[string]interface{})
		assert.Len(t, reactions["heart"].([]interface{}), 0)
	}

	// The stored content is untouched; only the read path substitutes
	var stored models.Message
	database.DB.First(&stored, "id = ?", msg.ID)
	assert.Equal(t, "Regret this", stored.Content)
	assert.True(t, stored.IsDeleted)
}

func TestReactToMessage_ToggleSemantics(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	a := createTestUser(t, "rx_a", "Alice React")
	b := createTestUser(t, "rx_b", "Bob React")
	conv := createTestConversation(t, false, a.ID, b.ID)
	msg := sendTestMessage(t, conv.ID, a.ID, "React to me")
	params := gin.Params{{Key: "id", Value: msg.ID}}

	react := func(userId, kind string) map[string][]string {
		w, c := newTestContext(t, "POST", "/x", map[string]string{"kind": kind}, userId, params)
		ReactToMessage(c)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Reactions map[string][]string `json:"reactions"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		return resp.Reactions
	}

	// Toggle on
	set := react(b.ID, "thumbsUp")
	assert.Equal(t, []string{b.ID}, set["thumbsUp"])

	// Different kinds are independent
	set = react(b.ID, "heart")
	assert.Equal(t, []string{b.ID}, set["thumbsUp"])
	assert.Equal(t, []string{b.ID}, set["heart"])

	// Same kind again toggles off, the other kind stays
	set = react(b.ID, "thumbsUp")
	assert.Len(t, set["thumbsUp"], 0)
	assert.Equal(t, []string{b.ID}, set["heart"])

	// Another user's reaction of the same kind is separate state
	set = react(a.ID, "heart")
	assert.ElementsMatch(t, []string{a.ID, b.ID}, set["heart"])
}

func TestReactToMessage_Guards(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	a := createTestUser(t, "rg_a", "Alice RG")
	b := createTestUser(t, "rg_b", "Bob RG")
	conv := createTestConversation(t, false, a.ID, b.ID)
	msg := sendTestMessage(t, conv.ID, a.ID, "Guard me")
	params := gin.Params{{Key: "id", Value: msg.ID}}

	// Unknown kind
	w, c := newTestContext(t, "POST", "/x", map[string]string{"kind": "fire"}, b.ID, params)
	ReactToMessage(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing message
	w, c = newTestContext(t, "POST", "/x", map[string]string{"kind": "heart"}, b.ID,
		gin.Params{{Key: "id", Value: "missing"}})
	ReactToMessage(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Deleted message rejects reactions
	w, c = newTestContext(t, "DELETE", "/x", nil, a.ID, params)
	DeleteMessage(c)
	assert.Equal(t, http.StatusOK, w.Code)

	w, c = newTestContext(t, "POST", "/x", map[string]string{"kind": "heart"}, b.ID, params)
	ReactToMessage(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// End-to-end read accounting: B sends 3, A reads, B sends 2 more, A's unread
// count tracks 3 -> 0 -> 2 and B sees A in seenBy for the first three only.
func TestReadReceiptScenario(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)

	a := createTestUser(t, "rr_a", "Alice RR")
	b := createTestUser(t, "rr_b", "Bob RR")
	conv := createTestConversation(t, false, a.ID, b.ID)
	params := gin.Params{{Key: "id", Value: conv.ID}}

	for _, text := range []string{"one", "two", "three"} {
		sendTestMessage(t, conv.ID, b.ID, text)
	}
	assert.Equal(t, int64(3), unreadCount(conv.ID, a.ID))

	w, c := newTestContext(t, "POST", "/x", nil, a.ID, params)
	MarkConversationRead(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), unreadCount(conv.ID, a.ID))

	time.Sleep(5 * time.Millisecond)
	sendTestMessage(t, conv.ID, b.ID, "four")
	sendTestMessage(t, conv.ID, b.ID, "five")
	assert.Equal(t, int64(2), unreadCount(conv.ID, a.ID))

	msgs, _ := listTestMessages(t, conv.ID, b.ID)
	assert.Len(t, msgs, 5)
	for i, m := range msgs {
		seenBy := m["seenBy"].([]interface{})
		if i < 3 {
			assert.Len(t, seenBy, 1, "message %d should be seen", i)
		} else {
			assert.Len(t, seenBy, 0, "message %d should be unseen", i)
		}
	}
}
