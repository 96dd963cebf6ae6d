package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/database"
	"github.com/pushp314/converse-backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB initializes an in-memory SQLite DB for testing
func SetupTestDB() {
	db, _ := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	database.DB = db
	database.DB.SetupJoinTable(&models.Conversation{}, "Participants", &models.ConversationParticipant{})
	database.DB.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.MessageReaction{},
		&models.ReadStatus{},
		&models.TypingIndicator{},
	)
}

func createTestUser(t *testing.T, id, name string) models.User {
	t.Helper()
	user := models.User{
		ID:         id,
		ExternalID: "test:" + id,
		Name:       name,
		Email:      id + "@example.com",
		LastSeen:   time.Now(),
	}
	if err := database.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user %s: %v", id, err)
	}
	return user
}

func createTestConversation(t *testing.T, isGroup bool, userIds ...string) models.Conversation {
	t.Helper()
	conv := models.Conversation{
		IsGroup:         isGroup,
		LastMessageTime: time.Now(),
	}
	if !isGroup && len(userIds) == 2 {
		key := models.DirectConversationKey(userIds[0], userIds[1])
		conv.DirectKey = &key
	}
	if err := database.DB.Create(&conv).Error; err != nil {
		t.Fatalf("failed to create test conversation: %v", err)
	}
	for _, id := range userIds {
		if err := database.DB.Create(&models.ConversationParticipant{
			ConversationID: conv.ID,
			UserID:         id,
		}).Error; err != nil {
			t.Fatalf("failed to add participant %s: %v", id, err)
		}
	}
	return conv
}

// newTestContext builds a gin test context with an optional JSON body, the
// authenticated user, and route params
func newTestContext(t *testing.T, method, path string, body interface{}, userId string, params gin.Params) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	c.Request, _ = http.NewRequest(method, path, buf)
	c.Request.Header.Set("Content-Type", "application/json")
	if userId != "" {
		c.Set("userId", userId)
	}
	c.Params = params
	return w, c
}
