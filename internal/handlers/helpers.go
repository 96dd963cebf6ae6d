package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/database"
	"github.com/pushp314/converse-backend/internal/models"
)

// currentUser resolves the caller identity placed in the context by the auth
// middleware. Returns false when the request is anonymous or the user record
// no longer exists. Read handlers respond with empty payloads in that case;
// write handlers reject with 401.
func currentUser(c *gin.Context) (*models.User, bool) {
	userId, exists := c.Get("userId")
	if !exists {
		return nil, false
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userId.(string)).Error; err != nil {
		return nil, false
	}
	return &user, true
}

// isParticipant checks membership of a user in a conversation
func isParticipant(conversationId, userId string) bool {
	var count int64
	database.DB.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Count(&count)
	return count > 0
}
