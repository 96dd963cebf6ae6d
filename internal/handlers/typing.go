package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/config"
	"github.com/pushp314/converse-backend/internal/database"
	"github.com/pushp314/converse-backend/internal/models"
	"gorm.io/gorm/clause"
)

// typingTTL is how long a typing indicator stays visible after the last
// signal. Clients debounce signals roughly every 2 seconds, so the window
// must comfortably exceed that.
func typingTTL() time.Duration {
	if config.AppConfig != nil && config.AppConfig.TypingTTLSeconds > 0 {
		return time.Duration(config.AppConfig.TypingTTLSeconds) * time.Second
	}
	return 5 * time.Second
}

// SetTyping upserts the caller's typing indicator with a fresh expiry.
// Repeated signals just push the expiry forward.
func SetTyping(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	conversationId := c.Param("id")
	expiresAt := time.Now().Add(typingTTL())

	ti := models.TypingIndicator{
		ConversationID: conversationId,
		UserID:         user.ID,
		ExpiresAt:      expiresAt,
	}
	err := database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"expires_at": expiresAt}),
	}).Create(&ti).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set typing"})
		return
	}

	notifyParticipants(conversationId, user.ID, "user_typing", map[string]interface{}{
		"conversationId": conversationId,
		"userId":         user.ID,
		"userName":       user.Name,
	})

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetTyping returns display names of the other users currently typing.
// Expired rows are filtered out here - never deleted; staleness costs
// nothing but storage.
func GetTyping(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"typing": []string{}})
		return
	}

	conversationId := c.Param("id")

	names := []string{}
	database.DB.Model(&models.TypingIndicator{}).
		Joins("JOIN users ON users.id = typing_indicators.user_id").
		Where("typing_indicators.conversation_id = ? AND typing_indicators.user_id != ? AND typing_indicators.expires_at > ?",
			conversationId, user.ID, time.Now()).
		Pluck("users.name", &names)

	c.JSON(http.StatusOK, gin.H{"typing": names})
}

// ClearTyping deletes the caller's indicator; no-op if none exists
func ClearTyping(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	conversationId := c.Param("id")
	database.DB.
		Where("conversation_id = ? AND user_id = ?", conversationId, user.ID).
		Delete(&models.TypingIndicator{})

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
