package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/database"
	"github.com/pushp314/converse-backend/internal/models"
	"github.com/pushp314/converse-backend/internal/services"
	"github.com/pushp314/converse-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SendMessage inserts a text message. Three effects happen in one
// transaction: the message row, the conversation's lastMessageTime bump, and
// the removal of the sender's typing indicator - a failure leaves none of
// them behind.
func SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	conversationId := c.Param("id")

	var conv models.Conversation
	if err := database.DB.First(&conv, "id = ?", conversationId).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	if !isParticipant(conv.ID, user.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	content, err := SanitizeMessageContent(req.Content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       user.ID,
		Content:        content,
		Type:           models.MessageTypeText,
		CreatedAt:      now,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Update("last_message_time", now).Error; err != nil {
			return err
		}
		// Sending supersedes the sender's typing signal
		return tx.Where("conversation_id = ? AND user_id = ?", conv.ID, user.ID).
			Delete(&models.TypingIndicator{}).Error
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	msg.Sender = *user
	notifyParticipants(conv.ID, user.ID, "receive_message", map[string]interface{}{
		"message": msg,
	})

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// SendImageMessage inserts an image message referencing an uploaded blob.
// Same guards as SendMessage; content is a fixed caption.
func SendImageMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	conversationId := c.Param("id")

	var conv models.Conversation
	if err := database.DB.First(&conv, "id = ?", conversationId).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	if !isParticipant(conv.ID, user.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant"})
		return
	}

	var req struct {
		BlobKey string `json:"blobKey" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	now := time.Now()
	msg := models.Message{
		ConversationID: conv.ID,
		SenderID:       user.ID,
		Content:        models.ImageMessageCaption,
		Type:           models.MessageTypeImage,
		BlobKey:        &req.BlobKey,
		CreatedAt:      now,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", conv.ID).
			Update("last_message_time", now).Error
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send image message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	msg.Sender = *user
	notifyParticipants(conv.ID, user.ID, "receive_message", map[string]interface{}{
		"message":  msg,
		"imageUrl": services.ResolveBlobURL(req.BlobKey),
	})

	c.JSON(http.StatusOK, gin.H{"message": msg, "imageUrl": services.ResolveBlobURL(req.BlobKey)})
}

// ListMessages returns a conversation's messages ascending by creation time,
// each enriched at read time with the sender's profile, a resolved image URL,
// the reaction set, and - for the caller's own messages - the seenBy set
// derived live from the other participants' read watermarks.
func ListMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"messages": []gin.H{}})
		return
	}

	conversationId := c.Param("id")

	var conv models.Conversation
	if err := database.DB.First(&conv, "id = ?", conversationId).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	// Same authorization boundary as GetConversation
	if !isParticipant(conv.ID, user.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	var messages []models.Message
	if err := database.DB.
		Where("conversation_id = ?", conv.ID).
		Order("created_at asc").
		Preload("Sender").
		Find(&messages).Error; err != nil {
		logger.Error().Err(err).Msg("Failed to fetch messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	// Other participants' read watermarks, fetched once per call
	otherIds := make([]string, 0)
	for _, id := range participantIDs(conv.ID) {
		if id != user.ID {
			otherIds = append(otherIds, id)
		}
	}
	var statuses []models.ReadStatus
	if len(otherIds) > 0 {
		database.DB.
			Where("conversation_id = ? AND user_id IN ?", conv.ID, otherIds).
			Find(&statuses)
	}

	// All reactions for the conversation in one query
	msgIds := make([]string, 0, len(messages))
	for _, m := range messages {
		msgIds = append(msgIds, m.ID)
	}
	reactionsByMsg := make(map[string]map[string][]string)
	if len(msgIds) > 0 {
		var rows []models.MessageReaction
		database.DB.Where("message_id IN ?", msgIds).Order("created_at asc").Find(&rows)
		for _, r := range rows {
			set, exists := reactionsByMsg[r.MessageID]
			if !exists {
				set = models.EmptyReactionSet()
				reactionsByMsg[r.MessageID] = set
			}
			set[r.Kind] = append(set[r.Kind], r.UserID)
		}
	}

	enriched := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		content := m.Content
		imageUrl := ""
		reactions := models.EmptyReactionSet()

		if m.IsDeleted {
			// Deleted messages surface only the placeholder - no content, no
			// image, no reactions, regardless of what is still stored
			content = models.DeletedMessagePlaceholder
		} else {
			if set, exists := reactionsByMsg[m.ID]; exists {
				reactions = set
			}
			if m.Type == models.MessageTypeImage && m.BlobKey != nil {
				imageUrl = services.ResolveBlobURL(*m.BlobKey)
			}
		}

		// seenBy is only computed for the caller's own messages
		seenBy := []string{}
		if m.SenderID == user.ID {
			for _, rs := range statuses {
				if !rs.LastReadTime.Before(m.CreatedAt) {
					seenBy = append(seenBy, rs.UserID)
				}
			}
		}

		enriched = append(enriched, gin.H{
			"id":             m.ID,
			"conversationId": m.ConversationID,
			"senderId":       m.SenderID,
			"content":        content,
			"type":           m.Type,
			"isDeleted":      m.IsDeleted,
			"createdAt":      m.CreatedAt,
			"senderName":     m.Sender.Name,
			"senderImage":    m.Sender.Image,
			"imageUrl":       imageUrl,
			"reactions":      reactions,
			"seenBy":         seenBy,
		})
	}

	c.JSON(http.StatusOK, gin.H{"messages": enriched})
}

// DeleteMessage soft-deletes the caller's own message. One-way, terminal:
// the row stays but every read path substitutes the placeholder.
func DeleteMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	messageId := c.Param("id")

	var msg models.Message
	if err := database.DB.First(&msg, "id = ?", messageId).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}

	if msg.SenderID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Can only delete own messages"})
		return
	}

	if err := database.DB.Model(&msg).Update("is_deleted", true).Error; err != nil {
		logger.Error().Err(err).Msg("Failed to delete message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete message"})
		return
	}

	notifyParticipants(msg.ConversationID, "", "message_deleted", map[string]interface{}{
		"messageId":      msg.ID,
		"conversationId": msg.ConversationID,
	})

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReactToMessage toggles the caller's reaction of the given kind. One row per
// (message, user, kind): toggling off deletes the row, toggling on inserts
// it. Concurrent calls by different users touch different rows, and the
// unique index absorbs a duplicate insert race - no update is ever lost.
func ReactToMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	messageId := c.Param("id")

	var req struct {
		Kind string `json:"kind" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !models.IsValidReactionKind(req.Kind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown reaction kind"})
		return
	}

	var msg models.Message
	if err := database.DB.First(&msg, "id = ?", messageId).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}

	if msg.IsDeleted {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot react to a deleted message"})
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("message_id = ? AND user_id = ? AND kind = ?", msg.ID, user.ID, req.Kind).
			Delete(&models.MessageReaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			reaction := models.MessageReaction{
				MessageID: msg.ID,
				UserID:    user.ID,
				Kind:      req.Kind,
			}
			// A conflict means a concurrent call already added this reaction
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&reaction).Error
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to toggle reaction")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to react"})
		return
	}

	reactions := reactionSet(msg.ID)
	notifyParticipants(msg.ConversationID, "", "reaction_updated", map[string]interface{}{
		"messageId": msg.ID,
		"reactions": reactions,
	})

	c.JSON(http.StatusOK, gin.H{"reactions": reactions})
}

// reactionSet aggregates a message's reaction rows into the kind -> user ids
// map clients render
func reactionSet(messageId string) map[string][]string {
	set := models.EmptyReactionSet()
	var rows []models.MessageReaction
	database.DB.Where("message_id = ?", messageId).Order("created_at asc").Find(&rows)
	for _, r := range rows {
		set[r.Kind] = append(set[r.Kind], r.UserID)
	}
	return set
}
