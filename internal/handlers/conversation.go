package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/database"
	"github.com/pushp314/converse-backend/internal/models"
	"github.com/pushp314/converse-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateOrGetDirectConversation finds or creates the single 1:1 conversation
// for the caller and another user. Idempotent and symmetric: any number of
// calls with either ordering of the pair yields the same conversation. The
// unique index on direct_key makes the check-and-insert atomic, so two
// concurrent calls for the same pair cannot both create.
func CreateOrGetDirectConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req struct {
		ParticipantID string `json:"participantId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if req.ParticipantID == user.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot start a conversation with yourself"})
		return
	}

	var other models.User
	if err := database.DB.First(&other, "id = ?", req.ParticipantID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	key := models.DirectConversationKey(user.ID, other.ID)
	conv := models.Conversation{
		IsGroup:         false,
		DirectKey:       &key,
		LastMessageTime: time.Now(),
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "direct_key"}},
			DoNothing: true,
		}).Create(&conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already exists (or a concurrent call won the insert)
			return tx.Where("direct_key = ?", key).First(&conv).Error
		}

		participants := []models.ConversationParticipant{
			{ConversationID: conv.ID, UserID: user.ID},
			{ConversationID: conv.ID, UserID: other.ID},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create or get direct conversation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversationId": conv.ID})
}

// CreateGroupConversation always creates a new group - no dedup
func CreateGroupConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req struct {
		Name           string   `json:"name" binding:"required"`
		ParticipantIDs []string `json:"participantIds" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	// Participant set = caller plus members, deduped
	memberSet := map[string]bool{user.ID: true}
	for _, id := range req.ParticipantIDs {
		memberSet[id] = true
	}
	memberIds := make([]string, 0, len(memberSet))
	for id := range memberSet {
		memberIds = append(memberIds, id)
	}

	var count int64
	database.DB.Model(&models.User{}).Where("id IN ?", memberIds).Count(&count)
	if count != int64(len(memberIds)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "One or more participants do not exist"})
		return
	}

	conv := models.Conversation{
		IsGroup:         true,
		GroupName:       req.Name,
		LastMessageTime: time.Now(),
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		participants := make([]models.ConversationParticipant, 0, len(memberIds))
		for _, id := range memberIds {
			participants = append(participants, models.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         id,
			})
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create group conversation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversationId": conv.ID})
}

// ListConversations projects the caller's conversation list: each conversation
// with its most recent message, the other participants' profiles, and the
// caller's unread count. Read-only aggregation, safe to recompute per call.
func ListConversations(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"conversations": []gin.H{}})
		return
	}

	var convs []models.Conversation
	err := database.DB.
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", user.ID).
		Preload("Participants").
		Find(&convs).Error
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch conversations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}

	type entry struct {
		item         gin.H
		lastActivity time.Time
	}
	entries := make([]entry, 0, len(convs))

	for _, conv := range convs {
		var lastMessage *models.Message
		var msg models.Message
		if err := database.DB.
			Where("conversation_id = ?", conv.ID).
			Order("created_at desc").
			First(&msg).Error; err == nil {
			if msg.IsDeleted {
				msg.Content = models.DeletedMessagePlaceholder
			}
			lastMessage = &msg
		}

		others := make([]models.User, 0, len(conv.Participants))
		for _, p := range conv.Participants {
			if p.ID != user.ID {
				others = append(others, p)
			}
		}

		// Effective last-activity time: last message, else the conversation's
		// lastMessageTime, else its creation time
		lastActivity := conv.CreatedAt
		if !conv.LastMessageTime.IsZero() {
			lastActivity = conv.LastMessageTime
		}
		if lastMessage != nil {
			lastActivity = lastMessage.CreatedAt
		}

		entries = append(entries, entry{
			item: gin.H{
				"id":                conv.ID,
				"isGroup":           conv.IsGroup,
				"groupName":         conv.GroupName,
				"lastMessageTime":   conv.LastMessageTime,
				"createdAt":         conv.CreatedAt,
				"lastMessage":       lastMessage,
				"otherParticipants": others,
				"unreadCount":       unreadCount(conv.ID, user.ID),
			},
			lastActivity: lastActivity,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastActivity.After(entries[j].lastActivity)
	})

	items := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.item)
	}

	c.JSON(http.StatusOK, gin.H{"conversations": items})
}

// GetConversation returns a conversation with participant profiles. The
// membership check doubles as the authorization boundary: a conversation the
// caller cannot access looks exactly like one that does not exist.
func GetConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	conversationId := c.Param("id")

	var conv models.Conversation
	if err := database.DB.Preload("Participants").First(&conv, "id = ?", conversationId).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	if !isParticipant(conv.ID, user.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// MarkConversationRead upserts the caller's read watermark to now. Silent
// no-op for non-participants: a caller with no state change is not told
// whether the conversation exists.
func MarkConversationRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	conversationId := c.Param("id")
	if !isParticipant(conversationId, user.ID) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	now := time.Now()
	rs := models.ReadStatus{
		ConversationID: conversationId,
		UserID:         user.ID,
		LastReadTime:   now,
	}
	// The watermark only ever moves forward
	err := database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_read_time": now}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lt{Column: clause.Column{Name: "last_read_time"}, Value: now},
		}},
	}).Create(&rs).Error
	if err != nil {
		logger.Error().Err(err).Msg("Failed to mark conversation read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark read"})
		return
	}

	notifyParticipants(conversationId, user.ID, "message_read", map[string]interface{}{
		"conversationId": conversationId,
		"userId":         user.ID,
	})

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// unreadCount counts messages from other senders newer than the caller's read
// watermark. No watermark means the conversation is fully unread. Backed by
// the (conversation_id, created_at) index - a range count, not a table scan.
func unreadCount(conversationId, userId string) int64 {
	q := database.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id != ?", conversationId, userId)

	var rs models.ReadStatus
	if err := database.DB.
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		First(&rs).Error; err == nil {
		q = q.Where("created_at > ?", rs.LastReadTime)
	}

	var count int64
	q.Count(&count)
	return count
}
