package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/database"
	"github.com/pushp314/converse-backend/internal/models"
	"github.com/pushp314/converse-backend/pkg/utils"
)

// ListUsers returns every user except the caller, as candidates for a new
// conversation
func ListUsers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"users": []models.User{}})
		return
	}

	var users []models.User
	if err := database.DB.Where("id != ?", user.ID).Order("name asc").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// SearchUsers does a case-insensitive name match, excluding the caller
func SearchUsers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"users": []models.User{}})
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusOK, gin.H{"users": []models.User{}})
		return
	}

	var users []models.User
	pattern := utils.SanitizeSearchQuery(query)
	if err := database.DB.
		Where("id != ? AND LOWER(name) LIKE LOWER(?)", user.ID, pattern).
		Order("name asc").
		Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Heartbeat marks the caller online. Clients call this periodically; the
// presence key in Redis expires on its own if they stop.
func Heartbeat(c *gin.Context) {
	userId := c.MustGet("userId").(string)

	database.DB.Model(&models.User{}).Where("id = ?", userId).
		Updates(map[string]interface{}{"is_online": true, "last_seen": time.Now()})
	database.SetUserOnline(userId)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GoOffline marks the caller offline explicitly (clean tab close)
func GoOffline(c *gin.Context) {
	userId := c.MustGet("userId").(string)

	database.DB.Model(&models.User{}).Where("id = ?", userId).
		Updates(map[string]interface{}{"is_online": false, "last_seen": time.Now()})
	database.SetUserOffline(userId)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
