package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/services"
	"github.com/pushp314/converse-backend/pkg/utils"
)

// UploadChatImage accepts a multipart image, stores it in the blob bucket and
// returns the key a message will reference plus the resolved public URL.
func UploadChatImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		// Fallback field
		file, header, err = c.Request.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No valid file field found"})
			return
		}
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only image uploads are allowed"})
		return
	}

	ext := filepath.Ext(header.Filename)
	key := fmt.Sprintf("converse/chat/%s%s", utils.GenerateID(), ext)

	if err := services.UploadBlob(key, file, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"key":      key,
		"url":      services.ResolveBlobURL(key),
		"mimetype": contentType,
		"size":     header.Size,
	})
}
