package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/handlers"
	"github.com/pushp314/converse-backend/internal/middleware"
)

func RegisterUploadRoutes(r gin.IRouter) {
	upload := r.Group("/upload")
	upload.Use(middleware.AuthMiddleware())
	{
		upload.POST("/chat-image", handlers.UploadChatImage)
	}
}
