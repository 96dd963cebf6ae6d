package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/handlers"
	"github.com/pushp314/converse-backend/internal/middleware"
)

func RegisterUserRoutes(r gin.IRouter) {
	users := r.Group("/users")
	{
		users.GET("", handlers.ListUsers)
		users.GET("/search", handlers.SearchUsers)

		users.POST("/heartbeat", middleware.AuthMiddleware(), handlers.Heartbeat)
		users.POST("/offline", middleware.AuthMiddleware(), handlers.GoOffline)
	}
}
