package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/handlers"
	"github.com/pushp314/converse-backend/internal/middleware"
)

func RegisterAuthRoutes(r gin.IRouter) {
	auth := r.Group("/auth")
	{
		auth.GET("/google", handlers.GoogleLogin)
		auth.GET("/google/callback", handlers.GoogleCallback)
		auth.GET("/github", handlers.GithubLogin)
		auth.GET("/github/callback", handlers.GithubCallback)

		auth.POST("/logout", middleware.AuthMiddleware(), handlers.Logout)
		auth.GET("/me", middleware.OptionalAuthMiddleware(), handlers.Me)
	}
}
