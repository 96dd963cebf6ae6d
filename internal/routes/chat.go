package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pushp314/converse-backend/internal/handlers"
)

// Chat routes run under OptionalAuthMiddleware applied by the parent group:
// reads answer anonymous callers with empty payloads, writes reject them.
func RegisterChatRoutes(r gin.IRouter) {
	chat := r.Group("/chat")
	{
		chat.POST("/conversations/direct", handlers.CreateOrGetDirectConversation)
		chat.POST("/conversations", handlers.CreateGroupConversation)
		chat.GET("/conversations", handlers.ListConversations)
		chat.GET("/conversations/:id", handlers.GetConversation)
		chat.POST("/conversations/:id/read", handlers.MarkConversationRead)

		chat.POST("/conversations/:id/messages", handlers.SendMessage)
		chat.POST("/conversations/:id/messages/image", handlers.SendImageMessage)
		chat.GET("/conversations/:id/messages", handlers.ListMessages)

		chat.DELETE("/messages/:id", handlers.DeleteMessage)
		chat.POST("/messages/:id/reactions", handlers.ReactToMessage)

		chat.POST("/conversations/:id/typing", handlers.SetTyping)
		chat.GET("/conversations/:id/typing", handlers.GetTyping)
		chat.DELETE("/conversations/:id/typing", handlers.ClearTyping)
	}
}
