package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/simon-lehmann/goldfish.chat/internal/interfaces/httpserver/handlers"
)

func registerChatRoutes(group *gin.RouterGroup, handler *handlers.ChatHandler) {
	group.POST("/chat", handler.Chat)
	group.GET("/models", handler.Models)

	group.GET("/conversations", handler.List)
	group.DELETE("/conversations", handler.Clear)
	group.GET("/conversations/:conversation_id", handler.Get)
	group.DELETE("/conversations/:conversation_id", handler.Delete)

	group.GET("/preferences", handler.GetPreferences)
	group.PATCH("/preferences", handler.UpdatePreferences)
}
