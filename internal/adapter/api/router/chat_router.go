package router

import (
	"github.com/labstack/echo/v4"

	"neighborly/internal/adapter/api/handler"
	"neighborly/internal/adapter/api/middleware"
)

// SetupChatRouter sets up chat routes. Thread ids are request ids.
func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	chatHandler := handler.GetChatHandler()

	chats := e.Group("/v1/chats")
	chats.Use(authMiddleware.Authenticate)

	chats.GET("", chatHandler.GetConversations)
	chats.GET("/unread", chatHandler.GetUnreadTotal)
	chats.GET("/:id", chatHandler.GetThread)
	chats.PUT("/:id/read", chatHandler.MarkSeen)

	chats.POST("/:id/messages", chatHandler.SendMessage)
	chats.GET("/:id/messages", chatHandler.GetMessages)
}
