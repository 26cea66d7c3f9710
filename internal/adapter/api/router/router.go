package router

import (
	"github.com/labstack/echo/v4"

	"neighborly/internal/adapter/api/handler"
	"neighborly/internal/adapter/api/middleware"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, wsHandler *handler.WebSocketHandler, healthHandler *handler.HealthHandler) {
	SetupServiceRequestRouter(e, authMiddleware)
	SetupChatRouter(e, authMiddleware)
	SetupNotificationRouter(e, authMiddleware)
	SetupUserRouter(e, authMiddleware)
	SetupBookingRouter(e, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
	SetupHealthRouter(e, healthHandler)
}
