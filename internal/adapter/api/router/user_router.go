package router

import (
	"github.com/labstack/echo/v4"

	"neighborly/internal/adapter/api/handler"
	"neighborly/internal/adapter/api/middleware"
)

func SetupUserRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	userHandler := handler.GetUserHandler()

	users := e.Group("/v1/users")
	users.Use(authMiddleware.Authenticate)

	users.GET("/me", userHandler.GetCurrentUser)
	users.PATCH("/me", userHandler.UpdateProfile)
	users.PUT("/me/availability", userHandler.SetAvailability)

	users.POST("/:id/block", userHandler.BlockUser)
	users.DELETE("/:id/block", userHandler.UnblockUser)
}
