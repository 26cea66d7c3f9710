package router

import (
	"github.com/labstack/echo/v4"

	"neighborly/internal/adapter/api/handler"
	"neighborly/internal/adapter/api/middleware"
)

func SetupServiceRequestRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	requestHandler := handler.GetServiceRequestHandler()

	requests := e.Group("/v1/requests")
	requests.Use(authMiddleware.Authenticate)

	requests.POST("", requestHandler.CreateRequest)
	requests.GET("", requestHandler.ListMyRequests)
	requests.GET("/open", requestHandler.ListOpenRequests)
	requests.GET("/:id", requestHandler.GetRequest)
	requests.GET("/:id/candidates", requestHandler.PreviewCandidates)

	// Lifecycle commands
	requests.POST("/:id/offer", requestHandler.OfferRequest)
	requests.POST("/:id/accept", requestHandler.AcceptRequest)
	requests.POST("/:id/decline", requestHandler.DeclineRequest)
	requests.POST("/:id/cancel", requestHandler.CancelRequest)
	requests.POST("/:id/complete", requestHandler.CompleteRequest)
	requests.POST("/:id/broadcast", requestHandler.BroadcastRequest)
}
