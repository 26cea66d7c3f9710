package router

import (
	"github.com/labstack/echo/v4"

	"neighborly/internal/adapter/api/handler"
	"neighborly/internal/adapter/api/middleware"
)

func SetupBookingRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	bookingHandler := handler.GetBookingHandler()

	bookings := e.Group("/v1/bookings")
	bookings.Use(authMiddleware.Authenticate)

	bookings.GET("", bookingHandler.ListMyBookings)
	bookings.GET("/:id", bookingHandler.GetBooking)
	bookings.POST("/:id/rating", bookingHandler.RateBooking)
	bookings.POST("/:id/proofs", bookingHandler.UploadProof)
	bookings.GET("/:id/proofs", bookingHandler.GetProofLinks)
}
