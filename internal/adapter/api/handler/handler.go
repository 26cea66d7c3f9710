package handler

import (
	"neighborly/internal/usecase"
)

var (
	serviceRequestHandler *ServiceRequestHandler
	chatHandler           *ChatHandler
	notificationHandler   *NotificationHandler
	userHandler           *UserHandler
	bookingHandler        *BookingHandler
)

func Setup(
	serviceRequestUseCase *usecase.ServiceRequestUseCase,
	chatUseCase *usecase.ChatUseCase,
	notificationUseCase *usecase.NotificationUseCase,
	userUseCase *usecase.UserUseCase,
	bookingUseCase *usecase.BookingUseCase,
) {
	serviceRequestHandler = NewServiceRequestHandler(serviceRequestUseCase)
	chatHandler = NewChatHandler(chatUseCase)
	notificationHandler = NewNotificationHandler(notificationUseCase)
	userHandler = NewUserHandler(userUseCase)
	bookingHandler = NewBookingHandler(bookingUseCase)
}

func GetServiceRequestHandler() *ServiceRequestHandler {
	return serviceRequestHandler
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetNotificationHandler() *NotificationHandler {
	return notificationHandler
}

func GetUserHandler() *UserHandler {
	return userHandler
}

func GetBookingHandler() *BookingHandler {
	return bookingHandler
}
