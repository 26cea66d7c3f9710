package handler

import (
	"github.com/labstack/echo/v4"

	"neighborly/internal/usecase"
	"neighborly/pkg/response"
	"neighborly/pkg/utils"
)

type NotificationHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

func NewNotificationHandler(notificationUseCase *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
	}
}

// ListNotifications serves ?unread=true for unread only.
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	page := utils.GetPaginationParams(c)
	unreadOnly := c.QueryParam("unread") == "true"

	notifications, total, err := h.notificationUseCase.List(c.Request().Context(), actorFrom(c).UserID, unreadOnly, page.PageSize, page.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, notifications, total, page.Page, page.PageSize)
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	count, err := h.notificationUseCase.UnreadCount(c.Request().Context(), actorFrom(c).UserID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int64{"unread": count})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	notification, err := h.notificationUseCase.MarkRead(c.Request().Context(), actorFrom(c).UserID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, notification)
}
