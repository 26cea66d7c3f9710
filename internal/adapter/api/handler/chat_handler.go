package handler

import (
	"github.com/labstack/echo/v4"

	"neighborly/internal/usecase"
	"neighborly/pkg/response"
	"neighborly/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type sendMessageRequest struct {
	Body           string   `json:"body" validate:"required,max=2000"`
	Type           string   `json:"type" validate:"omitempty,oneof=text image"`
	AttachmentURLs []string `json:"attachment_urls" validate:"max=5"`
}

// GetConversations returns one entry per counterpart.
func (h *ChatHandler) GetConversations(c echo.Context) error {
	conversations, err := h.chatUseCase.ListConversations(c.Request().Context(), actorFrom(c).UserID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, conversations)
}

func (h *ChatHandler) GetUnreadTotal(c echo.Context) error {
	total, err := h.chatUseCase.TotalUnread(c.Request().Context(), actorFrom(c).UserID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"unread": total})
}

func (h *ChatHandler) GetThread(c echo.Context) error {
	thread, err := h.chatUseCase.GetThread(c.Request().Context(), actorFrom(c).UserID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, thread)
}

func (h *ChatHandler) GetMessages(c echo.Context) error {
	page := utils.GetPaginationParams(c)
	messages, total, err := h.chatUseCase.GetHistory(c.Request().Context(), actorFrom(c).UserID, c.Param("id"), page.PageSize, page.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, messages, total, page.Page, page.PageSize)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), actorFrom(c).UserID, c.Param("id"), usecase.SendMessageInput{
		Body:           req.Body,
		Type:           req.Type,
		AttachmentURLs: req.AttachmentURLs,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, message)
}

func (h *ChatHandler) MarkSeen(c echo.Context) error {
	if err := h.chatUseCase.MarkSeen(c.Request().Context(), actorFrom(c).UserID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Messages marked as seen"})
}
