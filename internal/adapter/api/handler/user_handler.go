package handler

import (
	"github.com/labstack/echo/v4"

	"neighborly/internal/domain/entity"
	"neighborly/internal/usecase"
	"neighborly/pkg/response"
)

type UserHandler struct {
	userUseCase *usecase.UserUseCase
}

func NewUserHandler(userUseCase *usecase.UserUseCase) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
	}
}

type updateProfileRequest struct {
	Email          string    `json:"email" validate:"omitempty,email"`
	Username       string    `json:"username" validate:"omitempty,min=3,max=32"`
	FullName       string    `json:"full_name" validate:"max=100"`
	Phone          string    `json:"phone" validate:"max=32"`
	Bio            string    `json:"bio" validate:"max=500"`
	Role           string    `json:"role" validate:"omitempty,oneof=requester provider"`
	Address        string    `json:"address" validate:"max=300"`
	Location       *geoPoint `json:"location" validate:"omitempty"`
	Skills         []string  `json:"skills" validate:"max=20,dive,max=64"`
	Rate           float64   `json:"rate" validate:"gte=0"`
	TelegramChatID int64     `json:"telegram_chat_id"`
	PushChannel    string    `json:"push_channel" validate:"omitempty,oneof=email telegram none"`
}

type availabilityRequest struct {
	Online bool `json:"online"`
}

func (h *UserHandler) GetCurrentUser(c echo.Context) error {
	user, err := h.userUseCase.GetProfile(c.Request().Context(), actorFrom(c).UserID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	input := usecase.UpdateProfileInput{
		Email:          req.Email,
		Username:       req.Username,
		FullName:       req.FullName,
		Phone:          req.Phone,
		Bio:            req.Bio,
		Role:           req.Role,
		Address:        req.Address,
		Skills:         req.Skills,
		Rate:           req.Rate,
		TelegramChatID: req.TelegramChatID,
		PushChannel:    req.PushChannel,
	}
	if req.Location != nil {
		input.Location = &entity.GeoPoint{Lat: req.Location.Lat, Lng: req.Location.Lng}
	}

	user, err := h.userUseCase.UpdateProfile(c.Request().Context(), actorFrom(c).UserID, input)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

func (h *UserHandler) SetAvailability(c echo.Context) error {
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	user, err := h.userUseCase.SetAvailability(c.Request().Context(), actorFrom(c).UserID, req.Online)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

func (h *UserHandler) BlockUser(c echo.Context) error {
	user, err := h.userUseCase.Block(c.Request().Context(), actorFrom(c).UserID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

func (h *UserHandler) UnblockUser(c echo.Context) error {
	user, err := h.userUseCase.Unblock(c.Request().Context(), actorFrom(c).UserID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}
