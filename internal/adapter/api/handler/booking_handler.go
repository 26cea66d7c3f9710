package handler

import (
	"github.com/labstack/echo/v4"

	"neighborly/internal/usecase"
	"neighborly/pkg/errors"
	"neighborly/pkg/response"
	"neighborly/pkg/utils"
)

const maxProofSize = 10 << 20

type BookingHandler struct {
	bookingUseCase *usecase.BookingUseCase
}

func NewBookingHandler(bookingUseCase *usecase.BookingUseCase) *BookingHandler {
	return &BookingHandler{
		bookingUseCase: bookingUseCase,
	}
}

type rateBookingRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"max=1000"`
}

func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	page := utils.GetPaginationParams(c)
	bookings, total, err := h.bookingUseCase.ListMine(c.Request().Context(), actorFrom(c).UserID, page.PageSize, page.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, bookings, total, page.Page, page.PageSize)
}

func (h *BookingHandler) GetBooking(c echo.Context) error {
	booking, err := h.bookingUseCase.Get(c.Request().Context(), actorFrom(c).UserID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, booking)
}

func (h *BookingHandler) RateBooking(c echo.Context) error {
	var req rateBookingRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	booking, err := h.bookingUseCase.Rate(c.Request().Context(), actorFrom(c).UserID, c.Param("id"), req.Rating, req.Review)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, booking)
}

// UploadProof takes a multipart "file" field and returns the stored URI,
// which the provider passes to complete.
func (h *BookingHandler) UploadProof(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.Validation("file is required", err))
	}
	if file.Size > maxProofSize {
		return response.Error(c, errors.Validation("file must be at most 10MB", nil))
	}

	src, err := file.Open()
	if err != nil {
		return response.Error(c, errors.Validation("file could not be read", err))
	}
	defer src.Close()

	uri, err := h.bookingUseCase.UploadProof(c.Request().Context(), actorFrom(c).UserID, c.Param("id"),
		file.Header.Get("Content-Type"), src)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, map[string]string{"uri": uri})
}

func (h *BookingHandler) GetProofLinks(c echo.Context) error {
	links, err := h.bookingUseCase.ProofLinks(c.Request().Context(), actorFrom(c).UserID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string][]string{"links": links})
}
