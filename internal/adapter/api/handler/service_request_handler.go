package handler

import (
	"github.com/labstack/echo/v4"

	"neighborly/internal/domain/entity"
	"neighborly/internal/usecase"
	"neighborly/pkg/response"
	"neighborly/pkg/utils"
)

type ServiceRequestHandler struct {
	requestUseCase *usecase.ServiceRequestUseCase
}

func NewServiceRequestHandler(requestUseCase *usecase.ServiceRequestUseCase) *ServiceRequestHandler {
	return &ServiceRequestHandler{
		requestUseCase: requestUseCase,
	}
}

type geoPoint struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

type createRequestRequest struct {
	TypeOfWork       string    `json:"type_of_work" validate:"required,max=64"`
	Budget           float64   `json:"budget" validate:"gte=0"`
	Address          string    `json:"address" validate:"max=300"`
	Location         *geoPoint `json:"location" validate:"omitempty"`
	PreferredDate    string    `json:"preferred_date" validate:"max=32"`
	PreferredTime    string    `json:"preferred_time" validate:"max=32"`
	Notes            string    `json:"notes" validate:"max=2000"`
	TargetProviderID string    `json:"target_provider_id"`
}

type offerRequest struct {
	ProviderID string `json:"provider_id" validate:"required"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type completeRequest struct {
	Notes     string   `json:"notes" validate:"max=2000"`
	ProofURIs []string `json:"proof_uris" validate:"max=10"`
}

func mutated(c echo.Context, result *usecase.TransitionResult) error {
	return response.Mutated(c, result.Applied, result.Request.Version, result)
}

func (h *ServiceRequestHandler) CreateRequest(c echo.Context) error {
	var req createRequestRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	input := usecase.CreateRequestInput{
		TypeOfWork:       req.TypeOfWork,
		Budget:           req.Budget,
		Address:          req.Address,
		PreferredDate:    req.PreferredDate,
		PreferredTime:    req.PreferredTime,
		Notes:            req.Notes,
		TargetProviderID: req.TargetProviderID,
	}
	if req.Location != nil {
		input.Location = &entity.GeoPoint{Lat: req.Location.Lat, Lng: req.Location.Lng}
	}

	result, err := h.requestUseCase.Create(c.Request().Context(), actorFrom(c), input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, response.Mutation{Applied: true, Version: result.Request.Version, Result: result})
}

func (h *ServiceRequestHandler) GetRequest(c echo.Context) error {
	request, err := h.requestUseCase.Get(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, request)
}

// ListMyRequests serves ?as=requester|provider&status=open,working
func (h *ServiceRequestHandler) ListMyRequests(c echo.Context) error {
	statuses, err := parseStatuses(c.QueryParam("status"))
	if err != nil {
		return response.Error(c, err)
	}
	page := utils.GetPaginationParams(c)

	requests, total, err := h.requestUseCase.ListMine(c.Request().Context(), actorFrom(c), usecase.ListRequestsInput{
		As:       c.QueryParam("as"),
		Statuses: statuses,
		Limit:    page.PageSize,
		Offset:   page.Offset,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, requests, total, page.Page, page.PageSize)
}

func (h *ServiceRequestHandler) ListOpenRequests(c echo.Context) error {
	page := utils.GetPaginationParams(c)
	requests, total, err := h.requestUseCase.FindOpenForProvider(c.Request().Context(), actorFrom(c), page.PageSize, page.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, requests, total, page.Page, page.PageSize)
}

func (h *ServiceRequestHandler) PreviewCandidates(c echo.Context) error {
	candidates, err := h.requestUseCase.PreviewCandidates(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, candidates)
}

func (h *ServiceRequestHandler) OfferRequest(c echo.Context) error {
	var req offerRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	result, err := h.requestUseCase.Offer(c.Request().Context(), actorFrom(c), c.Param("id"), req.ProviderID)
	if err != nil {
		return response.Error(c, err)
	}
	return mutated(c, result)
}

func (h *ServiceRequestHandler) AcceptRequest(c echo.Context) error {
	result, err := h.requestUseCase.Accept(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return mutated(c, result)
}

func (h *ServiceRequestHandler) DeclineRequest(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	result, err := h.requestUseCase.Decline(c.Request().Context(), actorFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}
	return mutated(c, result)
}

func (h *ServiceRequestHandler) CancelRequest(c echo.Context) error {
	var req reasonRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	result, err := h.requestUseCase.Cancel(c.Request().Context(), actorFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		return response.Error(c, err)
	}
	return mutated(c, result)
}

func (h *ServiceRequestHandler) CompleteRequest(c echo.Context) error {
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	result, err := h.requestUseCase.Complete(c.Request().Context(), actorFrom(c), c.Param("id"), usecase.CompleteInput{
		Notes:     req.Notes,
		ProofURIs: req.ProofURIs,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return mutated(c, result)
}

func (h *ServiceRequestHandler) BroadcastRequest(c echo.Context) error {
	result, err := h.requestUseCase.Broadcast(c.Request().Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return mutated(c, result)
}
