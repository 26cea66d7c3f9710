package usecase

import (
	"context"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
	"neighborly/pkg/utils"
)

// Get returns a request to a party, or to a provider it is currently open to.
func (uc *ServiceRequestUseCase) Get(ctx context.Context, actor Actor, requestID string) (*entity.ServiceRequest, error) {
	request, err := uc.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.IsParty(actor.UserID) {
		return request, nil
	}
	if ok, err := uc.openToProvider(ctx, request, actor.UserID); err != nil {
		return nil, err
	} else if ok {
		return request, nil
	}
	return nil, errors.Unauthorized("You are not a party to this request", nil)
}

// CanJoinRoom reports whether a user may subscribe to a request's realtime room.
func (uc *ServiceRequestUseCase) CanJoinRoom(ctx context.Context, userID, room string) bool {
	request, err := uc.requestRepo.GetByID(ctx, room)
	if err != nil {
		return false
	}
	if request.IsParty(userID) {
		return true
	}
	ok, _ := uc.openToProvider(ctx, request, userID)
	return ok
}

func (uc *ServiceRequestUseCase) openToProvider(ctx context.Context, request *entity.ServiceRequest, userID string) (bool, error) {
	if request.Status != entity.StatusOpen || request.TargetProviderID != "" {
		return false, nil
	}
	provider, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	requester, err := uc.matching.lookupRequester(ctx, request.RequesterID)
	if err != nil {
		return false, err
	}
	return Eligible(request, requester, provider), nil
}

type ListRequestsInput struct {
	As       string // "requester" or "provider"
	Statuses []entity.RequestStatus
	Limit    int
	Offset   int
}

func (uc *ServiceRequestUseCase) ListMine(ctx context.Context, actor Actor, input ListRequestsInput) ([]*entity.ServiceRequest, int64, error) {
	filter := repository.ServiceRequestFilter{
		Statuses: input.Statuses,
		Limit:    input.Limit,
		Offset:   input.Offset,
	}
	switch input.As {
	case "", "requester":
		filter.RequesterID = actor.UserID
	case "provider":
		filter.ProviderID = actor.UserID
	default:
		return nil, 0, errors.Validation("as must be one of: requester provider", nil)
	}
	return uc.requestRepo.List(ctx, filter)
}

// FindOpenForProvider lists broadcast requests the provider could accept right now.
func (uc *ServiceRequestUseCase) FindOpenForProvider(ctx context.Context, actor Actor, limit, offset int) ([]*entity.ServiceRequest, int64, error) {
	provider, err := uc.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, 0, err
	}
	if !provider.IsProvider() {
		return nil, 0, errors.Unauthorized("Only providers can browse open requests", nil)
	}

	requests, _, err := uc.requestRepo.List(ctx, repository.ServiceRequestFilter{
		Statuses: []entity.RequestStatus{entity.StatusOpen},
	})
	if err != nil {
		return nil, 0, err
	}

	requesters := make(map[string]*entity.User)
	var open []*entity.ServiceRequest
	for _, r := range requests {
		if r.TargetProviderID != "" {
			continue
		}
		requester, ok := requesters[r.RequesterID]
		if !ok {
			requester, err = uc.matching.lookupRequester(ctx, r.RequesterID)
			if err != nil {
				return nil, 0, err
			}
			requesters[r.RequesterID] = requester
		}
		if Eligible(r, requester, provider) {
			open = append(open, r)
		}
	}

	start, end := utils.Window(len(open), limit, offset)
	return open[start:end], int64(len(open)), nil
}

// PreviewCandidates lets the requester see who would be matched before offering.
func (uc *ServiceRequestUseCase) PreviewCandidates(ctx context.Context, actor Actor, requestID string) ([]*ProviderCandidate, error) {
	request, err := uc.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != actor.UserID {
		return nil, errors.Unauthorized("Only the requester can preview candidates", nil)
	}
	return uc.matching.FindCandidates(ctx, request)
}
