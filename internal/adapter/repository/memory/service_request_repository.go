package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
	"neighborly/pkg/utils"
)

type serviceRequestRepository struct {
	mu       sync.RWMutex
	requests map[string]*entity.ServiceRequest
}

func NewServiceRequestRepository() repository.ServiceRequestRepository {
	return &serviceRequestRepository{requests: make(map[string]*entity.ServiceRequest)}
}

func (r *serviceRequestRepository) Create(ctx context.Context, request *entity.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	if _, exists := r.requests[request.ID]; exists {
		return errors.Conflict("Service request already exists")
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now()
	}
	request.UpdatedAt = request.CreatedAt

	r.requests[request.ID] = request.Clone()
	return nil
}

func (r *serviceRequestRepository) GetByID(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, ok := r.requests[id]
	if !ok {
		return nil, errors.NotFound("Service request", nil)
	}
	return request.Clone(), nil
}

func (r *serviceRequestRepository) List(ctx context.Context, filter repository.ServiceRequestFilter) ([]*entity.ServiceRequest, int64, error) {
	r.mu.RLock()
	var matched []*entity.ServiceRequest
	for _, request := range r.requests {
		if matches(request, filter) {
			matched = append(matched, request.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start, end := utils.Window(len(matched), filter.Limit, filter.Offset)
	return matched[start:end], int64(len(matched)), nil
}

func (r *serviceRequestRepository) UpdateIf(ctx context.Context, next *entity.ServiceRequest, expectedStatus entity.RequestStatus, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.requests[next.ID]
	if !ok {
		return errors.NotFound("Service request", nil)
	}
	if current.Status != expectedStatus || current.Version != expectedVersion {
		return errors.Conflict("Service request changed concurrently")
	}

	r.requests[next.ID] = next.Clone()
	return nil
}

func matches(request *entity.ServiceRequest, filter repository.ServiceRequestFilter) bool {
	if filter.RequesterID != "" && request.RequesterID != filter.RequesterID {
		return false
	}
	if filter.ProviderID != "" && request.TargetProviderID != filter.ProviderID && request.AcceptedProviderID != filter.ProviderID {
		return false
	}
	if filter.TypeOfWork != "" && request.TypeOfWork != filter.TypeOfWork {
		return false
	}
	if len(filter.Statuses) > 0 {
		for _, s := range filter.Statuses {
			if request.Status == s {
				return true
			}
		}
		return false
	}
	return true
}
