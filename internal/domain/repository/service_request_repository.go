package repository

import (
	"context"

	"neighborly/internal/domain/entity"
)

type ServiceRequestFilter struct {
	RequesterID string
	// ProviderID matches either the target or the accepted provider.
	ProviderID string
	Statuses   []entity.RequestStatus
	TypeOfWork string
	Limit      int
	Offset     int
}

type ServiceRequestRepository interface {
	Create(ctx context.Context, request *entity.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*entity.ServiceRequest, error)
	List(ctx context.Context, filter ServiceRequestFilter) ([]*entity.ServiceRequest, int64, error)

	// UpdateIf replaces the stored request only when its current status and
	// version equal the expected ones. A mismatch returns an errors.Conflict
	// and leaves the record untouched.
	UpdateIf(ctx context.Context, next *entity.ServiceRequest, expectedStatus entity.RequestStatus, expectedVersion int64) error
}
