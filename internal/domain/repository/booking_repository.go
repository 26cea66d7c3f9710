package repository

import (
	"context"
	"time"

	"neighborly/internal/domain/entity"
)

type BookingRepository interface {
	// Create fails with errors.Conflict when a booking with the same ID exists.
	Create(ctx context.Context, booking *entity.Booking) error
	GetByID(ctx context.Context, id string) (*entity.Booking, error)
	Update(ctx context.Context, booking *entity.Booking) error
	// Rate records the review in one atomic step. It fails with
	// errors.InvalidTransition unless the booking is completed and unrated.
	Rate(ctx context.Context, id string, rating int, review string, at time.Time) (*entity.Booking, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Booking, int64, error)
}
