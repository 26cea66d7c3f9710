package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
	"neighborly/pkg/utils"
)

type bookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*entity.Booking
}

func NewBookingRepository() repository.BookingRepository {
	return &bookingRepository{bookings: make(map[string]*entity.Booking)}
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[booking.ID]; exists {
		return errors.Conflict("Booking already exists")
	}
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	r.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*entity.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	booking, ok := r.bookings[id]
	if !ok {
		return nil, errors.NotFound("Booking", nil)
	}
	return cloneBooking(booking), nil
}

func (r *bookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[booking.ID]; !ok {
		return errors.NotFound("Booking", nil)
	}
	booking.UpdatedAt = time.Now()
	r.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (r *bookingRepository) Rate(ctx context.Context, id string, rating int, review string, at time.Time) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking, ok := r.bookings[id]
	if !ok {
		return nil, errors.NotFound("Booking", nil)
	}
	if booking.Status != entity.BookingCompleted {
		return nil, errors.InvalidTransition("Only completed bookings can be rated")
	}
	if booking.RatedAt != nil {
		return nil, errors.InvalidTransition("Booking has already been rated")
	}
	booking.Rating = rating
	booking.Review = review
	booking.RatedAt = &at
	booking.UpdatedAt = at
	return cloneBooking(booking), nil
}

func (r *bookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Booking, int64, error) {
	r.mu.RLock()
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.IsParty(userID) {
			out = append(out, cloneBooking(b))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	start, end := utils.Window(len(out), limit, offset)
	return out[start:end], int64(len(out)), nil
}
