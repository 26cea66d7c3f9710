package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
	"neighborly/pkg/utils"
)

type firestoreBookingRepository struct {
	client *firestore.Client
}

func NewFirestoreBookingRepository(client *firestore.Client) repository.BookingRepository {
	return &firestoreBookingRepository{
		client: client,
	}
}

func (r *firestoreBookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	// Create fails with AlreadyExists, which keeps the booking single per request.
	_, err := r.client.Collection("bookings").Doc(booking.ID).Create(ctx, booking)
	if err != nil {
		return storeError(err, "Booking", "Failed to create booking")
	}
	return nil
}

func (r *firestoreBookingRepository) GetByID(ctx context.Context, id string) (*entity.Booking, error) {
	doc, err := r.client.Collection("bookings").Doc(id).Get(ctx)
	if err != nil {
		return nil, storeError(err, "Booking", "Failed to get booking")
	}

	var booking entity.Booking
	if err := doc.DataTo(&booking); err != nil {
		return nil, errors.Internal("Failed to parse booking data", err)
	}
	return &booking, nil
}

func (r *firestoreBookingRepository) Update(ctx context.Context, booking *entity.Booking) error {
	booking.UpdatedAt = time.Now()

	_, err := r.client.Collection("bookings").Doc(booking.ID).Set(ctx, booking)
	if err != nil {
		return storeError(err, "Booking", "Failed to update booking")
	}
	return nil
}

func (r *firestoreBookingRepository) Rate(ctx context.Context, id string, rating int, review string, at time.Time) (*entity.Booking, error) {
	ref := r.client.Collection("bookings").Doc(id)

	var rated *entity.Booking
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var booking entity.Booking
		if err := doc.DataTo(&booking); err != nil {
			return errors.Internal("Failed to parse booking data", err)
		}
		if booking.Status != entity.BookingCompleted {
			return errors.InvalidTransition("Only completed bookings can be rated")
		}
		if booking.RatedAt != nil {
			return errors.InvalidTransition("Booking has already been rated")
		}

		booking.Rating = rating
		booking.Review = review
		booking.RatedAt = &at
		booking.UpdatedAt = at
		rated = &booking
		return tx.Set(ref, &booking)
	})
	if err != nil {
		return nil, storeError(err, "Booking", "Failed to rate booking")
	}
	return rated, nil
}

func (r *firestoreBookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Booking, int64, error) {
	query := r.client.Collection("bookings").WhereEntity(firestore.OrFilter{
		Filters: []firestore.EntityFilter{
			firestore.PropertyFilter{Path: "providerId", Operator: "==", Value: userID},
			firestore.PropertyFilter{Path: "requesterId", Operator: "==", Value: userID},
		},
	}).OrderBy("createdAt", firestore.Desc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, storeError(err, "Booking", "Failed to list bookings")
	}

	start, end := utils.Window(len(docs), limit, offset)
	bookings := make([]*entity.Booking, 0, end-start)
	for _, doc := range docs[start:end] {
		var booking entity.Booking
		if err := doc.DataTo(&booking); err != nil {
			continue
		}
		bookings = append(bookings, &booking)
	}
	return bookings, int64(len(docs)), nil
}
