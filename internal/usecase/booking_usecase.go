package usecase

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
	"neighborly/pkg/logger"
)

const proofLinkTTL = 15 * time.Minute

var allowedProofTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type BookingUseCase struct {
	bookingRepo repository.BookingRepository
	userRepo    repository.UserRepository
	media       MediaStore
	notifier    *NotificationUseCase
}

func NewBookingUseCase(
	bookingRepo repository.BookingRepository,
	userRepo repository.UserRepository,
	media MediaStore,
	notifier *NotificationUseCase,
) *BookingUseCase {
	return &BookingUseCase{
		bookingRepo: bookingRepo,
		userRepo:    userRepo,
		media:       media,
		notifier:    notifier,
	}
}

func (uc *BookingUseCase) Get(ctx context.Context, userID, bookingID string) (*entity.Booking, error) {
	booking, err := uc.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.IsParty(userID) {
		return nil, errors.Unauthorized("You are not a party to this booking", nil)
	}
	return booking, nil
}

func (uc *BookingUseCase) ListMine(ctx context.Context, userID string, limit, offset int) ([]*entity.Booking, int64, error) {
	return uc.bookingRepo.ListByUser(ctx, userID, limit, offset)
}

// Rate records the requester's review once and folds it into the provider's average.
func (uc *BookingUseCase) Rate(ctx context.Context, userID, bookingID string, rating int, review string) (*entity.Booking, error) {
	if rating < 1 || rating > 5 {
		return nil, errors.Validation("rating must be between 1 and 5", nil)
	}

	booking, err := uc.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RequesterID != userID {
		return nil, errors.Unauthorized("Only the requester can rate this booking", nil)
	}

	// status and ratedAt are checked again in the store's atomic step
	rated, err := uc.bookingRepo.Rate(ctx, bookingID, rating, strings.TrimSpace(review), time.Now())
	if err != nil {
		return nil, err
	}

	if _, err := uc.userRepo.AddRating(ctx, rated.ProviderID, rating); err != nil {
		logger.Error("Failed to update rating for provider %s: %v", rated.ProviderID, err)
	}
	return rated, nil
}

// UploadProof stores a proof-of-work image and returns its opaque URI.
// The URI is attached to the booking when the provider completes the request.
func (uc *BookingUseCase) UploadProof(ctx context.Context, userID, bookingID, contentType string, r io.Reader) (string, error) {
	if uc.media == nil {
		return "", errors.DependencyUnavailable("Media storage is not configured", nil)
	}
	ext, ok := allowedProofTypes[contentType]
	if !ok {
		return "", errors.Validation("proof must be a jpeg, png or webp image", nil)
	}

	booking, err := uc.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if booking.ProviderID != userID {
		return "", errors.Unauthorized("Only the provider can upload proof of work", nil)
	}
	if booking.Status != entity.BookingActive {
		return "", errors.InvalidTransition(fmt.Sprintf("Booking is %s", booking.Status))
	}

	objectPath := path.Join("proofs", bookingID, uuid.New().String()+ext)
	uri, err := uc.media.Upload(ctx, objectPath, contentType, r)
	if err != nil {
		return "", err
	}
	logger.Info("Proof uploaded for booking %s: %s", bookingID, objectPath)
	return uri, nil
}

// ProofLinks returns short-lived read URLs for the booking's proof of work.
func (uc *BookingUseCase) ProofLinks(ctx context.Context, userID, bookingID string) ([]string, error) {
	booking, err := uc.Get(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if len(booking.ProofURIs) == 0 {
		return []string{}, nil
	}
	if uc.media == nil {
		return nil, errors.DependencyUnavailable("Media storage is not configured", nil)
	}

	links := make([]string, 0, len(booking.ProofURIs))
	for _, uri := range booking.ProofURIs {
		link, err := uc.media.SignedReadURL(uri, proofLinkTTL)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}
