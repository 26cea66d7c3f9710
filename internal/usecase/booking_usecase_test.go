package usecase

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neighborly/internal/domain/entity"
	mocks "neighborly/internal/mocks/usecase"
	"neighborly/pkg/errors"
)

func completedBooking(t *testing.T, h *harness) string {
	t.Helper()
	threadID := acceptedThread(t, h)
	_, err := h.lifecycle.Complete(h.ctx, Actor{UserID: "P", Role: entity.RoleProvider}, threadID, CompleteInput{})
	require.NoError(t, err)
	return threadID
}

func TestRateUpdatesProviderAverage(t *testing.T) {
	h := newHarness(t, nil)
	bookingID := completedBooking(t, h)

	provider, err := h.users.GetByID(h.ctx, "P")
	require.NoError(t, err)
	provider.Rating, provider.RatingCount = 4.0, 3
	require.NoError(t, h.users.Save(h.ctx, provider))

	uc := NewBookingUseCase(h.bookings, h.users, nil, h.notifier)

	_, err = uc.Rate(h.ctx, "P", bookingID, 5, "")
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	_, err = uc.Rate(h.ctx, "u1", bookingID, 6, "")
	assert.True(t, errors.Is(err, errors.CodeValidation))

	booking, err := uc.Rate(h.ctx, "u1", bookingID, 5, " quick and tidy ")
	require.NoError(t, err)
	assert.Equal(t, "quick and tidy", booking.Review)

	provider, err = h.users.GetByID(h.ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 4, provider.RatingCount)
	assert.InDelta(t, 4.25, provider.Rating, 0.0001)

	_, err = uc.Rate(h.ctx, "u1", bookingID, 4, "")
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestConcurrentRatingsCountOnce(t *testing.T) {
	h := newHarness(t, nil)
	bookingID := completedBooking(t, h)
	uc := NewBookingUseCase(h.bookings, h.users, nil, h.notifier)

	const racers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied, rejected := 0, 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			_, err := uc.Rate(h.ctx, "u1", bookingID, rating, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				applied++
			} else if errors.Is(err, errors.CodeInvalidTransition) {
				rejected++
			}
		}(i%5 + 1)
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, racers-1, rejected)

	provider, err := h.users.GetByID(h.ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.RatingCount)
	assert.True(t, provider.Online)
}

func TestRateRequiresCompletedBooking(t *testing.T) {
	h := newHarness(t, nil)
	bookingID := acceptedThread(t, h)
	uc := NewBookingUseCase(h.bookings, h.users, nil, h.notifier)

	_, err := uc.Rate(h.ctx, "u1", bookingID, 5, "")
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestUploadProof(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t, nil)
	bookingID := acceptedThread(t, h)

	media := mocks.NewMockMediaStore(ctrl)
	media.EXPECT().Upload(gomock.Any(), gomock.Any(), "image/png", gomock.Any()).DoAndReturn(
		func(_ context.Context, objectPath, _ string, _ io.Reader) (string, error) {
			assert.True(t, strings.HasPrefix(objectPath, "proofs/"+bookingID+"/"))
			assert.True(t, strings.HasSuffix(objectPath, ".png"))
			return "gs://bucket/" + objectPath, nil
		},
	)
	uc := NewBookingUseCase(h.bookings, h.users, media, h.notifier)

	_, err := uc.UploadProof(h.ctx, "u1", bookingID, "image/png", strings.NewReader("png"))
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	_, err = uc.UploadProof(h.ctx, "P", bookingID, "application/pdf", strings.NewReader("pdf"))
	assert.True(t, errors.Is(err, errors.CodeValidation))

	uri, err := uc.UploadProof(h.ctx, "P", bookingID, "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "gs://bucket/proofs/"))

	booking, err := uc.Get(h.ctx, "u1", bookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingActive, booking.Status)

	_, err = uc.Get(h.ctx, "stranger", bookingID)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
}

func TestProofLinksAreSignedForParties(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t, nil)
	bookingID := acceptedThread(t, h)
	_, err := h.lifecycle.Complete(h.ctx, Actor{UserID: "P", Role: entity.RoleProvider}, bookingID, CompleteInput{
		ProofURIs: []string{"gs://bucket/proofs/a.jpg", "gs://bucket/proofs/b.jpg"},
	})
	require.NoError(t, err)

	media := mocks.NewMockMediaStore(ctrl)
	media.EXPECT().SignedReadURL(gomock.Any(), proofLinkTTL).DoAndReturn(
		func(uri string, _ time.Duration) (string, error) {
			return "https://signed.example/" + strings.TrimPrefix(uri, "gs://bucket/"), nil
		},
	).Times(2)
	uc := NewBookingUseCase(h.bookings, h.users, media, h.notifier)

	links, err := uc.ProofLinks(h.ctx, "u1", bookingID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://signed.example/proofs/a.jpg", "https://signed.example/proofs/b.jpg"}, links)

	_, err = uc.ProofLinks(h.ctx, "stranger", bookingID)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
}
