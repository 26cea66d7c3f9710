package usecase

import (
	"context"
	"fmt"
	"time"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/logger"
)

// OfferSweepUseCase tells requesters when a direct offer has gone unanswered
// for longer than the offer TTL. It never changes request state; the requester
// decides whether to broadcast.
type OfferSweepUseCase struct {
	requestRepo repository.ServiceRequestRepository
	notifier    *NotificationUseCase
	offerTTL    time.Duration
	lastRun     time.Time
	now         func() time.Time
}

func NewOfferSweepUseCase(
	requestRepo repository.ServiceRequestRepository,
	notifier *NotificationUseCase,
	offerTTL time.Duration,
) *OfferSweepUseCase {
	return &OfferSweepUseCase{
		requestRepo: requestRepo,
		notifier:    notifier,
		offerTTL:    offerTTL,
		now:         time.Now,
	}
}

// Sweep notifies for offers whose expiry fell after the previous run.
func (uc *OfferSweepUseCase) Sweep(ctx context.Context) (int, error) {
	now := uc.now()
	since := uc.lastRun

	offered, _, err := uc.requestRepo.List(ctx, repository.ServiceRequestFilter{
		Statuses: []entity.RequestStatus{entity.StatusOffered},
	})
	if err != nil {
		return 0, err
	}

	notified := 0
	for _, r := range offered {
		if r.OfferedAt == nil {
			continue
		}
		expiry := r.OfferedAt.Add(uc.offerTTL)
		if expiry.After(now) || (!since.IsZero() && !expiry.After(since)) {
			continue
		}
		uc.notifier.Notify(ctx, r.RequesterID, entity.NotifyOfferExpired, "Offer not answered",
			fmt.Sprintf("Your %s offer has not been answered. You can open it to all providers.", r.TypeOfWork),
			map[string]interface{}{"request_id": r.ID, "provider_id": r.TargetProviderID})
		notified++
	}

	uc.lastRun = now
	return notified, nil
}

func (uc *OfferSweepUseCase) StartSweepJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				if n, err := uc.Sweep(ctx); err != nil {
					logger.Error("Offer sweep error: %v", err)
				} else if n > 0 {
					logger.Info("Offer sweep sent %d expiry notices", n)
				}
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()

	logger.Info("Offer sweep job started (checking every %s)", interval)
}
