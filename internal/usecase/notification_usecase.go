package usecase

import (
	"context"
	"time"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/logger"
)

type NotificationUseCase struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	realtime         RealtimePublisher
	push             PushNotifier
	async            func(func())
}

func NewNotificationUseCase(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	realtime RealtimePublisher,
	push PushNotifier,
) *NotificationUseCase {
	return &NotificationUseCase{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		realtime:         realtime,
		push:             push,
		async:            func(f func()) { go f() },
	}
}

// Notify stores a notification, publishes it to every session of the
// recipient and hands it to the push channel. Failures are logged; the
// transition that caused the notification has already committed.
func (uc *NotificationUseCase) Notify(ctx context.Context, recipientID, kind, title, message string, meta map[string]interface{}) *entity.Notification {
	if recipientID == "" {
		return nil
	}
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["kind"] = kind

	n := &entity.Notification{
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Meta:        meta,
		CreatedAt:   time.Now(),
	}
	if err := uc.notificationRepo.Create(ctx, n); err != nil {
		logger.Error("Failed to store %s notification for %s: %v", kind, recipientID, err)
		return nil
	}

	uc.realtime.PublishToUser(recipientID, "notification", n)

	if uc.push != nil {
		pushCtx := context.WithoutCancel(ctx)
		uc.async(func() {
			uc.deliverPush(pushCtx, n)
		})
	}
	return n
}

func (uc *NotificationUseCase) deliverPush(ctx context.Context, n *entity.Notification) {
	recipient, err := uc.userRepo.GetByID(ctx, n.RecipientID)
	if err != nil {
		logger.Warn("Skipping push for %s: %v", n.RecipientID, err)
		return
	}
	if err := uc.push.Push(ctx, recipient, n); err != nil {
		logger.Error("Push hand-off failed for notification %s: %v", n.ID, err)
	}
}

func (uc *NotificationUseCase) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	return uc.notificationRepo.ListByRecipient(ctx, userID, unreadOnly, limit, offset)
}

func (uc *NotificationUseCase) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return uc.notificationRepo.CountUnread(ctx, userID)
}

func (uc *NotificationUseCase) MarkRead(ctx context.Context, userID, notificationID string) (*entity.Notification, error) {
	n, err := uc.notificationRepo.MarkRead(ctx, notificationID, userID, time.Now())
	if err != nil {
		return nil, err
	}
	uc.realtime.PublishToUser(userID, "notification_read", map[string]string{"id": n.ID})
	return n, nil
}
