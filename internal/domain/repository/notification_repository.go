package repository

import (
	"context"
	"time"

	"neighborly/internal/domain/entity"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	// MarkRead sets readAt once; later calls return the notification unchanged.
	MarkRead(ctx context.Context, id, recipientID string, at time.Time) (*entity.Notification, error)
}
