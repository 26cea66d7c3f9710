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

type notificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*entity.Notification
}

func NewNotificationRepository() repository.NotificationRepository {
	return &notificationRepository{notifications: make(map[string]*entity.Notification)}
}

func (r *notificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	r.notifications[notification.ID] = cloneNotification(notification)
	return nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	r.mu.RLock()
	var out []*entity.Notification
	for _, n := range r.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, cloneNotification(n))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	start, end := utils.Window(len(out), limit, offset)
	return out[start:end], int64(len(out)), nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) (*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return nil, errors.NotFound("Notification", nil)
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	return cloneNotification(n), nil
}
