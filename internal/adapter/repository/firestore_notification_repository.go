package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
	"neighborly/pkg/utils"
)

type firestoreNotificationRepository struct {
	client *firestore.Client
}

func NewFirestoreNotificationRepository(client *firestore.Client) repository.NotificationRepository {
	return &firestoreNotificationRepository{
		client: client,
	}
}

func (r *firestoreNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	_, err := r.client.Collection("notifications").Doc(notification.ID).Set(ctx, notification)
	if err != nil {
		return storeError(err, "Notification", "Failed to create notification")
	}
	return nil
}

func (r *firestoreNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	query := r.client.Collection("notifications").Where("recipientId", "==", recipientID)
	if unreadOnly {
		query = query.Where("readAt", "==", nil)
	}
	query = query.OrderBy("createdAt", firestore.Desc)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, storeError(err, "Notification", "Failed to list notifications")
	}

	start, end := utils.Window(len(docs), limit, offset)
	notifications := make([]*entity.Notification, 0, end-start)
	for _, doc := range docs[start:end] {
		var n entity.Notification
		if err := doc.DataTo(&n); err != nil {
			continue
		}
		notifications = append(notifications, &n)
	}
	return notifications, int64(len(docs)), nil
}

func (r *firestoreNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	docs, err := r.client.Collection("notifications").
		Where("recipientId", "==", recipientID).
		Where("readAt", "==", nil).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, storeError(err, "Notification", "Failed to count notifications")
	}
	return int64(len(docs)), nil
}

func (r *firestoreNotificationRepository) MarkRead(ctx context.Context, id, recipientID string, at time.Time) (*entity.Notification, error) {
	ref := r.client.Collection("notifications").Doc(id)

	var result entity.Notification
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if err := doc.DataTo(&result); err != nil {
			return errors.Internal("Failed to parse notification data", err)
		}
		if result.RecipientID != recipientID {
			return errors.NotFound("Notification", nil)
		}
		if result.ReadAt != nil {
			return nil
		}
		result.ReadAt = &at
		return tx.Update(ref, []firestore.Update{{Path: "readAt", Value: at}})
	})
	if err != nil {
		return nil, storeError(err, "Notification", "Failed to mark notification read")
	}
	return &result, nil
}
