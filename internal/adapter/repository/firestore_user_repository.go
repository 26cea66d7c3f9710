package repository

import (
	"context"
	"log"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
)

type firestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) repository.UserRepository {
	return &firestoreUserRepository{
		client: client,
	}
}

func (r *firestoreUserRepository) Save(ctx context.Context, user *entity.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	// Skills are stored lowercased so array-contains can match case-insensitively.
	for i, s := range user.Skills {
		user.Skills[i] = strings.ToLower(s)
	}

	_, err := r.client.Collection("users").Doc(user.ID).Set(ctx, user)
	if err != nil {
		log.Printf("Firestore user save error: %v", err)
		return storeError(err, "User", "Failed to save user")
	}
	return nil
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	doc, err := r.client.Collection("users").Doc(id).Get(ctx)
	if err != nil {
		return nil, storeError(err, "User", "Failed to get user")
	}

	var user entity.User
	if err := doc.DataTo(&user); err != nil {
		return nil, errors.Internal("Failed to parse user data", err)
	}
	return &user, nil
}

func (r *firestoreUserRepository) AddRating(ctx context.Context, id string, rating int) (*entity.User, error) {
	ref := r.client.Collection("users").Doc(id)

	var updated *entity.User
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}

		var user entity.User
		if err := doc.DataTo(&user); err != nil {
			return errors.Internal("Failed to parse user data", err)
		}
		user.Rating, user.RatingCount = entity.FoldRating(user.Rating, user.RatingCount, rating)
		user.UpdatedAt = time.Now()
		updated = &user

		// field updates leave presence and profile writes made meanwhile intact
		return tx.Update(ref, []firestore.Update{
			{Path: "rating", Value: user.Rating},
			{Path: "ratingCount", Value: user.RatingCount},
			{Path: "updatedAt", Value: user.UpdatedAt},
		})
	})
	if err != nil {
		return nil, storeError(err, "User", "Failed to update rating")
	}
	return updated, nil
}

func (r *firestoreUserRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = r.client.Collection("users").Doc(id)
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, storeError(err, "User", "Failed to get users")
	}

	users := make([]*entity.User, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var user entity.User
		if err := doc.DataTo(&user); err != nil {
			continue
		}
		users = append(users, &user)
	}
	return users, nil
}

func (r *firestoreUserRepository) ListProviders(ctx context.Context, skill string, onlineOnly bool) ([]*entity.User, error) {
	query := r.client.Collection("users").
		Where("role", "==", entity.RoleProvider).
		Where("skills", "array-contains", strings.ToLower(skill))
	if onlineOnly {
		query = query.Where("online", "==", true)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, storeError(err, "User", "Failed to list providers")
	}

	providers := make([]*entity.User, 0, len(docs))
	for _, doc := range docs {
		var user entity.User
		if err := doc.DataTo(&user); err != nil {
			log.Printf("Error parsing provider %s: %v", doc.Ref.ID, err)
			continue
		}
		providers = append(providers, &user)
	}
	return providers, nil
}
