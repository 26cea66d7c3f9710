package repository

import (
	"context"

	"neighborly/internal/domain/entity"
)

type UserRepository interface {
	Save(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entity.User, error)
	// ListProviders returns providers declaring skill (case-insensitive).
	ListProviders(ctx context.Context, skill string, onlineOnly bool) ([]*entity.User, error)
	// AddRating folds one rating into the running average, touching only the
	// rating fields.
	AddRating(ctx context.Context, id string, rating int) (*entity.User, error)
}
