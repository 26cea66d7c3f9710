package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
)

type userRepository struct {
	mu    sync.RWMutex
	users map[string]*entity.User
}

func NewUserRepository() repository.UserRepository {
	return &userRepository{users: make(map[string]*entity.User)}
}

func (r *userRepository) Save(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if existing, ok := r.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return cloneUser(user), nil
}

func (r *userRepository) AddRating(ctx context.Context, id string, rating int) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	user.Rating, user.RatingCount = entity.FoldRating(user.Rating, user.RatingCount, rating)
	user.UpdatedAt = time.Now()
	return cloneUser(user), nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []string) ([]*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			out = append(out, cloneUser(user))
		}
	}
	return out, nil
}

func (r *userRepository) ListProviders(ctx context.Context, skill string, onlineOnly bool) ([]*entity.User, error) {
	r.mu.RLock()
	var out []*entity.User
	for _, user := range r.users {
		if !user.IsProvider() || !user.HasSkill(skill) {
			continue
		}
		if onlineOnly && !user.Online {
			continue
		}
		out = append(out, cloneUser(user))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
