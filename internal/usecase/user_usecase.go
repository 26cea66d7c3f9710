package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
	"neighborly/pkg/logger"
)

type UserUseCase struct {
	userRepo    repository.UserRepository
	requestRepo repository.ServiceRequestRepository
	notifier    *NotificationUseCase
	now         func() time.Time
}

func NewUserUseCase(
	userRepo repository.UserRepository,
	requestRepo repository.ServiceRequestRepository,
	notifier *NotificationUseCase,
) *UserUseCase {
	return &UserUseCase{
		userRepo:    userRepo,
		requestRepo: requestRepo,
		notifier:    notifier,
		now:         time.Now,
	}
}

type UpdateProfileInput struct {
	Email          string
	Username       string
	FullName       string
	Phone          string
	Bio            string
	Role           string
	Address        string
	Location       *entity.GeoPoint
	Skills         []string
	Rate           float64
	TelegramChatID int64
	PushChannel    string
}

func (uc *UserUseCase) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	return uc.userRepo.GetByID(ctx, userID)
}

// UpdateProfile creates the profile on first use. The role is fixed once set.
func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, errors.CodeNotFound) {
			return nil, err
		}
		user = &entity.User{ID: userID}
	}

	switch {
	case user.Role == "":
		if input.Role != entity.RoleRequester && input.Role != entity.RoleProvider {
			return nil, errors.Validation("role must be one of: requester provider", nil)
		}
		user.Role = input.Role
	case input.Role != "" && input.Role != user.Role:
		return nil, errors.Validation("role cannot be changed", nil)
	}

	if input.Rate < 0 {
		return nil, errors.Validation("rate must be at least 0", nil)
	}
	if input.Email != "" {
		user.Email = input.Email
	}
	if input.Username != "" {
		user.Username = input.Username
	}
	if input.FullName != "" {
		user.FullName = input.FullName
	}
	if input.Phone != "" {
		user.Phone = input.Phone
	}
	if input.Bio != "" {
		user.Bio = input.Bio
	}
	if input.Address != "" {
		user.Address = input.Address
	}
	if input.Location != nil {
		user.Location = input.Location
	}
	if input.TelegramChatID != 0 {
		user.TelegramChatID = input.TelegramChatID
	}
	if input.PushChannel != "" {
		user.PushChannel = input.PushChannel
	}
	if user.IsProvider() {
		if input.Skills != nil {
			user.Skills = normalizeSkills(input.Skills)
		}
		if input.Rate > 0 {
			user.Rate = input.Rate
		}
	}

	if err := uc.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetAvailability toggles presence. A provider coming online is told about
// every open request it matches.
func (uc *UserUseCase) SetAvailability(ctx context.Context, userID string, online bool) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsProvider() {
		return nil, errors.Validation("only providers have availability", nil)
	}
	if user.Online == online {
		return user, nil
	}

	user.Online = online
	if online {
		user.OnlineSince = uc.now()
	} else {
		user.OnlineSince = time.Time{}
	}
	if err := uc.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}

	if online {
		uc.notifyOpenRequests(ctx, user)
	}
	return user, nil
}

func (uc *UserUseCase) notifyOpenRequests(ctx context.Context, provider *entity.User) {
	requests, _, err := uc.requestRepo.List(ctx, repository.ServiceRequestFilter{
		Statuses: []entity.RequestStatus{entity.StatusOpen},
	})
	if err != nil {
		logger.Warn("Could not load open requests for provider %s: %v", provider.ID, err)
		return
	}

	notified := 0
	for _, r := range requests {
		if r.TargetProviderID != "" {
			continue
		}
		requester, err := uc.userRepo.GetByID(ctx, r.RequesterID)
		if err != nil {
			requester = &entity.User{ID: r.RequesterID}
		}
		if !Eligible(r, requester, provider) {
			continue
		}
		uc.notifier.Notify(ctx, provider.ID, entity.NotifyRequestAvailable, "New request nearby",
			fmt.Sprintf("A %s request is available", r.TypeOfWork),
			map[string]interface{}{"request_id": r.ID, "budget": r.Budget})
		notified++
	}
	logger.Info("Provider %s came online, %d open requests match", provider.ID, notified)
}

func (uc *UserUseCase) Block(ctx context.Context, userID, targetID string) (*entity.User, error) {
	if userID == targetID {
		return nil, errors.Validation("you cannot block yourself", nil)
	}
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasBlocked(targetID) {
		user.BlockedUsers = append(user.BlockedUsers, targetID)
		if err := uc.userRepo.Save(ctx, user); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (uc *UserUseCase) Unblock(ctx context.Context, userID, targetID string) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	kept := user.BlockedUsers[:0]
	for _, id := range user.BlockedUsers {
		if id != targetID {
			kept = append(kept, id)
		}
	}
	user.BlockedUsers = kept
	if err := uc.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func normalizeSkills(skills []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
