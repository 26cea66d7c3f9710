package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neighborly/internal/domain/entity"
	"neighborly/pkg/errors"
)

func TestComingOnlineAnnouncesMatchingOpenRequests(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	h.open(t, u1, "")
	h.provider(t, &entity.User{ID: "late", Online: false})
	h.provider(t, &entity.User{ID: "sparky", Online: false, Skills: []string{"electrical"}})

	uc := NewUserUseCase(h.users, h.requests, h.notifier)

	user, err := uc.SetAvailability(h.ctx, "late", true)
	require.NoError(t, err)
	assert.True(t, user.Online)
	assert.False(t, user.OnlineSince.IsZero())
	assert.Len(t, h.notificationsFor(t, "late", entity.NotifyRequestAvailable), 1)

	_, err = uc.SetAvailability(h.ctx, "sparky", true)
	require.NoError(t, err)
	assert.Empty(t, h.notificationsFor(t, "sparky", entity.NotifyRequestAvailable))

	_, err = uc.SetAvailability(h.ctx, "u1", true)
	assert.True(t, errors.Is(err, errors.CodeValidation))
}

func TestUpdateProfileFixesRoleAndNormalizesSkills(t *testing.T) {
	h := newHarness(t, nil)
	uc := NewUserUseCase(h.users, h.requests, h.notifier)

	_, err := uc.UpdateProfile(h.ctx, "n1", UpdateProfileInput{Username: "nina"})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	user, err := uc.UpdateProfile(h.ctx, "n1", UpdateProfileInput{Role: entity.RoleProvider, Skills: []string{" Plumbing", "plumbing", "Tiling"}, Rate: 250})
	require.NoError(t, err)
	assert.Equal(t, []string{"plumbing", "tiling"}, user.Skills)
	assert.Equal(t, 250.0, user.Rate)

	_, err = uc.UpdateProfile(h.ctx, "n1", UpdateProfileInput{Role: entity.RoleRequester})
	assert.True(t, errors.Is(err, errors.CodeValidation))
}

func TestBlockHidesRequestsFromProvider(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	p := h.onlineProvider(t, "P", 100, 4)
	request := h.open(t, u1, "")
	uc := NewUserUseCase(h.users, h.requests, h.notifier)

	_, err := uc.Block(h.ctx, "u1", "P")
	require.NoError(t, err)

	_, err = h.lifecycle.Get(h.ctx, p, request.ID)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
	assert.False(t, h.lifecycle.CanJoinRoom(h.ctx, "P", request.ID))

	_, err = h.lifecycle.Accept(h.ctx, p, request.ID)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	_, err = uc.Unblock(h.ctx, "u1", "P")
	require.NoError(t, err)
	assert.True(t, h.lifecycle.CanJoinRoom(h.ctx, "P", request.ID))
}
