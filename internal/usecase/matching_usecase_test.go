package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neighborly/internal/domain/entity"
	"neighborly/pkg/errors"
)

func candidateIDs(cs []*ProviderCandidate) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ProviderID
	}
	return ids
}

func TestFindCandidatesPlumbingScenario(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")

	h.onlineProvider(t, "A", 400, 4.8)
	h.onlineProvider(t, "B", 450, 4.9)
	h.provider(t, &entity.User{ID: "C", Rate: 300, Rating: 5.0, Online: false})
	h.provider(t, &entity.User{ID: "D", Rate: 100, Rating: 5.0, Online: true, Skills: []string{"electrical"}})
	h.provider(t, &entity.User{ID: "E", Rate: 200, Rating: 5.0, Online: true, BlockedUsers: []string{"u1"}})

	request := &entity.ServiceRequest{ID: "r1", RequesterID: u1.UserID, TypeOfWork: "plumbing", Budget: 500, Status: entity.StatusOpen}
	candidates, err := h.matching.FindCandidates(h.ctx, request)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, candidateIDs(candidates))
	assert.True(t, candidates[0].WithinBudget)
}

func TestFindCandidatesRanking(t *testing.T) {
	h := newHarness(t, nil)
	h.requester(t, "u1")

	h.onlineProvider(t, "over-budget", 900, 5.0)
	h.onlineProvider(t, "cheap", 100, 3.0)
	h.provider(t, &entity.User{ID: "far", Rate: 300, Rating: 4.0, Online: true, OnlineSince: h.clock, Location: &entity.GeoPoint{Lat: 1, Lng: 1}})
	h.provider(t, &entity.User{ID: "near", Rate: 300, Rating: 4.0, Online: true, OnlineSince: h.clock, Location: &entity.GeoPoint{Lat: 0.01, Lng: 0.01}})
	h.provider(t, &entity.User{ID: "nowhere", Rate: 300, Rating: 4.0, Online: true, OnlineSince: h.clock})

	request := &entity.ServiceRequest{
		RequesterID: "u1", TypeOfWork: "Plumbing", Budget: 500, Status: entity.StatusOpen,
		Location: &entity.GeoPoint{Lat: 0, Lng: 0},
	}
	candidates, err := h.matching.FindCandidates(h.ctx, request)
	require.NoError(t, err)

	assert.Equal(t, []string{"cheap", "near", "far", "nowhere", "over-budget"}, candidateIDs(candidates))
	require.NotNil(t, candidates[1].DistanceKm)
	assert.Less(t, *candidates[1].DistanceKm, *candidates[2].DistanceKm)
	assert.False(t, candidates[4].WithinBudget)
}

func TestFindCandidatesBreaksTiesByOnlineSinceThenID(t *testing.T) {
	h := newHarness(t, nil)
	h.requester(t, "u1")

	early := h.clock.Add(-time.Hour)
	h.provider(t, &entity.User{ID: "z-early", Rate: 100, Rating: 4, Online: true, OnlineSince: early})
	h.provider(t, &entity.User{ID: "b-late", Rate: 100, Rating: 4, Online: true, OnlineSince: h.clock})
	h.provider(t, &entity.User{ID: "a-late", Rate: 100, Rating: 4, Online: true, OnlineSince: h.clock})

	candidates, err := h.matching.FindCandidates(h.ctx, &entity.ServiceRequest{RequesterID: "u1", TypeOfWork: "plumbing", Budget: 100, Status: entity.StatusOpen})
	require.NoError(t, err)
	assert.Equal(t, []string{"z-early", "a-late", "b-late"}, candidateIDs(candidates))
}

func TestFindCandidatesTargetIgnoresPresence(t *testing.T) {
	h := newHarness(t, nil)
	h.requester(t, "u1")
	h.provider(t, &entity.User{ID: "P", Rate: 800, Online: false})
	h.onlineProvider(t, "other", 100, 5)

	candidates, err := h.matching.FindCandidates(h.ctx, &entity.ServiceRequest{
		RequesterID: "u1", TypeOfWork: "plumbing", Budget: 500, Status: entity.StatusOpen, TargetProviderID: "P",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"P"}, candidateIDs(candidates))
}

func TestFindCandidatesExcludesRequesterBlockListAndDecliners(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.users.Save(h.ctx, &entity.User{ID: "u1", Role: entity.RoleRequester, BlockedUsers: []string{"blocked"}}))
	h.onlineProvider(t, "blocked", 100, 5)
	h.onlineProvider(t, "decliner", 100, 5)
	h.onlineProvider(t, "ok", 100, 5)

	candidates, err := h.matching.FindCandidates(h.ctx, &entity.ServiceRequest{
		RequesterID: "u1", TypeOfWork: "plumbing", Budget: 500, Status: entity.StatusOpen,
		DeclinedProviders: []string{"decliner"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, candidateIDs(candidates))
}

func TestFindCandidatesRejectsBadInput(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.matching.FindCandidates(h.ctx, &entity.ServiceRequest{RequesterID: "u1", Status: entity.StatusOpen})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, err = h.matching.FindCandidates(h.ctx, &entity.ServiceRequest{RequesterID: "u1", TypeOfWork: "plumbing", Status: entity.StatusWorking})
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestFindCandidatesEmptyIsNotAnError(t *testing.T) {
	h := newHarness(t, nil)

	candidates, err := h.matching.FindCandidates(h.ctx, &entity.ServiceRequest{RequesterID: "u1", TypeOfWork: "roofing", Status: entity.StatusOpen})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
