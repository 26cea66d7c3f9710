package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/pkg/errors"
)

type ProviderCandidate struct {
	ProviderID   string    `json:"provider_id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name,omitempty"`
	Rate         float64   `json:"rate"`
	Rating       float64   `json:"rating"`
	RatingCount  int       `json:"rating_count"`
	Online       bool      `json:"online"`
	OnlineSince  time.Time `json:"online_since"`
	WithinBudget bool      `json:"within_budget"`
	DistanceKm   *float64  `json:"distance_km,omitempty"`
}

type MatchingUseCase struct {
	userRepo repository.UserRepository
}

func NewMatchingUseCase(userRepo repository.UserRepository) *MatchingUseCase {
	return &MatchingUseCase{
		userRepo: userRepo,
	}
}

// FindCandidates ranks providers for an Open request. With a target provider
// set, the target is the only candidate and need not be online.
func (uc *MatchingUseCase) FindCandidates(ctx context.Context, request *entity.ServiceRequest) ([]*ProviderCandidate, error) {
	if request.TypeOfWork == "" {
		return nil, errors.Validation("type of work is required for matching", nil)
	}
	if request.Status != entity.StatusOpen {
		return nil, errors.InvalidTransition("Only open requests can be matched")
	}

	requester, err := uc.lookupRequester(ctx, request.RequesterID)
	if err != nil {
		return nil, err
	}

	if request.TargetProviderID != "" {
		target, err := uc.userRepo.GetByID(ctx, request.TargetProviderID)
		if err != nil {
			return nil, err
		}
		if !Eligible(request, requester, target) {
			return []*ProviderCandidate{}, nil
		}
		return []*ProviderCandidate{newCandidate(request, target)}, nil
	}

	providers, err := uc.userRepo.ListProviders(ctx, request.TypeOfWork, true)
	if err != nil {
		return nil, err
	}

	candidates := make([]*ProviderCandidate, 0, len(providers))
	for _, p := range providers {
		if !p.Online || !Eligible(request, requester, p) {
			continue
		}
		candidates = append(candidates, newCandidate(request, p))
	}

	sortCandidates(candidates)
	return candidates, nil
}

// lookupRequester tolerates a requester without a stored profile; they simply
// have no block list.
func (uc *MatchingUseCase) lookupRequester(ctx context.Context, requesterID string) (*entity.User, error) {
	requester, err := uc.userRepo.GetByID(ctx, requesterID)
	if errors.Is(err, errors.CodeNotFound) {
		return &entity.User{ID: requesterID}, nil
	}
	return requester, err
}

// Eligible applies every filter except presence.
func Eligible(request *entity.ServiceRequest, requester, provider *entity.User) bool {
	if provider.ID == request.RequesterID || !provider.IsProvider() {
		return false
	}
	if !provider.HasSkill(request.TypeOfWork) {
		return false
	}
	if requester != nil && entity.Blocks(requester, provider) {
		return false
	}
	return !request.HasDeclined(provider.ID)
}

func newCandidate(request *entity.ServiceRequest, p *entity.User) *ProviderCandidate {
	c := &ProviderCandidate{
		ProviderID:   p.ID,
		Username:     p.Username,
		FullName:     p.FullName,
		Rate:         p.Rate,
		Rating:       p.Rating,
		RatingCount:  p.RatingCount,
		Online:       p.Online,
		OnlineSince:  p.OnlineSince,
		WithinBudget: p.Rate <= request.Budget,
	}
	if request.Location != nil && p.Location != nil {
		d := haversineKm(*request.Location, *p.Location)
		c.DistanceKm = &d
	}
	return c
}

// sortCandidates orders by budget fit, then cheaper rate among those that fit,
// then rating, proximity, how long the provider has been online and finally ID.
func sortCandidates(candidates []*ProviderCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.WithinBudget != b.WithinBudget {
			return a.WithinBudget
		}
		if a.WithinBudget && a.Rate != b.Rate {
			return a.Rate < b.Rate
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if cmp := compareDistance(a.DistanceKm, b.DistanceKm); cmp != 0 {
			return cmp < 0
		}
		if !a.OnlineSince.Equal(b.OnlineSince) {
			return a.OnlineSince.Before(b.OnlineSince)
		}
		return a.ProviderID < b.ProviderID
	})
}

// unknown distance sorts last
func compareDistance(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func haversineKm(p1, p2 entity.GeoPoint) float64 {
	const earthRadiusKm = 6371.0
	dLat := (p2.Lat - p1.Lat) * math.Pi / 180.0
	dLng := (p2.Lng - p1.Lng) * math.Pi / 180.0
	lat1 := p1.Lat * math.Pi / 180.0
	lat2 := p2.Lat * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(lat1)*math.Cos(lat2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
