package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"neighborly/internal/adapter/repository/memory"
	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
)

type published struct {
	target    string
	eventType string
	payload   interface{}
}

// recordingPublisher stands in for the websocket manager.
type recordingPublisher struct {
	mu      sync.Mutex
	rooms   []published
	users   []published
	members map[string]map[string]bool
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{members: make(map[string]map[string]bool)}
}

func (p *recordingPublisher) PublishToRoom(room, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms = append(p.rooms, published{room, eventType, payload})
}

func (p *recordingPublisher) PublishToUser(userID, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, published{userID, eventType, payload})
}

func (p *recordingPublisher) IsInRoom(room, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.members[room][userID]
}

func (p *recordingPublisher) join(room, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.members[room] == nil {
		p.members[room] = make(map[string]bool)
	}
	p.members[room][userID] = true
}

func (p *recordingPublisher) roomEvents(room, eventType string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.rooms {
		if e.target == room && e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	ctx      context.Context
	clock    time.Time
	users    repository.UserRepository
	requests repository.ServiceRequestRepository
	bookings repository.BookingRepository
	chats    repository.ChatRepository
	notes    repository.NotificationRepository
	realtime *recordingPublisher

	matching  *MatchingUseCase
	notifier  *NotificationUseCase
	chat      *ChatUseCase
	lifecycle *ServiceRequestUseCase
}

const testOfferTTL = 30 * time.Minute

func newHarness(t *testing.T, events EventPublisher) *harness {
	t.Helper()
	h := &harness{
		ctx:      context.Background(),
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		users:    memory.NewUserRepository(),
		requests: memory.NewServiceRequestRepository(),
		bookings: memory.NewBookingRepository(),
		chats:    memory.NewChatRepository(),
		notes:    memory.NewNotificationRepository(),
		realtime: newRecordingPublisher(),
	}
	inline := func(f func()) { f() }

	h.matching = NewMatchingUseCase(h.users)
	h.notifier = NewNotificationUseCase(h.notes, h.users, h.realtime, nil)
	h.notifier.async = inline
	h.chat = NewChatUseCase(h.chats, h.notifier, h.realtime, nil)
	h.lifecycle = NewServiceRequestUseCase(h.requests, h.bookings, h.users, h.matching, h.chat, h.notifier,
		h.realtime, events, nil, nil, testOfferTTL)
	h.lifecycle.async = inline
	h.lifecycle.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

func (h *harness) requester(t *testing.T, id string) Actor {
	t.Helper()
	require.NoError(t, h.users.Save(h.ctx, &entity.User{ID: id, Username: id, Role: entity.RoleRequester}))
	return Actor{UserID: id, Role: entity.RoleRequester}
}

func (h *harness) provider(t *testing.T, u *entity.User) Actor {
	t.Helper()
	u.Role = entity.RoleProvider
	if u.Skills == nil {
		u.Skills = []string{"plumbing"}
	}
	require.NoError(t, h.users.Save(h.ctx, u))
	return Actor{UserID: u.ID, Role: entity.RoleProvider}
}

func (h *harness) onlineProvider(t *testing.T, id string, rate, rating float64) Actor {
	t.Helper()
	return h.provider(t, &entity.User{ID: id, Username: id, Rate: rate, Rating: rating, Online: true, OnlineSince: h.clock})
}

func (h *harness) open(t *testing.T, requester Actor, target string) *entity.ServiceRequest {
	t.Helper()
	res, err := h.lifecycle.Create(h.ctx, requester, CreateRequestInput{
		TypeOfWork:       "plumbing",
		Budget:           500,
		Address:          "12 Elm Street",
		TargetProviderID: target,
	})
	require.NoError(t, err)
	return res.Request
}

func (h *harness) notificationsFor(t *testing.T, userID, kind string) []*entity.Notification {
	t.Helper()
	all, _, err := h.notes.ListByRecipient(h.ctx, userID, false, 0, 0)
	require.NoError(t, err)
	var out []*entity.Notification
	for _, n := range all {
		if n.Kind() == kind {
			out = append(out, n)
		}
	}
	return out
}

// stored loads a request and checks the accepted-provider rule on it.
func (h *harness) stored(t *testing.T, id string) *entity.ServiceRequest {
	t.Helper()
	r, err := h.requests.GetByID(h.ctx, id)
	require.NoError(t, err)
	require.Equal(t, r.Status.HasAcceptedProvider(), r.AcceptedProviderID != "",
		"status %s with accepted provider %q", r.Status, r.AcceptedProviderID)
	return r
}
