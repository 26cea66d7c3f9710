package usecase

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	mocks "neighborly/internal/mocks/usecase"
	"neighborly/pkg/errors"
)

func TestCreateBroadcastAnnouncesToCandidates(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	h.onlineProvider(t, "A", 400, 4.8)
	h.onlineProvider(t, "B", 450, 4.9)

	request := h.open(t, u1, "")

	assert.Equal(t, entity.StatusOpen, request.Status)
	assert.Equal(t, int64(1), request.Version)
	assert.Len(t, h.notificationsFor(t, "A", entity.NotifyRequestAvailable), 1)
	assert.Len(t, h.notificationsFor(t, "B", entity.NotifyRequestAvailable), 1)
}

func TestCreateValidatesPayload(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")

	_, err := h.lifecycle.Create(h.ctx, u1, CreateRequestInput{Budget: 10, Address: "x"})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, err = h.lifecycle.Create(h.ctx, u1, CreateRequestInput{TypeOfWork: "plumbing", Budget: -1, Address: "x"})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, err = h.lifecycle.Create(h.ctx, u1, CreateRequestInput{TypeOfWork: "plumbing", Budget: 1})
	assert.True(t, errors.Is(err, errors.CodeValidation))
}

func TestCreateKeepsCoordinatesWithoutGeocoder(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")

	res, err := h.lifecycle.Create(h.ctx, u1, CreateRequestInput{
		TypeOfWork: "plumbing", Budget: 50, Location: &entity.GeoPoint{Lat: -6.2, Lng: 106.816666},
	})
	require.NoError(t, err)
	assert.Equal(t, "-6.200000, 106.816666", res.Request.Address)
}

func TestDirectOfferToOfflineProvider(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	h.provider(t, &entity.User{ID: "P", Rate: 300, Online: false})

	request := h.open(t, u1, "P")

	assert.Equal(t, entity.StatusOffered, request.Status)
	assert.Equal(t, "P", request.TargetProviderID)
	require.NotNil(t, request.OfferedAt)

	offers := h.notificationsFor(t, "P", entity.NotifyRequestOffered)
	require.Len(t, offers, 1)
	assert.Equal(t, request.ID, offers[0].Meta["request_id"])

	thread, err := h.chats.GetThread(h.ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ThreadReadOnly, thread.State)

	_, err = h.chat.SendMessage(h.ctx, "u1", request.ID, SendMessageInput{Body: "hello?"})
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))

	res, err := h.lifecycle.Accept(h.ctx, Actor{UserID: "P", Role: entity.RoleProvider}, request.ID)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, entity.StatusWorking, res.Request.Status)
	assert.Equal(t, "P", res.Request.AcceptedProviderID)

	thread, err = h.chats.GetThread(h.ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ThreadOpen, thread.State)
}

func TestCreateRejectsIneligibleTarget(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	h.provider(t, &entity.User{ID: "sparky", Skills: []string{"electrical"}})

	_, err := h.lifecycle.Create(h.ctx, u1, CreateRequestInput{TypeOfWork: "plumbing", Address: "x", TargetProviderID: "sparky"})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	list, total, err := h.lifecycle.ListMine(h.ctx, u1, ListRequestsInput{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestDirectRequestIsStoredOfferedInOneWrite(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	h.onlineProvider(t, "P", 300, 4)

	request := h.open(t, u1, "P")

	stored := h.stored(t, request.ID)
	assert.Equal(t, entity.StatusOffered, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	require.NotNil(t, stored.OfferedAt)
	assert.Len(t, h.notificationsFor(t, "P", entity.NotifyRequestOffered), 1)
}

func TestCreateForBlockingTargetLeavesNothingBehind(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	h.provider(t, &entity.User{ID: "P", Rate: 300, Online: true, BlockedUsers: []string{"u1"}})

	_, err := h.lifecycle.Create(h.ctx, u1, CreateRequestInput{TypeOfWork: "plumbing", Address: "x", TargetProviderID: "P"})
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, total, err := h.requests.List(h.ctx, repository.ServiceRequestFilter{RequesterID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, h.notificationsFor(t, "P", entity.NotifyRequestOffered))
}

func TestOfferedRequestOnlyAcceptableByTarget(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	h.onlineProvider(t, "P", 300, 4)
	other := h.onlineProvider(t, "Q", 300, 4)

	request := h.open(t, u1, "P")

	_, err := h.lifecycle.Accept(h.ctx, other, request.ID)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
	assert.Equal(t, entity.StatusOffered, h.stored(t, request.ID).Status)
}

func TestAcceptCreatesBookingAndIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	a := h.onlineProvider(t, "A", 400, 4.8)
	b := h.onlineProvider(t, "B", 450, 4.9)
	request := h.open(t, u1, "")

	res, err := h.lifecycle.Accept(h.ctx, a, request.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Booking)
	assert.Equal(t, request.ID, res.Booking.ID)
	assert.Equal(t, "A", res.Booking.ProviderID)
	assert.Equal(t, int64(2), res.Request.Version)
	assert.Len(t, h.notificationsFor(t, "u1", entity.NotifyRequestAccepted), 1)

	replay, err := h.lifecycle.Accept(h.ctx, a, request.ID)
	require.NoError(t, err)
	assert.False(t, replay.Applied)
	assert.Equal(t, int64(2), replay.Request.Version)
	assert.Equal(t, res.Booking.ID, replay.Booking.ID)

	_, err = h.lifecycle.Accept(h.ctx, b, request.ID)
	assert.True(t, errors.Is(err, errors.CodeRequestAlreadyTaken))

	bookings, total, err := h.bookings.ListByUser(h.ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "A", bookings[0].ProviderID)
}

func TestAcceptReplayAfterCompletion(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	p := h.onlineProvider(t, "P", 100, 4)
	q := h.onlineProvider(t, "Q", 100, 4)
	request := h.open(t, u1, "")

	_, err := h.lifecycle.Accept(h.ctx, p, request.ID)
	require.NoError(t, err)
	done, err := h.lifecycle.Complete(h.ctx, p, request.ID, CompleteInput{})
	require.NoError(t, err)

	replay, err := h.lifecycle.Accept(h.ctx, p, request.ID)
	require.NoError(t, err)
	assert.False(t, replay.Applied)
	assert.Equal(t, entity.StatusCompleted, replay.Request.Status)
	assert.Equal(t, done.Request.Version, replay.Request.Version)
	require.NotNil(t, replay.Booking)
	assert.Equal(t, entity.BookingCompleted, replay.Booking.Status)

	_, err = h.lifecycle.Accept(h.ctx, q, request.ID)
	assert.True(t, errors.Is(err, errors.CodeRequestAlreadyTaken))
	assert.Equal(t, done.Request.Version, h.stored(t, request.ID).Version)
}

func TestConcurrentAcceptHasExactlyOneWinner(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	request := h.open(t, u1, "")

	const n = 12
	actors := make([]Actor, n)
	for i := range actors {
		actors[i] = h.onlineProvider(t, fmt.Sprintf("p%02d", i), 100, 4)
	}

	results := make([]error, n)
	var g errgroup.Group
	for i := range actors {
		i := i
		g.Go(func() error {
			_, err := h.lifecycle.Accept(h.ctx, actors[i], request.ID)
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, errors.Is(err, errors.CodeRequestAlreadyTaken), err.Error())
	}
	assert.Equal(t, 1, winners)

	stored := h.stored(t, request.ID)
	assert.Equal(t, entity.StatusWorking, stored.Status)
	assert.Equal(t, int64(2), stored.Version)

	_, total, err := h.bookings.ListByUser(h.ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestCancelledIsTerminal(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	p := h.onlineProvider(t, "P", 100, 4)
	request := h.open(t, u1, "P")

	res, err := h.lifecycle.Cancel(h.ctx, u1, request.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCancelled, res.Request.Status)
	assert.Equal(t, "u1", res.Request.CancelledBy)
	assert.Len(t, h.notificationsFor(t, "P", entity.NotifyRequestCancelled), 1)

	thread, err := h.chats.GetThread(h.ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ThreadFrozen, thread.State)

	version := h.stored(t, request.ID).Version
	attempts := map[string]func() error{
		"accept":    func() error { _, err := h.lifecycle.Accept(h.ctx, p, request.ID); return err },
		"decline":   func() error { _, err := h.lifecycle.Decline(h.ctx, p, request.ID, ""); return err },
		"cancel":    func() error { _, err := h.lifecycle.Cancel(h.ctx, u1, request.ID, ""); return err },
		"complete":  func() error { _, err := h.lifecycle.Complete(h.ctx, p, request.ID, CompleteInput{}); return err },
		"broadcast": func() error { _, err := h.lifecycle.Broadcast(h.ctx, u1, request.ID); return err },
		"offer":     func() error { _, err := h.lifecycle.Offer(h.ctx, u1, request.ID, "P"); return err },
		"outsider":  func() error { _, err := h.lifecycle.Cancel(h.ctx, Actor{UserID: "x"}, request.ID, "r"); return err },
		"provider offer": func() error {
			_, err := h.lifecycle.Offer(h.ctx, p, request.ID, "P")
			return err
		},
		"provider broadcast": func() error {
			_, err := h.lifecycle.Broadcast(h.ctx, p, request.ID)
			return err
		},
		"stranger broadcast": func() error {
			_, err := h.lifecycle.Broadcast(h.ctx, Actor{UserID: "x"}, request.ID)
			return err
		},
	}
	for name, attempt := range attempts {
		err := attempt()
		assert.True(t, errors.Is(err, errors.CodeInvalidTransition), "%s: %v", name, err)
	}
	assert.Equal(t, version, h.stored(t, request.ID).Version)
}

func TestCancelRules(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	p := h.onlineProvider(t, "P", 100, 4)
	request := h.open(t, u1, "")

	_, err := h.lifecycle.Cancel(h.ctx, Actor{UserID: "stranger"}, request.ID, "")
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	_, err = h.lifecycle.Accept(h.ctx, p, request.ID)
	require.NoError(t, err)

	_, err = h.lifecycle.Cancel(h.ctx, u1, request.ID, "")
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))

	_, err = h.lifecycle.Cancel(h.ctx, p, request.ID, "  ")
	assert.True(t, errors.Is(err, errors.CodeValidation))

	res, err := h.lifecycle.Cancel(h.ctx, p, request.ID, "sick")
	require.NoError(t, err)
	assert.Empty(t, res.Request.AcceptedProviderID)
	assert.Equal(t, "sick", res.Request.CancellationReason)
	require.NotNil(t, res.Booking)
	assert.Equal(t, entity.BookingCancelled, res.Booking.Status)
	assert.Len(t, h.notificationsFor(t, "u1", entity.NotifyRequestCancelled), 1)
	h.stored(t, request.ID)
}

func TestDeclineOfferReopensAndRematches(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	p := h.onlineProvider(t, "P", 100, 4)
	h.onlineProvider(t, "Q", 100, 4)
	request := h.open(t, u1, "P")

	res, err := h.lifecycle.Decline(h.ctx, p, request.ID, "busy")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOpen, res.Request.Status)
	assert.Empty(t, res.Request.TargetProviderID)
	assert.Contains(t, res.Request.DeclinedProviders, "P")

	_, err = h.chats.GetThread(h.ctx, request.ID)
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	assert.Len(t, h.notificationsFor(t, "u1", entity.NotifyRequestDeclined), 1)
	assert.Len(t, h.notificationsFor(t, "Q", entity.NotifyRequestAvailable), 1)
	assert.Empty(t, h.notificationsFor(t, "P", entity.NotifyRequestAvailable))
}

func TestDeclineBroadcastKeepsRequestOpen(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	p := h.onlineProvider(t, "P", 100, 4)
	request := h.open(t, u1, "")

	res, err := h.lifecycle.Decline(h.ctx, p, request.ID, "")
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, entity.StatusOpen, res.Request.Status)

	replay, err := h.lifecycle.Decline(h.ctx, p, request.ID, "")
	require.NoError(t, err)
	assert.False(t, replay.Applied)

	open, _, err := h.lifecycle.FindOpenForProvider(h.ctx, p, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = h.lifecycle.Accept(h.ctx, p, request.ID)
	assert.NoError(t, err, "declining a broadcast does not bar a later accept")
}

func TestBroadcastFallbackWaitsForOfferExpiry(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	h.provider(t, &entity.User{ID: "P", Online: false})
	h.onlineProvider(t, "Q", 100, 4)
	request := h.open(t, u1, "P")

	_, err := h.lifecycle.Broadcast(h.ctx, u1, request.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))

	_, err = h.lifecycle.Broadcast(h.ctx, Actor{UserID: "Q", Role: entity.RoleProvider}, request.ID)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	h.advance(testOfferTTL)
	res, err := h.lifecycle.Broadcast(h.ctx, u1, request.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOpen, res.Request.Status)
	assert.Empty(t, res.Request.TargetProviderID)
	assert.Len(t, h.notificationsFor(t, "Q", entity.NotifyRequestAvailable), 1)
	assert.Len(t, h.notificationsFor(t, "P", entity.NotifyOfferExpired), 1)

	_, err = h.lifecycle.Broadcast(h.ctx, u1, request.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidTransition))
}

func TestCompleteByAcceptedProviderOnly(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	p := h.onlineProvider(t, "P", 100, 4)
	request := h.open(t, u1, "")

	_, err := h.lifecycle.Complete(h.ctx, p, request.ID, CompleteInput{})
	assert.True(t, errors.Is(err, errors.CodeUnauthorized), "not yet a party")

	_, err = h.lifecycle.Accept(h.ctx, p, request.ID)
	require.NoError(t, err)

	_, err = h.lifecycle.Complete(h.ctx, u1, request.ID, CompleteInput{})
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	res, err := h.lifecycle.Complete(h.ctx, p, request.ID, CompleteInput{Notes: "fixed the leak", ProofURIs: []string{"gs://b/proofs/1.jpg"}})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, entity.StatusCompleted, res.Request.Status)
	require.NotNil(t, res.Booking)
	assert.Equal(t, entity.BookingCompleted, res.Booking.Status)
	assert.Equal(t, "fixed the leak", res.Booking.CompletionNotes)
	assert.NotNil(t, res.Booking.CompletedAt)

	replay, err := h.lifecycle.Complete(h.ctx, p, request.ID, CompleteInput{})
	require.NoError(t, err)
	assert.False(t, replay.Applied)

	thread, err := h.chats.GetThread(h.ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ThreadFrozen, thread.State)
}

func TestRoomEventsFollowCommitOrder(t *testing.T) {
	h := newHarness(t, nil)
	u1 := h.requester(t, "u1")
	p := h.onlineProvider(t, "P", 100, 4)
	request := h.open(t, u1, "P")

	_, err := h.lifecycle.Accept(h.ctx, p, request.ID)
	require.NoError(t, err)
	_, err = h.lifecycle.Complete(h.ctx, p, request.ID, CompleteInput{})
	require.NoError(t, err)

	events := h.realtime.roomEvents(request.ID, "request_updated")
	require.Len(t, events, 3)
	var types []string
	for i, e := range events {
		ev := e.payload.(*entity.LifecycleEvent)
		types = append(types, ev.Type)
		assert.Equal(t, int64(i+1), ev.Version)
	}
	assert.Equal(t, []string{
		entity.EventRequestCreated, entity.EventRequestAccepted, entity.EventRequestCompleted,
	}, types)
	assert.Equal(t, entity.StatusOffered, events[0].payload.(*entity.LifecycleEvent).ToStatus)
}

func TestLifecycleEventsReachStream(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := mocks.NewMockEventPublisher(ctrl)
	gomock.InOrder(
		events.EXPECT().Publish(gomock.Any(), eventOfType(entity.EventRequestCreated)).Return(nil),
		events.EXPECT().Publish(gomock.Any(), eventOfType(entity.EventRequestAccepted)).Return(nil),
		events.EXPECT().Publish(gomock.Any(), eventOfType(entity.EventRequestCompleted)).Return(assert.AnError),
	)

	h := newHarness(t, events)
	u1 := h.requester(t, "u1")
	p := h.onlineProvider(t, "P", 100, 4)
	request := h.open(t, u1, "")

	_, err := h.lifecycle.Accept(h.ctx, p, request.ID)
	require.NoError(t, err)

	// a stream failure never undoes a committed transition
	res, err := h.lifecycle.Complete(h.ctx, p, request.ID, CompleteInput{})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, res.Request.Status)
}

type eventTypeMatcher string

func eventOfType(t string) gomock.Matcher { return eventTypeMatcher(t) }

func (m eventTypeMatcher) Matches(x interface{}) bool {
	ev, ok := x.(*entity.LifecycleEvent)
	return ok && ev.Type == string(m)
}

func (m eventTypeMatcher) String() string { return "lifecycle event " + string(m) }

// Random walks over every operation and actor must never break the
// accepted-provider rule, never move a terminal request and only ever
// increase the version by one per applied change.
func TestLifecycleInvariantWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for walk := 0; walk < 30; walk++ {
		h := newHarness(t, nil)
		u1 := h.requester(t, "u1")
		providers := []Actor{
			h.onlineProvider(t, "P1", 100, 4),
			h.onlineProvider(t, "P2", 200, 5),
			h.provider(t, &entity.User{ID: "P3", Online: false}),
		}
		actors := append([]Actor{u1, {UserID: "stranger"}}, providers...)

		target := ""
		if rng.Intn(2) == 0 {
			target = providers[rng.Intn(len(providers))].UserID
		}
		request := h.open(t, u1, target)
		prev := h.stored(t, request.ID)

		for step := 0; step < 25; step++ {
			actor := actors[rng.Intn(len(actors))]
			var res *TransitionResult
			var err error
			switch rng.Intn(7) {
			case 0:
				res, err = h.lifecycle.Accept(h.ctx, actor, request.ID)
			case 1:
				res, err = h.lifecycle.Decline(h.ctx, actor, request.ID, "no")
			case 2:
				res, err = h.lifecycle.Cancel(h.ctx, actor, request.ID, "reason")
			case 3:
				res, err = h.lifecycle.Complete(h.ctx, actor, request.ID, CompleteInput{})
			case 4:
				h.advance(time.Duration(rng.Intn(40)) * time.Minute)
				res, err = h.lifecycle.Broadcast(h.ctx, actor, request.ID)
			case 5:
				res, err = h.lifecycle.Offer(h.ctx, actor, request.ID, providers[rng.Intn(len(providers))].UserID)
			case 6:
				_, err = h.lifecycle.Get(h.ctx, actor, request.ID)
			}

			cur := h.stored(t, request.ID)
			if prev.Status.IsTerminal() {
				assert.Equal(t, prev.Status, cur.Status)
				assert.Equal(t, prev.Version, cur.Version)
			}
			switch {
			case err != nil || res == nil || !res.Applied:
				assert.Equal(t, prev.Version, cur.Version, "rejected or replayed command changed the record: %v", err)
			default:
				assert.Equal(t, prev.Version+1, cur.Version)
				assert.True(t, isValidTransition(prev.Status, cur.Status), "%s -> %s", prev.Status, cur.Status)
			}
			prev = cur
		}
	}
}
