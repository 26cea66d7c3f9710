package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/internal/infrastructure/ratelimit"
	"neighborly/pkg/errors"
	"neighborly/pkg/logger"
	"neighborly/pkg/utils"
)

// validTransitions is the lifecycle graph. Anything not listed is rejected
// with InvalidTransition before the store is touched.
var validTransitions = map[entity.RequestStatus]map[entity.RequestStatus]bool{
	entity.StatusOpen: {
		entity.StatusOpen:      true, // decline on broadcast, explicit broadcast fallback
		entity.StatusOffered:   true,
		entity.StatusWorking:   true,
		entity.StatusCancelled: true,
	},
	entity.StatusOffered: {
		entity.StatusOpen:      true,
		entity.StatusWorking:   true,
		entity.StatusCancelled: true,
	},
	entity.StatusWorking: {
		entity.StatusCompleted: true,
		entity.StatusCancelled: true,
	},
}

func isValidTransition(from, to entity.RequestStatus) bool {
	return validTransitions[from][to]
}

type ServiceRequestUseCase struct {
	requestRepo repository.ServiceRequestRepository
	bookingRepo repository.BookingRepository
	userRepo    repository.UserRepository
	matching    *MatchingUseCase
	chat        *ChatUseCase
	notifier    *NotificationUseCase
	realtime    RealtimePublisher
	events      EventPublisher
	geocoder    Geocoder
	rateLimiter *ratelimit.RateLimiter

	locks    *utils.KeyedMutex
	offerTTL time.Duration
	now      func() time.Time
	async    func(func())
}

func NewServiceRequestUseCase(
	requestRepo repository.ServiceRequestRepository,
	bookingRepo repository.BookingRepository,
	userRepo repository.UserRepository,
	matching *MatchingUseCase,
	chat *ChatUseCase,
	notifier *NotificationUseCase,
	realtime RealtimePublisher,
	events EventPublisher,
	geocoder Geocoder,
	rateLimiter *ratelimit.RateLimiter,
	offerTTL time.Duration,
) *ServiceRequestUseCase {
	if events == nil {
		events = NopEventPublisher()
	}
	return &ServiceRequestUseCase{
		requestRepo: requestRepo,
		bookingRepo: bookingRepo,
		userRepo:    userRepo,
		matching:    matching,
		chat:        chat,
		notifier:    notifier,
		realtime:    realtime,
		events:      events,
		geocoder:    geocoder,
		rateLimiter: rateLimiter,
		locks:       utils.NewKeyedMutex(),
		offerTTL:    offerTTL,
		now:         time.Now,
		async:       func(f func()) { go f() },
	}
}

type CreateRequestInput struct {
	TypeOfWork       string
	Budget           float64
	Address          string
	Location         *entity.GeoPoint
	PreferredDate    string
	PreferredTime    string
	Notes            string
	TargetProviderID string
}

// TransitionResult separates a command that changed state (Applied) from an
// idempotent replay that returned the already-committed state.
type TransitionResult struct {
	Request *entity.ServiceRequest `json:"request"`
	Booking *entity.Booking        `json:"booking,omitempty"`
	Applied bool                   `json:"-"`
}

func (uc *ServiceRequestUseCase) Create(ctx context.Context, actor Actor, input CreateRequestInput) (*TransitionResult, error) {
	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(actor.UserID, ratelimit.ActionCreateRequest); !allowed {
			return nil, errors.TooManyRequests(fmt.Sprintf("Too many requests, retry in %s", wait.Round(time.Second)), nil)
		}
	}

	typeOfWork := strings.TrimSpace(input.TypeOfWork)
	if typeOfWork == "" {
		return nil, errors.Validation("type of work is required", nil)
	}
	if input.Budget < 0 {
		return nil, errors.Validation("budget must be at least 0", nil)
	}
	if strings.TrimSpace(input.Address) == "" && input.Location == nil {
		return nil, errors.Validation("address or location is required", nil)
	}
	if input.TargetProviderID != "" && input.TargetProviderID == actor.UserID {
		return nil, errors.Validation("you cannot offer a request to yourself", nil)
	}

	now := uc.now()
	request := &entity.ServiceRequest{
		RequesterID:      actor.UserID,
		TypeOfWork:       typeOfWork,
		Budget:           input.Budget,
		Address:          strings.TrimSpace(input.Address),
		Location:         input.Location,
		PreferredDate:    input.PreferredDate,
		PreferredTime:    input.PreferredTime,
		Notes:            input.Notes,
		Status:           entity.StatusOpen,
		TargetProviderID: input.TargetProviderID,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	// A direct request is stored already Offered, so a failed eligibility
	// check never leaves a record behind.
	if request.TargetProviderID != "" {
		candidates, err := uc.matching.FindCandidates(ctx, request)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, errors.Validation("provider is not eligible for this request", nil)
		}
		request.Status = entity.StatusOffered
		request.OfferedAt = &now
	}
	if request.Address == "" {
		request.Address = uc.resolveAddress(ctx, *input.Location)
	}

	if err := uc.requestRepo.Create(ctx, request); err != nil {
		return nil, err
	}
	logger.LogTransition(request.ID, "", string(request.Status), actor.UserID, request.Version)

	unlock := uc.locks.Lock(request.ID)
	defer unlock()

	uc.emit(ctx, entity.EventRequestCreated, actor, "", request, nil)

	if request.Status == entity.StatusOffered {
		uc.offered(ctx, request)
	} else {
		uc.announce(ctx, request)
	}
	return &TransitionResult{Request: request, Applied: true}, nil
}

// resolveAddress never fails; without a geocoder the raw coordinates are used.
func (uc *ServiceRequestUseCase) resolveAddress(ctx context.Context, point entity.GeoPoint) string {
	raw := fmt.Sprintf("%.6f, %.6f", point.Lat, point.Lng)
	if uc.geocoder == nil {
		return raw
	}
	address, err := uc.geocoder.ReverseGeocode(ctx, point)
	if err != nil || address == "" {
		logger.Warn("Reverse geocoding failed for %s, keeping coordinates: %v", raw, err)
		return raw
	}
	return address
}

func (uc *ServiceRequestUseCase) Offer(ctx context.Context, actor Actor, requestID, providerID string) (*TransitionResult, error) {
	if providerID == "" {
		return nil, errors.Validation("provider_id is required", nil)
	}

	unlock := uc.locks.Lock(requestID)
	defer unlock()

	current, err := uc.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, uc.reject(current, "offer", actor, errors.InvalidTransition(fmt.Sprintf("Request is already %s", current.Status)))
	}
	if !actor.IsSystem() && actor.UserID != current.RequesterID {
		return nil, uc.reject(current, "offer", actor, errors.Unauthorized("Only the requester can offer this request", nil))
	}
	if current.Status != entity.StatusOpen {
		return nil, uc.reject(current, "offer", actor, errors.InvalidTransition(fmt.Sprintf("Cannot offer a request that is %s", current.Status)))
	}
	if current.TargetProviderID != "" && current.TargetProviderID != providerID {
		return nil, uc.reject(current, "offer", actor, errors.InvalidTransition("Request is already addressed to another provider"))
	}

	return uc.offer(ctx, actor, current, providerID)
}

// offer runs with the request lock held.
func (uc *ServiceRequestUseCase) offer(ctx context.Context, actor Actor, current *entity.ServiceRequest, providerID string) (*TransitionResult, error) {
	addressed := current.Clone()
	addressed.TargetProviderID = providerID
	candidates, err := uc.matching.FindCandidates(ctx, addressed)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, uc.reject(current, "offer", actor, errors.Validation("provider is not eligible for this request", nil))
	}

	now := uc.now()
	next := current.Clone()
	next.Status = entity.StatusOffered
	next.TargetProviderID = providerID
	next.OfferedAt = &now

	if err := uc.commit(ctx, actor, current, next); err != nil {
		return nil, err
	}

	uc.offered(ctx, next)
	uc.emit(ctx, entity.EventRequestOffered, actor, current.Status, next, nil)
	return &TransitionResult{Request: next, Applied: true}, nil
}

// offered opens the read-only offer thread and tells the target provider.
func (uc *ServiceRequestUseCase) offered(ctx context.Context, request *entity.ServiceRequest) {
	if err := uc.chat.openOfferThread(ctx, request); err != nil {
		logger.Error("Failed to open offer thread for request %s: %v", request.ID, err)
	}
	uc.notifier.Notify(ctx, request.TargetProviderID, entity.NotifyRequestOffered, "New job offer",
		fmt.Sprintf("You have been offered a %s job", request.TypeOfWork),
		map[string]interface{}{"request_id": request.ID, "budget": request.Budget})
}

func (uc *ServiceRequestUseCase) Accept(ctx context.Context, actor Actor, requestID string) (*TransitionResult, error) {
	unlock := uc.locks.Lock(requestID)
	defer unlock()

	current, err := uc.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if replay, err := uc.acceptOutcome(ctx, actor, current); replay != nil || err != nil {
		if err != nil {
			return nil, uc.reject(current, "accept", actor, err)
		}
		return replay, nil
	}

	provider, err := uc.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.Unauthorized("Only providers can accept requests", nil)
		}
		return nil, err
	}
	if err := uc.checkAcceptor(ctx, current, provider); err != nil {
		return nil, uc.reject(current, "accept", actor, err)
	}

	now := uc.now()
	next := current.Clone()
	next.Status = entity.StatusWorking
	next.AcceptedProviderID = actor.UserID
	next.AcceptedAt = &now

	if err := uc.commit(ctx, actor, current, next); err != nil {
		if !errors.Is(err, errors.CodeConflict) {
			return nil, err
		}
		// Lost the race on another instance; report what actually happened.
		latest, getErr := uc.requestRepo.GetByID(ctx, requestID)
		if getErr != nil {
			return nil, getErr
		}
		replay, outcomeErr := uc.acceptOutcome(ctx, actor, latest)
		if outcomeErr != nil {
			return nil, uc.reject(latest, "accept", actor, outcomeErr)
		}
		if replay != nil {
			return replay, nil
		}
		return nil, errors.RequestAlreadyTaken()
	}

	booking := &entity.Booking{
		ID:               next.ID,
		ServiceRequestID: next.ID,
		ProviderID:       next.AcceptedProviderID,
		RequesterID:      next.RequesterID,
		TypeOfWork:       next.TypeOfWork,
		Budget:           next.Budget,
		Status:           entity.BookingActive,
	}
	if err := uc.bookingRepo.Create(ctx, booking); err != nil {
		if !errors.Is(err, errors.CodeConflict) {
			logger.Error("Failed to create booking for request %s: %v", next.ID, err)
		}
		if existing, getErr := uc.bookingRepo.GetByID(ctx, next.ID); getErr == nil {
			booking = existing
		}
	}

	if err := uc.chat.openThread(ctx, next); err != nil {
		logger.Error("Failed to open chat for request %s: %v", next.ID, err)
	}
	uc.notifier.Notify(ctx, next.RequesterID, entity.NotifyRequestAccepted, "Request accepted",
		fmt.Sprintf("%s accepted your %s request", displayName(provider), next.TypeOfWork),
		map[string]interface{}{"request_id": next.ID, "provider_id": provider.ID})

	uc.emit(ctx, entity.EventRequestAccepted, actor, current.Status, next, booking)
	return &TransitionResult{Request: next, Booking: booking, Applied: true}, nil
}

// acceptOutcome resolves accept against states where no write is needed.
// A nil result and nil error means the accept may proceed.
func (uc *ServiceRequestUseCase) acceptOutcome(ctx context.Context, actor Actor, current *entity.ServiceRequest) (*TransitionResult, error) {
	switch current.Status {
	case entity.StatusCancelled:
		return nil, errors.InvalidTransition("Request has been cancelled")
	case entity.StatusWorking, entity.StatusCompleted:
		if current.AcceptedProviderID != actor.UserID {
			return nil, errors.RequestAlreadyTaken()
		}
		booking, err := uc.bookingRepo.GetByID(ctx, current.ID)
		if err != nil {
			booking = nil
		}
		return &TransitionResult{Request: current, Booking: booking}, nil
	}
	return nil, nil
}

func (uc *ServiceRequestUseCase) checkAcceptor(ctx context.Context, current *entity.ServiceRequest, provider *entity.User) error {
	if !provider.IsProvider() {
		return errors.Unauthorized("Only providers can accept requests", nil)
	}
	if provider.ID == current.RequesterID {
		return errors.Unauthorized("You cannot accept your own request", nil)
	}
	if current.TargetProviderID != "" && current.TargetProviderID != provider.ID {
		return errors.Unauthorized("This request was offered to another provider", nil)
	}
	if !provider.HasSkill(current.TypeOfWork) {
		return errors.Validation(fmt.Sprintf("you do not offer %s", current.TypeOfWork), nil)
	}
	requester, err := uc.matching.lookupRequester(ctx, current.RequesterID)
	if err != nil {
		return err
	}
	if entity.Blocks(requester, provider) {
		return errors.Unauthorized("You cannot accept this request", nil)
	}
	return nil
}

func (uc *ServiceRequestUseCase) Decline(ctx context.Context, actor Actor, requestID, reason string) (*TransitionResult, error) {
	unlock := uc.locks.Lock(requestID)
	defer unlock()

	current, err := uc.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.Status != entity.StatusOpen && current.Status != entity.StatusOffered {
		return nil, uc.reject(current, "decline", actor, errors.InvalidTransition(fmt.Sprintf("Cannot decline a request that is %s", current.Status)))
	}
	if actor.UserID == current.RequesterID || actor.Role != entity.RoleProvider {
		return nil, uc.reject(current, "decline", actor, errors.Unauthorized("Only providers can decline requests", nil))
	}

	next := current.Clone()
	next.Status = entity.StatusOpen

	if current.TargetProviderID == "" {
		if current.HasDeclined(actor.UserID) {
			return &TransitionResult{Request: current}, nil
		}
		next.DeclinedProviders = append(next.DeclinedProviders, actor.UserID)
		if err := uc.commit(ctx, actor, current, next); err != nil {
			return nil, err
		}
		uc.emit(ctx, entity.EventRequestDeclined, actor, current.Status, next, nil)
		return &TransitionResult{Request: next, Applied: true}, nil
	}

	if current.TargetProviderID != actor.UserID {
		return nil, uc.reject(current, "decline", actor, errors.Unauthorized("This request was offered to another provider", nil))
	}

	next.TargetProviderID = ""
	next.OfferedAt = nil
	next.DeclinedProviders = append(next.DeclinedProviders, actor.UserID)
	if err := uc.commit(ctx, actor, current, next); err != nil {
		return nil, err
	}

	if err := uc.chat.dropThread(ctx, next.ID); err != nil {
		logger.Error("Failed to remove offer thread for request %s: %v", next.ID, err)
	}
	message := "The provider declined your request. We are looking for someone else."
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("The provider declined your request: %s. We are looking for someone else.", reason)
	}
	uc.notifier.Notify(ctx, next.RequesterID, entity.NotifyRequestDeclined, "Offer declined", message,
		map[string]interface{}{"request_id": next.ID, "provider_id": actor.UserID})

	uc.emit(ctx, entity.EventRequestDeclined, actor, current.Status, next, nil)
	uc.announce(ctx, next)
	return &TransitionResult{Request: next, Applied: true}, nil
}

func (uc *ServiceRequestUseCase) Cancel(ctx context.Context, actor Actor, requestID, reason string) (*TransitionResult, error) {
	unlock := uc.locks.Lock(requestID)
	defer unlock()

	current, err := uc.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, uc.reject(current, "cancel", actor, errors.InvalidTransition(fmt.Sprintf("Request is already %s", current.Status)))
	}

	reason = strings.TrimSpace(reason)
	switch {
	case actor.UserID == current.RequesterID:
		if current.Status == entity.StatusWorking {
			return nil, uc.reject(current, "cancel", actor, errors.InvalidTransition("Requests in progress can only be cancelled by the provider"))
		}
	case actor.UserID == current.AcceptedProviderID:
		if reason == "" {
			return nil, errors.Validation("reason is required", nil)
		}
	case actor.UserID == current.TargetProviderID:
		return nil, uc.reject(current, "cancel", actor, errors.InvalidTransition("A pending offer can only be declined by the provider"))
	default:
		return nil, uc.reject(current, "cancel", actor, errors.Unauthorized("You are not a party to this request", nil))
	}

	now := uc.now()
	next := current.Clone()
	next.Status = entity.StatusCancelled
	next.AcceptedProviderID = ""
	next.CancelledBy = actor.UserID
	next.CancellationReason = reason
	next.CancelledAt = &now

	if err := uc.commit(ctx, actor, current, next); err != nil {
		return nil, err
	}

	var booking *entity.Booking
	if current.Status == entity.StatusWorking {
		booking, err = uc.bookingRepo.GetByID(ctx, next.ID)
		if err == nil {
			booking.Status = entity.BookingCancelled
			if err := uc.bookingRepo.Update(ctx, booking); err != nil {
				logger.Error("Failed to cancel booking %s: %v", booking.ID, err)
			}
		} else {
			booking = nil
			logger.Error("Booking missing for cancelled request %s: %v", next.ID, err)
		}
	}

	if err := uc.chat.freezeThread(ctx, next.ID); err != nil {
		logger.Error("Failed to freeze chat for request %s: %v", next.ID, err)
	}

	if other := current.CounterpartOf(actor.UserID); other != "" {
		message := fmt.Sprintf("The %s request was cancelled", next.TypeOfWork)
		if reason != "" {
			message += ": " + reason
		}
		uc.notifier.Notify(ctx, other, entity.NotifyRequestCancelled, "Request cancelled", message,
			map[string]interface{}{"request_id": next.ID, "cancelled_by": actor.UserID})
	}

	uc.emit(ctx, entity.EventRequestCancelled, actor, current.Status, next, booking)
	return &TransitionResult{Request: next, Booking: booking, Applied: true}, nil
}

type CompleteInput struct {
	Notes     string
	ProofURIs []string
}

func (uc *ServiceRequestUseCase) Complete(ctx context.Context, actor Actor, requestID string, input CompleteInput) (*TransitionResult, error) {
	unlock := uc.locks.Lock(requestID)
	defer unlock()

	current, err := uc.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if current.Status == entity.StatusCompleted && current.AcceptedProviderID == actor.UserID {
		booking, _ := uc.bookingRepo.GetByID(ctx, current.ID)
		return &TransitionResult{Request: current, Booking: booking}, nil
	}
	if current.Status.IsTerminal() {
		return nil, uc.reject(current, "complete", actor, errors.InvalidTransition(fmt.Sprintf("Request is already %s", current.Status)))
	}
	if !current.IsParty(actor.UserID) {
		return nil, uc.reject(current, "complete", actor, errors.Unauthorized("You are not a party to this request", nil))
	}
	if current.Status != entity.StatusWorking {
		return nil, uc.reject(current, "complete", actor, errors.InvalidTransition(fmt.Sprintf("Cannot complete a request that is %s", current.Status)))
	}
	if actor.UserID != current.AcceptedProviderID {
		return nil, uc.reject(current, "complete", actor, errors.Unauthorized("Only the accepted provider can complete this request", nil))
	}

	now := uc.now()
	next := current.Clone()
	next.Status = entity.StatusCompleted
	next.CompletedAt = &now

	if err := uc.commit(ctx, actor, current, next); err != nil {
		return nil, err
	}

	booking, err := uc.bookingRepo.GetByID(ctx, next.ID)
	if err != nil {
		logger.Error("Booking missing for completed request %s: %v", next.ID, err)
		booking = nil
	} else {
		booking.Status = entity.BookingCompleted
		booking.CompletedAt = &now
		booking.CompletionNotes = strings.TrimSpace(input.Notes)
		booking.ProofURIs = append(booking.ProofURIs, input.ProofURIs...)
		if err := uc.bookingRepo.Update(ctx, booking); err != nil {
			logger.Error("Failed to update booking %s: %v", booking.ID, err)
		}
	}

	if err := uc.chat.freezeThread(ctx, next.ID); err != nil {
		logger.Error("Failed to freeze chat for request %s: %v", next.ID, err)
	}
	uc.notifier.Notify(ctx, next.RequesterID, entity.NotifyRequestCompleted, "Job completed",
		fmt.Sprintf("Your %s request has been completed", next.TypeOfWork),
		map[string]interface{}{"request_id": next.ID, "provider_id": actor.UserID})

	uc.emit(ctx, entity.EventRequestCompleted, actor, current.Status, next, booking)
	return &TransitionResult{Request: next, Booking: booking, Applied: true}, nil
}

// Broadcast withdraws a direct offer and reopens the request to every
// matching provider. It is only allowed once the offer has expired, or while
// an Open request still carries a target.
func (uc *ServiceRequestUseCase) Broadcast(ctx context.Context, actor Actor, requestID string) (*TransitionResult, error) {
	unlock := uc.locks.Lock(requestID)
	defer unlock()

	current, err := uc.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, uc.reject(current, "broadcast", actor, errors.InvalidTransition(fmt.Sprintf("Request is already %s", current.Status)))
	}
	if actor.UserID != current.RequesterID {
		return nil, uc.reject(current, "broadcast", actor, errors.Unauthorized("Only the requester can broadcast this request", nil))
	}

	switch {
	case current.Status == entity.StatusOpen && current.TargetProviderID != "":
	case current.Status == entity.StatusOffered && current.OfferExpired(uc.now(), uc.offerTTL):
	case current.Status == entity.StatusOffered:
		return nil, uc.reject(current, "broadcast", actor, errors.InvalidTransition("The offer is still waiting for the provider"))
	default:
		return nil, uc.reject(current, "broadcast", actor, errors.InvalidTransition(fmt.Sprintf("Cannot broadcast a request that is %s", current.Status)))
	}

	previousTarget := current.TargetProviderID
	next := current.Clone()
	next.Status = entity.StatusOpen
	next.TargetProviderID = ""
	next.OfferedAt = nil

	if err := uc.commit(ctx, actor, current, next); err != nil {
		return nil, err
	}

	if err := uc.chat.dropThread(ctx, next.ID); err != nil {
		logger.Error("Failed to remove offer thread for request %s: %v", next.ID, err)
	}
	uc.notifier.Notify(ctx, previousTarget, entity.NotifyOfferExpired, "Offer withdrawn",
		fmt.Sprintf("The %s offer is no longer available", next.TypeOfWork),
		map[string]interface{}{"request_id": next.ID})

	uc.emit(ctx, entity.EventRequestReopened, actor, current.Status, next, nil)
	uc.announce(ctx, next)
	return &TransitionResult{Request: next, Applied: true}, nil
}

// commit bumps the version and writes next only if the stored record still
// matches current. Callers hold the request lock.
func (uc *ServiceRequestUseCase) commit(ctx context.Context, actor Actor, current, next *entity.ServiceRequest) error {
	if !isValidTransition(current.Status, next.Status) {
		return errors.InvalidTransition(fmt.Sprintf("Cannot move request from %s to %s", current.Status, next.Status))
	}
	if next.Status.HasAcceptedProvider() != (next.AcceptedProviderID != "") {
		return errors.Internal("accepted provider does not match status", nil)
	}

	next.Version = current.Version + 1
	next.UpdatedAt = uc.now()

	if err := uc.requestRepo.UpdateIf(ctx, next, current.Status, current.Version); err != nil {
		if errors.Is(err, errors.CodeConflict) {
			log.Printf("Transition conflict on request %s (expected %s v%d)", current.ID, current.Status, current.Version)
		}
		return err
	}

	logger.LogTransition(next.ID, string(current.Status), string(next.Status), actor.UserID, next.Version)
	return nil
}

// emit publishes a committed transition to the request room, the parties'
// personal channels and the event stream. Callers hold the request lock so
// room events keep commit order.
func (uc *ServiceRequestUseCase) emit(ctx context.Context, eventType string, actor Actor, from entity.RequestStatus, request *entity.ServiceRequest, booking *entity.Booking) {
	event := &entity.LifecycleEvent{
		Type:       eventType,
		RequestID:  request.ID,
		ActorID:    actor.UserID,
		FromStatus: from,
		ToStatus:   request.Status,
		Version:    request.Version,
		Request:    request,
		Booking:    booking,
		OccurredAt: uc.now(),
	}

	uc.realtime.PublishToRoom(request.ID, "request_updated", event)
	for _, userID := range uniqueIDs(request.RequesterID, request.TargetProviderID, request.AcceptedProviderID, actor.UserID) {
		if userID == SystemActor.UserID {
			continue
		}
		uc.realtime.PublishToUser(userID, "request_updated", event)
	}

	if err := uc.events.Publish(ctx, event); err != nil {
		logger.Error("Failed to publish %s for request %s: %v", eventType, request.ID, err)
	}
}

// announce notifies current candidates of an Open broadcast request in the background.
func (uc *ServiceRequestUseCase) announce(ctx context.Context, request *entity.ServiceRequest) {
	snapshot := request.Clone()
	bg := context.WithoutCancel(ctx)
	uc.async(func() {
		candidates, err := uc.matching.FindCandidates(bg, snapshot)
		if err != nil {
			logger.Warn("Matching failed for request %s: %v", snapshot.ID, err)
			return
		}
		for _, c := range candidates {
			uc.notifier.Notify(bg, c.ProviderID, entity.NotifyRequestAvailable, "New request nearby",
				fmt.Sprintf("A %s request is available", snapshot.TypeOfWork),
				map[string]interface{}{"request_id": snapshot.ID, "budget": snapshot.Budget})
		}
		logger.Info("Request %s announced to %d providers", snapshot.ID, len(candidates))
	})
}

func (uc *ServiceRequestUseCase) reject(request *entity.ServiceRequest, action string, actor Actor, err error) error {
	logger.LogTransitionRejected(request.ID, action, actor.UserID, err)
	return err
}

func uniqueIDs(ids ...string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func displayName(u *entity.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return "A provider"
}
