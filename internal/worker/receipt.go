// Package worker runs background consumers of the lifecycle event stream.
package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/wb-go/wbf/retry"

	"neighborly/internal/domain/entity"
	"neighborly/internal/domain/repository"
	"neighborly/internal/infrastructure/kafka"
	"neighborly/pkg/logger"
)

type eventSource interface {
	Consume(ctx context.Context, out chan<- kafka.Delivery) error
}

type mailer interface {
	Send(to, subject, body string) error
}

// ReceiptWorker emails the requester a receipt for every completed request.
type ReceiptWorker struct {
	source   eventSource
	users    repository.UserRepository
	bookings repository.BookingRepository
	mailer   mailer
	strategy retry.Strategy
}

func NewReceiptWorker(
	source eventSource,
	users repository.UserRepository,
	bookings repository.BookingRepository,
	mailer mailer,
	strategy retry.Strategy,
) *ReceiptWorker {
	return &ReceiptWorker{
		source:   source,
		users:    users,
		bookings: bookings,
		mailer:   mailer,
		strategy: strategy,
	}
}

// Run blocks until ctx is done.
func (w *ReceiptWorker) Run(ctx context.Context, workerCount int) {
	deliveries := make(chan kafka.Delivery)

	go func() {
		if err := w.source.Consume(ctx, deliveries); err != nil {
			logger.Error("Receipt worker: consume failed: %v", err)
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func(id int) {
			logger.Info("receipt-worker-%d started", id)
			for {
				select {
				case <-ctx.Done():
					logger.Info("receipt-worker-%d shutting down", id)
					return
				case d := <-deliveries:
					w.Handle(ctx, d)
				}
			}
		}(i)
	}

	<-ctx.Done()
	logger.Info("Receipt worker stopped")
}

// Handle sends the receipt and commits the event. Events other than
// request.completed are committed untouched. A receipt that still fails after
// every retry is logged and committed so the partition keeps moving.
func (w *ReceiptWorker) Handle(ctx context.Context, d kafka.Delivery) {
	defer func() {
		if err := d.Ack(ctx); err != nil {
			logger.Error("Receipt worker: commit failed at offset %d: %v", d.Offset, err)
		}
	}()

	if d.Event == nil {
		logger.Warn("Receipt worker: skipping delivery at offset %d with no event", d.Offset)
		return
	}
	if d.Event.Type != entity.EventRequestCompleted {
		return
	}
	if d.Event.Request == nil {
		logger.Warn("Receipt worker: completion event for %s has no request snapshot", d.Event.RequestID)
		return
	}

	requester, err := w.users.GetByID(ctx, d.Event.Request.RequesterID)
	if err != nil {
		logger.Warn("Receipt worker: no requester profile for %s: %v", d.Event.RequestID, err)
		return
	}
	if requester.Email == "" {
		logger.Debug("Receipt worker: requester %s has no email", requester.ID)
		return
	}

	booking := d.Event.Booking
	if booking == nil {
		if booking, err = w.bookings.GetByID(ctx, d.Event.RequestID); err != nil {
			logger.Warn("Receipt worker: booking %s not found: %v", d.Event.RequestID, err)
			return
		}
	}

	subject, body := receipt(d.Event.Request, booking)
	err = retry.Do(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return w.mailer.Send(requester.Email, subject, body)
		}
	}, w.strategy)
	if err != nil {
		logger.Error("Receipt for %s dropped after %d attempts: %v", d.Event.RequestID, w.strategy.Attempts, err)
		return
	}
	logger.Info("Receipt for %s sent to %s", d.Event.RequestID, requester.ID)
}

func receipt(request *entity.ServiceRequest, booking *entity.Booking) (string, string) {
	subject := fmt.Sprintf("Receipt: %s", request.TypeOfWork)

	var b strings.Builder
	fmt.Fprintf(&b, "Your %s request has been completed.\n\n", request.TypeOfWork)
	fmt.Fprintf(&b, "Booking:  %s\n", booking.ID)
	fmt.Fprintf(&b, "Address:  %s\n", request.Address)
	fmt.Fprintf(&b, "Budget:   %.2f\n", booking.Budget)
	if booking.CompletedAt != nil {
		fmt.Fprintf(&b, "Finished: %s\n", booking.CompletedAt.Format("2006-01-02 15:04 MST"))
	}
	if booking.CompletionNotes != "" {
		fmt.Fprintf(&b, "\nNotes from your provider:\n%s\n", booking.CompletionNotes)
	}
	if len(booking.ProofURIs) > 0 {
		fmt.Fprintf(&b, "\n%d proof photo(s) are attached to the booking.\n", len(booking.ProofURIs))
	}
	b.WriteString("\nYou can rate the job from the booking page.\n")
	return subject, b.String()
}
