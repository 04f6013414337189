package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cityworks/addressing-service/internal/domain"
	"github.com/cityworks/addressing-service/internal/events"

	"github.com/google/uuid"
)

// PriorityUpdater recomputes priority and remaining business days for every
// open ticket. It is a pure batch entry point; scheduling lives in the
// worker package.
type PriorityUpdater struct {
	tickets    TicketStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time
}

// NewPriorityUpdater constructs the updater.
func NewPriorityUpdater(tickets TicketStore, dispatcher events.Dispatcher, logger *zap.Logger, clock func() time.Time) *PriorityUpdater {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &PriorityUpdater{tickets: tickets, dispatcher: dispatcher, logger: logger, clock: clock}
}

// Run walks every open ticket with a due date and brings priority and
// timeToResolve in line with the current date. A failure on one ticket is
// logged and does not abort the rest of the batch. Returns the number of
// tickets whose priority changed.
func (u *PriorityUpdater) Run(ctx context.Context) (int, error) {
	now := u.clock()
	tickets, err := u.tickets.ListOpen(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range tickets {
		ticket := &tickets[i]
		if ticket.DueDate.IsZero() {
			continue
		}

		newPriority := PriorityFromDueDate(ticket.DueDate, now)
		remaining := BusinessDaysBetween(now, ticket.DueDate)
		if remaining < 0 {
			remaining = 0
		}

		priorityChanged := newPriority != ticket.Priority
		if !priorityChanged && remaining == ticket.TimeToResolve {
			continue
		}

		oldPriority := ticket.Priority
		expectedVersion := ticket.Version
		ticket.Priority = newPriority
		ticket.TimeToResolve = remaining
		ticket.UpdatedAt = now

		if err := u.tickets.Update(ctx, ticket, expectedVersion, nil); err != nil {
			u.logger.Warn("priority update failed for ticket",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}

		if priorityChanged {
			changed++
			u.publishPriorityChange(ctx, ticket.ID, oldPriority, newPriority)
		}
	}

	u.logger.Info("priority update pass finished",
		zap.Int("scanned", len(tickets)), zap.Int("changed", changed))
	return changed, nil
}

func (u *PriorityUpdater) publishPriorityChange(ctx context.Context, ticketID string, oldPriority, newPriority domain.TicketPriority) {
	if u.dispatcher == nil {
		return
	}
	_ = u.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventPriorityChanged,
		TicketID:  ticketID,
		ActorID:   domain.SystemActorID,
		Timestamp: u.clock(),
		Payload: events.PriorityChangedPayload{
			OldPriority: oldPriority,
			NewPriority: newPriority,
		},
	})
}
