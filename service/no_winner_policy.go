package service

import (
	"context"
	"fmt"
	"time"

	"bingocore/config"
	"bingocore/events"
	"bingocore/models"

	log "github.com/sirupsen/logrus"
)

// The no-winner fallback after all 75 numbers are drawn is a policy choice,
// not core behavior. Both variants run inside the draw transaction so a
// half-resolved event can never be observed.

type refundAllPolicy struct{}

// NewRefundAllPolicy returns the policy that refunds every participant when
// the draw exhausts without a winner. The event ends CANCELLED and no
// reputation is recorded; nobody completed anything.
func NewRefundAllPolicy() NoWinnerPolicy {
	return refundAllPolicy{}
}

func (refundAllPolicy) Name() string { return string(config.NoWinnerPolicyRefund) }

func (refundAllPolicy) Resolve(ctx context.Context, uow UnitOfWork, event *models.Event) error {
	now := time.Now()

	tickets, err := uow.EscrowRepository().ListActiveTickets(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to list active tickets: %w", err)
	}

	for _, ticket := range tickets {
		if ticket.IsPotCarry() {
			// A pot that failed to find a winner carries forward again.
			if err := carryPotForward(ctx, uow, event, ticket, now); err != nil {
				return err
			}
			continue
		}
		if err := refundTicket(ctx, uow, ticket, now); err != nil {
			return err
		}
	}

	if err := uow.EventRepository().UpdateState(ctx, event.ID, event.State, models.EventStateCancelled, now); err != nil {
		return fmt.Errorf("failed to cancel event: %w", err)
	}

	uow.EventBus().Publish(events.GameStateChangedEvent{
		EventID:  event.ID,
		OldState: event.State,
		NewState: models.EventStateCancelled,
	})

	return nil
}

type carryOverPolicy struct {
	strategy ReputationStrategy
}

// NewCarryOverPolicy returns the policy that rolls the pot into the oldest
// open event of the same kind. Participants played a full game, so their
// completions are recorded. With no successor available the policy falls
// back to refunding.
func NewCarryOverPolicy(strategy ReputationStrategy) NoWinnerPolicy {
	return carryOverPolicy{strategy: strategy}
}

func (carryOverPolicy) Name() string { return string(config.NoWinnerPolicyCarryOver) }

func (p carryOverPolicy) Resolve(ctx context.Context, uow UnitOfWork, event *models.Event) error {
	successor, err := uow.EventRepository().GetOldestOpen(ctx, event.Kind, event.ID)
	if err != nil {
		return fmt.Errorf("failed to find successor event: %w", err)
	}
	if successor == nil {
		log.WithField("eventID", event.ID).Warn("No open event to carry pot into, refunding instead")
		return refundAllPolicy{}.Resolve(ctx, uow, event)
	}

	now := time.Now()

	tickets, err := uow.EscrowRepository().ListActiveTickets(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to list active tickets: %w", err)
	}

	participants := make(map[int64]bool)
	for _, ticket := range tickets {
		if ticket.UserID != nil {
			participants[*ticket.UserID] = true
		}
		if err := carryTicket(ctx, uow, ticket, successor.ID, now); err != nil {
			return err
		}
	}

	// DRAWING -> SETTLING -> CLOSED: the event ran to its natural end.
	if err := uow.EventRepository().UpdateState(ctx, event.ID, event.State, models.EventStateSettling, now); err != nil {
		return fmt.Errorf("failed to transition event to settling: %w", err)
	}
	if err := uow.EventRepository().UpdateState(ctx, event.ID, models.EventStateSettling, models.EventStateClosed, now); err != nil {
		return fmt.Errorf("failed to close event: %w", err)
	}

	for userID := range participants {
		if err := recordCompletion(ctx, uow, p.strategy, userID); err != nil {
			return err
		}
	}

	uow.EventBus().Publish(events.GameStateChangedEvent{
		EventID:  event.ID,
		OldState: event.State,
		NewState: models.EventStateClosed,
	})

	log.WithFields(log.Fields{
		"eventID":     event.ID,
		"successorID": successor.ID,
	}).Info("Pot carried over to successor event")

	return nil
}

// carryPotForward re-carries a payerless pot ticket to the oldest open event
// of the same kind. Without a successor the ticket stays active and is
// reported as residual; money is never silently dropped.
func carryPotForward(ctx context.Context, uow UnitOfWork, event *models.Event, ticket *models.HoldTicket, now time.Time) error {
	successor, err := uow.EventRepository().GetOldestOpen(ctx, event.Kind, event.ID)
	if err != nil {
		return fmt.Errorf("failed to find successor event: %w", err)
	}
	if successor == nil {
		return fmt.Errorf("pot ticket %s has no successor event to carry into", ticket.ID)
	}
	return carryTicket(ctx, uow, ticket, successor.ID, now)
}
