package service

import (
	"context"
	"fmt"

	"bingocore/events"
	"bingocore/models"
)

// RecordCreditChange records a credit history entry and emits the matching
// event. This is the single entry point for all credit changes in the core.
func RecordCreditChange(ctx context.Context, uow UnitOfWork, history *models.CreditHistory) error {
	if err := uow.CreditHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record credit history: %w", err)
	}

	// Emitted after the transaction commits
	uow.EventBus().Publish(events.CreditChangeEvent{
		UserID:          history.UserID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	if history.TransactionType == models.TransactionTypeInitial {
		if username, ok := history.TransactionMetadata["username"].(string); ok {
			uow.EventBus().Publish(events.UserCreatedEvent{
				UserID:         history.UserID,
				Username:       username,
				InitialCredits: history.BalanceAfter,
			})
		}
	}

	return nil
}

// recordCompletion applies one completed event to a participant: bumps the
// completion counter and recomputes the reputation score via the configured
// strategy. Runs inside the caller's transaction.
func recordCompletion(ctx context.Context, uow UnitOfWork, strategy ReputationStrategy, userID int64) error {
	completed, err := uow.UserRepository().IncrementCompletedEvents(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to increment completed events for user %d: %w", userID, err)
	}

	if err := uow.UserRepository().SetReputationScore(ctx, userID, strategy.Score(completed)); err != nil {
		return fmt.Errorf("failed to update reputation score for user %d: %w", userID, err)
	}

	return nil
}
