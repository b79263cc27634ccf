package service

import (
	"context"
	"fmt"
	"time"

	"bingocore/config"
	"bingocore/events"
	"bingocore/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type trustService struct {
	uowFactory UnitOfWorkFactory
	cfg        *config.Config
}

// NewTrustService creates a new trust service
func NewTrustService(uowFactory UnitOfWorkFactory, cfg *config.Config) TrustService {
	return &trustService{
		uowFactory: uowFactory,
		cfg:        cfg,
	}
}

// CheckAdmission returns nil when the user may participate, or ErrUserBlocked.
func (s *trustService) CheckAdmission(ctx context.Context, userID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("%w: id %d", models.ErrUserNotFound, userID)
	}

	return user.AdmissionError(time.Now(), s.cfg.MinReputationScore)
}

// Block freezes the user. The blocked flag and the credit move into
// blocked_credits happen in one transaction, so there is no window where the
// flag and the balances disagree.
func (s *trustService) Block(ctx context.Context, userID int64, reason string, actorID *int64, until *time.Time) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("%w: id %d", models.ErrUserNotFound, userID)
	}

	now := time.Now()
	state := models.BlockState{
		Blocked: true,
		Reason:  reason,
		At:      &now,
		Until:   until,
		By:      actorID,
	}

	frozen, err := uow.UserRepository().ApplyBlock(ctx, userID, state)
	if err != nil {
		return fmt.Errorf("failed to apply block: %w", err)
	}

	if frozen.IsPositive() {
		history := &models.CreditHistory{
			UserID:          userID,
			BalanceBefore:   user.AvailableCredits,
			BalanceAfter:    decimal.Zero,
			ChangeAmount:    frozen.Neg(),
			TransactionType: models.TransactionTypeCreditsFrozen,
			TransactionMetadata: map[string]any{
				"reason": reason,
			},
		}
		if err := RecordCreditChange(ctx, uow, history); err != nil {
			return fmt.Errorf("failed to record credit change: %w", err)
		}
	}

	uow.EventBus().Publish(events.UserBlockedEvent{
		UserID:        userID,
		Reason:        reason,
		ActorID:       actorID,
		FrozenCredits: frozen,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID": userID,
		"reason": reason,
		"frozen": frozen,
	}).Info("User blocked")

	return nil
}

// Unblock clears the blocked state. Frozen credits return to the available
// balance unless a dispute marked them non-refundable, in which case the
// write-off is recorded for the administrative ledger.
func (s *trustService) Unblock(ctx context.Context, userID int64, refundable bool) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("%w: id %d", models.ErrUserNotFound, userID)
	}
	if !user.Block.Blocked {
		return fmt.Errorf("user %d is not blocked", userID)
	}

	released, err := uow.UserRepository().ApplyUnblock(ctx, userID, refundable)
	if err != nil {
		return fmt.Errorf("failed to apply unblock: %w", err)
	}

	if released.IsPositive() {
		history := &models.CreditHistory{
			UserID:          userID,
			BalanceBefore:   user.AvailableCredits,
			TransactionType: models.TransactionTypeCreditsUnfrozen,
			TransactionMetadata: map[string]any{
				"refundable": refundable,
			},
		}
		if refundable {
			history.BalanceAfter = user.AvailableCredits.Add(released)
			history.ChangeAmount = released
		} else {
			// Balance is unchanged; the frozen amount is written off.
			history.BalanceAfter = user.AvailableCredits
			history.ChangeAmount = decimal.Zero
			history.TransactionType = models.TransactionTypeWriteOff
			history.TransactionMetadata["written_off_amount"] = released.String()
		}
		if err := RecordCreditChange(ctx, uow, history); err != nil {
			return fmt.Errorf("failed to record credit change: %w", err)
		}
	}

	uow.EventBus().Publish(events.UserUnblockedEvent{
		UserID:          userID,
		ReleasedCredits: released,
		Refundable:      refundable,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"released":   released,
		"refundable": refundable,
	}).Info("User unblocked")

	return nil
}
