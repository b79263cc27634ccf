package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bingocore/bingo"
	"bingocore/config"
	"bingocore/events"
	"bingocore/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type economyService struct {
	uowFactory UnitOfWorkFactory
	cfg        *config.Config
	strategy   ReputationStrategy
	noWinner   NoWinnerPolicy
}

// NewEconomyService creates the game economy coordinator. Reputation scoring
// and the no-winner fallback are pluggable policies.
func NewEconomyService(uowFactory UnitOfWorkFactory, cfg *config.Config, strategy ReputationStrategy, noWinner NoWinnerPolicy) EconomyService {
	return &economyService{
		uowFactory: uowFactory,
		cfg:        cfg,
		strategy:   strategy,
		noWinner:   noWinner,
	}
}

var knownPatterns = map[models.WinPattern]bool{
	models.WinPatternHorizontal: true,
	models.WinPatternVertical:   true,
	models.WinPatternDiagonal:   true,
	models.WinPatternFull:       true,
	models.WinPatternCorners:    true,
}

// CreateEvent creates a new OPEN event together with its escrow account
func (s *economyService) CreateEvent(ctx context.Context, kind models.EventKind, cardPrice decimal.Decimal, minParticipants int, pattern models.WinPattern) (*models.Event, error) {
	if kind != models.EventKindGame && kind != models.EventKindRaffle {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	if !cardPrice.IsPositive() {
		return nil, fmt.Errorf("card price must be positive")
	}
	if cardPrice.LessThan(s.cfg.MinCardPrice) {
		return nil, fmt.Errorf("card price %s is below the minimum %s", cardPrice, s.cfg.MinCardPrice)
	}
	if !knownPatterns[pattern] {
		return nil, fmt.Errorf("unknown win pattern %q", pattern)
	}
	if minParticipants <= 0 {
		minParticipants = s.cfg.DefaultMinParticipants
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	event := &models.Event{
		Kind:            kind,
		State:           models.EventStateOpen,
		CardPrice:       cardPrice,
		MinParticipants: minParticipants,
		Pattern:         pattern,
	}
	if err := uow.EventRepository().Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	if err := uow.EscrowRepository().CreateAccount(ctx, event.ID); err != nil {
		return nil, fmt.Errorf("failed to create escrow account: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return event, nil
}

// Admit buys a user into an event. The admission check, the debit, the
// escrow hold, the ticket and the card all commit or roll back together.
func (s *economyService) Admit(ctx context.Context, userID, eventID int64, amount decimal.Decimal) (*models.Card, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("buy-in amount must be positive")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Row-locking the event serializes buy-ins, draws and settlement on it.
	event, err := uow.EventRepository().GetByIDForUpdate(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("%w: id %d", models.ErrEventNotFound, eventID)
	}
	if !event.CanAcceptBuyIns() {
		return nil, fmt.Errorf("%w: event %d is %s", models.ErrEventNotOpen, eventID, event.State)
	}
	if amount.LessThan(event.CardPrice) {
		return nil, fmt.Errorf("amount %s is below the card price %s", amount, event.CardPrice)
	}

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: id %d", models.ErrUserNotFound, userID)
	}
	if err := user.AdmissionError(time.Now(), s.cfg.MinReputationScore); err != nil {
		return nil, err
	}

	existing, err := uow.CardRepository().GetByEventAndUser(ctx, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing card: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("user %d already holds a card for event %d", userID, eventID)
	}

	// The debit is conditional on the balance, so two concurrent buy-ins
	// cannot both pass the sufficiency check.
	newBalance, err := uow.UserRepository().DebitAvailable(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if err := uow.EscrowRepository().AddHeld(ctx, eventID, amount); err != nil {
		return nil, fmt.Errorf("failed to add to escrow: %w", err)
	}

	ticket := models.NewHoldTicket(eventID, userID, amount)
	if err := uow.EscrowRepository().CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create hold ticket: %w", err)
	}

	// Card generation failing means the entropy source is down; the buy-in
	// must not proceed without fair randomness.
	card, err := bingo.Generate()
	if err != nil {
		return nil, err
	}
	card.EventID = eventID
	card.UserID = userID
	if err := uow.CardRepository().Create(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to store card: %w", err)
	}

	// Balances come from the debit itself, not from the earlier read, so the
	// history stays correct when the same user buys into other events in
	// parallel.
	history := &models.CreditHistory{
		UserID:          userID,
		BalanceBefore:   newBalance.Add(amount),
		BalanceAfter:    newBalance,
		ChangeAmount:    amount.Neg(),
		TransactionType: models.TransactionTypeBuyIn,
		TransactionMetadata: map[string]any{
			"ticket_id": ticket.ID.String(),
			"card_id":   card.ID.String(),
		},
		RelatedEventID: &eventID,
	}
	if err := RecordCreditChange(ctx, uow, history); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.EscrowHeldEvent{
		EventID:  eventID,
		UserID:   &userID,
		TicketID: ticket.ID,
		Amount:   amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return card, nil
}

// StartDrawing transitions OPEN -> DRAWING. Buy-ins are immutable
// commitments afterwards.
func (s *economyService) StartDrawing(ctx context.Context, eventID int64, force bool) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	event, err := uow.EventRepository().GetByIDForUpdate(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return fmt.Errorf("%w: id %d", models.ErrEventNotFound, eventID)
	}
	if event.State != models.EventStateOpen {
		return fmt.Errorf("%w: event %d is %s", models.ErrEventNotOpen, eventID, event.State)
	}

	count, err := uow.CardRepository().CountByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}
	if !force && count < event.MinParticipants {
		return fmt.Errorf("event %d has %d of %d required participants", eventID, count, event.MinParticipants)
	}

	now := time.Now()
	if err := uow.EventRepository().UpdateState(ctx, eventID, models.EventStateOpen, models.EventStateDrawing, now); err != nil {
		return fmt.Errorf("failed to start drawing: %w", err)
	}

	uow.EventBus().Publish(events.GameStateChangedEvent{
		EventID:  eventID,
		OldState: models.EventStateOpen,
		NewState: models.EventStateDrawing,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"eventID":      eventID,
		"participants": count,
	}).Info("Event started drawing")

	return nil
}

// DrawNext calls the next number for a DRAWING event. A winner moves the
// event to SETTLING; the 75th number without one applies the no-winner
// policy.
func (s *economyService) DrawNext(ctx context.Context, eventID int64) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	event, err := uow.EventRepository().GetByIDForUpdate(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return 0, fmt.Errorf("%w: id %d", models.ErrEventNotFound, eventID)
	}
	if event.State != models.EventStateDrawing {
		return 0, fmt.Errorf("%w: event %d is %s", models.ErrEventNotOpen, eventID, event.State)
	}

	draw, err := uow.DrawRepository().Get(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to get draw state: %w", err)
	}

	number, err := bingo.DrawNumber(draw.Numbers)
	if err != nil {
		return 0, err
	}
	if err := uow.DrawRepository().Append(ctx, eventID, len(draw.Numbers)+1, number); err != nil {
		return 0, fmt.Errorf("failed to append drawn number: %w", err)
	}
	called := append(draw.Numbers, number)

	winners, err := s.evaluateWinners(ctx, uow, event, called)
	if err != nil {
		return 0, err
	}

	switch {
	case len(winners) > 0:
		now := time.Now()
		if err := uow.EventRepository().RecordWinners(ctx, winners); err != nil {
			return 0, fmt.Errorf("failed to record winners: %w", err)
		}
		if err := uow.EventRepository().UpdateState(ctx, eventID, models.EventStateDrawing, models.EventStateSettling, now); err != nil {
			return 0, fmt.Errorf("failed to transition to settling: %w", err)
		}
		for _, w := range winners {
			uow.EventBus().Publish(events.WinnerDeclaredEvent{
				EventID: eventID,
				UserID:  w.UserID,
				Pattern: w.Pattern,
			})
		}
		uow.EventBus().Publish(events.GameStateChangedEvent{
			EventID:  eventID,
			OldState: models.EventStateDrawing,
			NewState: models.EventStateSettling,
		})

	case len(called) >= models.MaxDrawNumber:
		log.WithFields(log.Fields{
			"eventID": eventID,
			"policy":  s.noWinner.Name(),
		}).Info("Draw exhausted without a winner, applying no-winner policy")
		if err := s.noWinner.Resolve(ctx, uow, event); err != nil {
			return 0, fmt.Errorf("no-winner policy %q failed: %w", s.noWinner.Name(), err)
		}
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return number, nil
}

// CheckWinners evaluates every card against the called numbers. Read-only;
// safe to call in any state for replay or audit.
func (s *economyService) CheckWinners(ctx context.Context, eventID int64) ([]*models.Winner, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	event, err := uow.EventRepository().GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("%w: id %d", models.ErrEventNotFound, eventID)
	}

	draw, err := uow.DrawRepository().Get(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get draw state: %w", err)
	}

	return s.evaluateWinners(ctx, uow, event, draw.Numbers)
}

func (s *economyService) evaluateWinners(ctx context.Context, uow UnitOfWork, event *models.Event, called []int) ([]*models.Winner, error) {
	cards, err := uow.CardRepository().ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	var winners []*models.Winner
	for _, card := range cards {
		if bingo.IsWinner(card, called, event.Pattern) {
			winners = append(winners, &models.Winner{
				EventID: event.ID,
				UserID:  card.UserID,
				Pattern: event.Pattern,
			})
		}
	}
	return winners, nil
}

// Settle releases every ticket for a SETTLING event, splits the pot across
// the recorded winners and closes the event. Any settlement failure aborts
// the transaction and leaves the event in SETTLING for operator attention.
func (s *economyService) Settle(ctx context.Context, eventID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	event, err := uow.EventRepository().GetByIDForUpdate(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return fmt.Errorf("%w: id %d", models.ErrEventNotFound, eventID)
	}
	if event.State != models.EventStateSettling {
		return fmt.Errorf("%w: event %d is %s", models.ErrEventNotOpen, eventID, event.State)
	}

	winners, err := uow.EventRepository().ListWinners(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to list winners: %w", err)
	}
	if len(winners) == 0 {
		return fmt.Errorf("event %d is settling but has no recorded winners", eventID)
	}

	tickets, err := uow.EscrowRepository().ListActiveTickets(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to list active tickets: %w", err)
	}

	now := time.Now()
	pot := decimal.Zero
	participants := make(map[int64]bool)

	for _, ticket := range tickets {
		pot = pot.Add(ticket.Amount)
		if ticket.UserID != nil {
			participants[*ticket.UserID] = true
		}
		if err := releaseTicketEscrow(ctx, uow, ticket, now); err != nil {
			return err
		}
	}

	// Split the pot evenly; the rounding remainder goes to the first winner.
	n := decimal.NewFromInt(int64(len(winners)))
	share := pot.Div(n).Truncate(2)
	remainder := pot.Sub(share.Mul(n))

	for i, winner := range winners {
		payout := share
		if i == 0 {
			payout = payout.Add(remainder)
		}
		if payout.IsZero() {
			continue
		}

		newBalance, err := uow.UserRepository().CreditAvailable(ctx, winner.UserID, payout)
		if err != nil {
			return fmt.Errorf("failed to credit winner: %w", err)
		}

		history := &models.CreditHistory{
			UserID:          winner.UserID,
			BalanceBefore:   newBalance.Sub(payout),
			BalanceAfter:    newBalance,
			ChangeAmount:    payout,
			TransactionType: models.TransactionTypePayout,
			TransactionMetadata: map[string]any{
				"pattern": string(winner.Pattern),
				"pot":     pot.String(),
			},
			RelatedEventID: &eventID,
		}
		if err := RecordCreditChange(ctx, uow, history); err != nil {
			return err
		}
	}

	for userID := range participants {
		if err := recordCompletion(ctx, uow, s.strategy, userID); err != nil {
			return err
		}
	}

	if err := uow.EventRepository().UpdateState(ctx, eventID, models.EventStateSettling, models.EventStateClosed, now); err != nil {
		return fmt.Errorf("failed to close event: %w", err)
	}

	uow.EventBus().Publish(events.GameStateChangedEvent{
		EventID:  eventID,
		OldState: models.EventStateSettling,
		NewState: models.EventStateClosed,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"eventID": eventID,
		"pot":     pot,
		"winners": len(winners),
	}).Info("Event settled")

	return nil
}

// Cancel transitions the event to CANCELLED and refunds every outstanding
// ticket. The transition commits first, so a crash mid-drain leaves a
// CANCELLED event with residual tickets rather than an un-cancelled one.
func (s *economyService) Cancel(ctx context.Context, eventID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	event, err := uow.EventRepository().GetByIDForUpdate(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return fmt.Errorf("%w: id %d", models.ErrEventNotFound, eventID)
	}
	if !event.CanTransitionTo(models.EventStateCancelled) {
		return fmt.Errorf("%w: event %d is %s", models.ErrEventNotOpen, eventID, event.State)
	}

	if err := uow.EventRepository().UpdateState(ctx, eventID, event.State, models.EventStateCancelled, time.Now()); err != nil {
		return fmt.Errorf("failed to cancel event: %w", err)
	}

	uow.EventBus().Publish(events.GameStateChangedEvent{
		EventID:  eventID,
		OldState: event.State,
		NewState: models.EventStateCancelled,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.drainRefunds(ctx, eventID)
}

// DrainResiduals retries refunds still outstanding on a cancelled event.
func (s *economyService) DrainResiduals(ctx context.Context, eventID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	event, err := uow.EventRepository().GetByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return fmt.Errorf("%w: id %d", models.ErrEventNotFound, eventID)
	}
	if event.State != models.EventStateCancelled {
		return fmt.Errorf("%w: event %d is %s, not cancelled", models.ErrEventNotOpen, eventID, event.State)
	}
	uow.Rollback()

	return s.drainRefunds(ctx, eventID)
}

// drainRefunds refunds every active ticket of a cancelled event, retrying
// transient failures with exponential backoff. Tickets that still fail stay
// active and are reported; unrefunded money is never silently abandoned.
func (s *economyService) drainRefunds(ctx context.Context, eventID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	tickets, err := uow.EscrowRepository().ListActiveTickets(ctx, eventID)
	uow.Rollback()
	if err != nil {
		return fmt.Errorf("failed to list active tickets: %w", err)
	}

	var errs error
	residual := 0
	for _, ticket := range tickets {
		ticketID := ticket.ID
		operation := func() error {
			err := s.refundOne(ctx, eventID, ticketID)
			if err == nil {
				return nil
			}
			if errors.Is(err, models.ErrTransientStore) {
				return err
			}
			return backoff.Permanent(err)
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = s.cfg.RefundRetryBaseWait
		policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.cfg.RefundRetryMax)), ctx)

		if err := backoff.Retry(operation, policy); err != nil {
			residual++
			errs = multierror.Append(errs, fmt.Errorf("ticket %s: %w", ticketID, err))
			log.WithFields(log.Fields{
				"eventID":  eventID,
				"ticketID": ticketID,
			}).WithError(err).Error("Refund failed after retries, ticket left residual")
		}
	}

	if residual > 0 {
		return fmt.Errorf("event %d left with %d residual tickets: %w", eventID, residual, errs)
	}
	return nil
}

// refundOne refunds a single ticket in its own transaction.
func (s *economyService) refundOne(ctx context.Context, eventID int64, ticketID uuid.UUID) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Lock the event row first, matching the lock order of every other
	// per-event operation.
	event, err := uow.EventRepository().GetByIDForUpdate(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return fmt.Errorf("%w: id %d", models.ErrEventNotFound, eventID)
	}

	ticket, err := uow.EscrowRepository().GetTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return fmt.Errorf("ticket %s not found", ticketID)
	}
	if !ticket.IsActive() {
		// Already drained by a concurrent call.
		return nil
	}

	if ticket.IsPotCarry() {
		if err := carryPotForward(ctx, uow, event, ticket, time.Now()); err != nil {
			return err
		}
	} else if err := refundTicket(ctx, uow, ticket, time.Now()); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RunDrawLoop drives DrawNext on a fixed interval until the event leaves the
// DRAWING state or the context is cancelled.
func (s *economyService) RunDrawLoop(ctx context.Context, eventID int64, interval time.Duration) {
	logger := log.WithField("eventID", eventID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Draw loop stopped by context")
			return
		case <-ticker.C:
			number, err := s.DrawNext(ctx, eventID)
			switch {
			case errors.Is(err, models.ErrEventNotOpen):
				logger.Info("Draw loop finished, event left drawing state")
				return
			case errors.Is(err, models.ErrTransientStore):
				logger.WithError(err).Warn("Transient store failure, retrying on next tick")
			case err != nil:
				logger.WithError(err).Error("Draw loop aborting")
				return
			default:
				logger.WithField("number", number).Info("Number called")
			}
		}
	}
}
