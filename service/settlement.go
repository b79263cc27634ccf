package service

import (
	"context"
	"fmt"
	"time"

	"bingocore/events"
	"bingocore/models"
)

// Ticket settlement helpers shared by the coordinator and the no-winner
// policies. All of them run inside the caller's transaction; each settles a
// ticket exactly once — the repository rejects a second settlement with
// ErrDuplicateSettlement, which callers must propagate, never swallow.

// refundTicket returns a held ticket's funds to its original payer.
func refundTicket(ctx context.Context, uow UnitOfWork, ticket *models.HoldTicket, now time.Time) error {
	if err := uow.EscrowRepository().SettleTicket(ctx, ticket.ID, models.TicketStateRefunded, now); err != nil {
		return fmt.Errorf("failed to settle ticket %s: %w", ticket.ID, err)
	}
	if err := uow.EscrowRepository().SubtractHeld(ctx, ticket.EventID, ticket.Amount); err != nil {
		return fmt.Errorf("failed to subtract held balance: %w", err)
	}

	if ticket.UserID == nil {
		// A carried-over pot has no payer to refund; the caller decides
		// where it goes.
		return fmt.Errorf("pot ticket %s cannot be refunded to a payer", ticket.ID)
	}
	payerID := *ticket.UserID

	newBalance, err := uow.UserRepository().CreditAvailable(ctx, payerID, ticket.Amount)
	if err != nil {
		return fmt.Errorf("failed to credit payer: %w", err)
	}

	history := &models.CreditHistory{
		UserID:          payerID,
		BalanceBefore:   newBalance.Sub(ticket.Amount),
		BalanceAfter:    newBalance,
		ChangeAmount:    ticket.Amount,
		TransactionType: models.TransactionTypeRefund,
		TransactionMetadata: map[string]any{
			"ticket_id": ticket.ID.String(),
		},
		RelatedEventID: &ticket.EventID,
	}
	if err := RecordCreditChange(ctx, uow, history); err != nil {
		return err
	}

	uow.EventBus().Publish(events.EscrowRefundedEvent{
		EventID:  ticket.EventID,
		TicketID: ticket.ID,
		PayerID:  ticket.UserID,
		Amount:   ticket.Amount,
	})

	return nil
}

// releaseTicketEscrow performs the escrow side of a release: the ticket is
// settled and the held balance drops. Crediting the payees is the caller's
// responsibility because payouts are aggregated per winner, not per ticket.
func releaseTicketEscrow(ctx context.Context, uow UnitOfWork, ticket *models.HoldTicket, now time.Time) error {
	if err := uow.EscrowRepository().SettleTicket(ctx, ticket.ID, models.TicketStateReleased, now); err != nil {
		return fmt.Errorf("failed to settle ticket %s: %w", ticket.ID, err)
	}
	if err := uow.EscrowRepository().SubtractHeld(ctx, ticket.EventID, ticket.Amount); err != nil {
		return fmt.Errorf("failed to subtract held balance: %w", err)
	}

	uow.EventBus().Publish(events.EscrowReleasedEvent{
		EventID:  ticket.EventID,
		TicketID: ticket.ID,
		Amount:   ticket.Amount,
	})

	return nil
}

// carryTicket moves a ticket's funds into the successor event's escrow as a
// payerless pot ticket.
func carryTicket(ctx context.Context, uow UnitOfWork, ticket *models.HoldTicket, successorID int64, now time.Time) error {
	if err := releaseTicketEscrow(ctx, uow, ticket, now); err != nil {
		return err
	}

	if err := uow.EscrowRepository().AddHeld(ctx, successorID, ticket.Amount); err != nil {
		return fmt.Errorf("failed to add to successor escrow: %w", err)
	}

	pot := models.NewPotTicket(successorID, ticket.Amount)
	if err := uow.EscrowRepository().CreateTicket(ctx, pot); err != nil {
		return fmt.Errorf("failed to create pot ticket: %w", err)
	}

	uow.EventBus().Publish(events.EscrowHeldEvent{
		EventID:  successorID,
		TicketID: pot.ID,
		Amount:   ticket.Amount,
	})

	return nil
}
