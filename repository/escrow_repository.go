package repository

import (
	"context"
	"fmt"
	"time"

	"bingocore/database"
	"bingocore/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// EscrowRepository implements the service.EscrowRepository interface
type EscrowRepository struct {
	q queryable
}

// NewEscrowRepository creates a new escrow repository
func NewEscrowRepository(db *database.DB) *EscrowRepository {
	return &EscrowRepository{q: db.Pool}
}

// newEscrowRepositoryWithTx creates a new escrow repository with a transaction
func newEscrowRepositoryWithTx(tx queryable) *EscrowRepository {
	return &EscrowRepository{q: tx}
}

// CreateAccount creates the event's escrow account with zero balance
func (r *EscrowRepository) CreateAccount(ctx context.Context, eventID int64) error {
	query := `
		INSERT INTO escrow_accounts (event_id, held_balance)
		VALUES ($1, 0)
	`

	if _, err := r.q.Exec(ctx, query, eventID); err != nil {
		return classifyErr(fmt.Errorf("failed to create escrow account for event %d: %w", eventID, err))
	}

	return nil
}

// GetAccount retrieves an event's escrow account
func (r *EscrowRepository) GetAccount(ctx context.Context, eventID int64) (*models.EscrowAccount, error) {
	query := `
		SELECT event_id, held_balance, created_at, updated_at
		FROM escrow_accounts
		WHERE event_id = $1
	`

	var account models.EscrowAccount
	err := r.q.QueryRow(ctx, query, eventID).Scan(
		&account.EventID,
		&account.HeldBalance,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to get escrow account for event %d: %w", eventID, err))
	}

	return &account, nil
}

// AddHeld increases the held balance
func (r *EscrowRepository) AddHeld(ctx context.Context, eventID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE escrow_accounts
		SET held_balance = held_balance + $1, updated_at = NOW()
		WHERE event_id = $2
	`

	result, err := r.q.Exec(ctx, query, amount, eventID)
	if err != nil {
		return classifyErr(fmt.Errorf("failed to add to escrow for event %d: %w", eventID, err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("escrow account for event %d not found", eventID)
	}

	return nil
}

// SubtractHeld decreases the held balance. The balance check is part of the
// UPDATE so the held balance can never go negative.
func (r *EscrowRepository) SubtractHeld(ctx context.Context, eventID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE escrow_accounts
		SET held_balance = held_balance - $1, updated_at = NOW()
		WHERE event_id = $2
		  AND held_balance >= $1
	`

	result, err := r.q.Exec(ctx, query, amount, eventID)
	if err != nil {
		return classifyErr(fmt.Errorf("failed to subtract from escrow for event %d: %w", eventID, err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("escrow account for event %d cannot release %s", eventID, amount)
	}

	return nil
}

// CreateTicket stores a new active hold ticket
func (r *EscrowRepository) CreateTicket(ctx context.Context, ticket *models.HoldTicket) error {
	query := `
		INSERT INTO hold_tickets (id, event_id, user_id, amount, state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query,
		ticket.ID,
		ticket.EventID,
		ticket.UserID,
		ticket.Amount,
		ticket.State,
	).Scan(&ticket.CreatedAt)

	if err != nil {
		return classifyErr(fmt.Errorf("failed to create hold ticket %s: %w", ticket.ID, err))
	}

	return nil
}

// GetTicket retrieves a ticket by ID
func (r *EscrowRepository) GetTicket(ctx context.Context, ticketID uuid.UUID) (*models.HoldTicket, error) {
	query := `
		SELECT id, event_id, user_id, amount, state, created_at, settled_at
		FROM hold_tickets
		WHERE id = $1
	`

	var ticket models.HoldTicket
	err := r.q.QueryRow(ctx, query, ticketID).Scan(
		&ticket.ID,
		&ticket.EventID,
		&ticket.UserID,
		&ticket.Amount,
		&ticket.State,
		&ticket.CreatedAt,
		&ticket.SettledAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to get ticket %s: %w", ticketID, err))
	}

	return &ticket, nil
}

// ListActiveTickets returns the unsettled tickets for an event
func (r *EscrowRepository) ListActiveTickets(ctx context.Context, eventID int64) ([]*models.HoldTicket, error) {
	query := `
		SELECT id, event_id, user_id, amount, state, created_at, settled_at
		FROM hold_tickets
		WHERE event_id = $1 AND state = $2
		ORDER BY created_at, id
	`

	rows, err := r.q.Query(ctx, query, eventID, models.TicketStateActive)
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to list active tickets for event %d: %w", eventID, err))
	}
	defer rows.Close()

	var tickets []*models.HoldTicket
	for rows.Next() {
		var ticket models.HoldTicket
		err := rows.Scan(
			&ticket.ID,
			&ticket.EventID,
			&ticket.UserID,
			&ticket.Amount,
			&ticket.State,
			&ticket.CreatedAt,
			&ticket.SettledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hold ticket: %w", err)
		}
		tickets = append(tickets, &ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hold tickets: %w", err)
	}

	return tickets, nil
}

// SettleTicket marks an active ticket released or refunded. The state guard
// makes settlement idempotent to detect: a ticket already settled yields zero
// rows and ErrDuplicateSettlement, so no ticket can ever pay out twice.
func (r *EscrowRepository) SettleTicket(ctx context.Context, ticketID uuid.UUID, state models.TicketState, at time.Time) error {
	if state != models.TicketStateReleased && state != models.TicketStateRefunded {
		return fmt.Errorf("invalid settlement state %q", state)
	}

	query := `
		UPDATE hold_tickets
		SET state = $1, settled_at = $2
		WHERE id = $3 AND state = $4
	`

	result, err := r.q.Exec(ctx, query, state, at, ticketID, models.TicketStateActive)
	if err != nil {
		return classifyErr(fmt.Errorf("failed to settle ticket %s: %w", ticketID, err))
	}

	if result.RowsAffected() == 0 {
		existing, err := r.GetTicket(ctx, ticketID)
		if err != nil {
			return fmt.Errorf("failed to check ticket: %w", err)
		}
		if existing == nil {
			return fmt.Errorf("ticket %s not found", ticketID)
		}
		return fmt.Errorf("%w: ticket %s is already %s", models.ErrDuplicateSettlement, ticketID, existing.State)
	}

	return nil
}
