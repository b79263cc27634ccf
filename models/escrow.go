package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EscrowAccount holds the funds earmarked for one event. The held balance
// only grows through holds and only shrinks through settlement; at any
// quiescent point it equals the sum of the event's active tickets.
type EscrowAccount struct {
	EventID     int64           `db:"event_id"`
	HeldBalance decimal.Decimal `db:"held_balance"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// TicketState tracks settlement of a hold. A ticket is settled exactly once:
// released to a payee or refunded to the payer, never both.
type TicketState string

const (
	TicketStateActive   TicketState = "active"
	TicketStateReleased TicketState = "released"
	TicketStateRefunded TicketState = "refunded"
)

// HoldTicket is the unit of escrow accounting: one buy-in's worth of funds
// held against an event. UserID is nil for pot tickets carried over from an
// event that ended without a winner.
type HoldTicket struct {
	ID        uuid.UUID       `db:"id"`
	EventID   int64           `db:"event_id"`
	UserID    *int64          `db:"user_id"`
	Amount    decimal.Decimal `db:"amount"`
	State     TicketState     `db:"state"`
	CreatedAt time.Time       `db:"created_at"`
	SettledAt *time.Time      `db:"settled_at"`
}

// NewHoldTicket creates an active ticket for a participant's buy-in.
func NewHoldTicket(eventID, userID int64, amount decimal.Decimal) *HoldTicket {
	return &HoldTicket{
		ID:      uuid.New(),
		EventID: eventID,
		UserID:  &userID,
		Amount:  amount,
		State:   TicketStateActive,
	}
}

// NewPotTicket creates an active payerless ticket holding a pot carried over
// from an event that ended without a winner.
func NewPotTicket(eventID int64, amount decimal.Decimal) *HoldTicket {
	return &HoldTicket{
		ID:      uuid.New(),
		EventID: eventID,
		Amount:  amount,
		State:   TicketStateActive,
	}
}

// IsActive reports whether the ticket still awaits settlement.
func (t *HoldTicket) IsActive() bool {
	return t.State == TicketStateActive
}

// IsPotCarry reports whether the ticket is a carried-over pot with no
// original payer.
func (t *HoldTicket) IsPotCarry() bool {
	return t.UserID == nil
}
