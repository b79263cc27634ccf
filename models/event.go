package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind distinguishes bingo games from raffles. Both share the same
// escrow and settlement machinery.
type EventKind string

const (
	EventKindGame   EventKind = "game"
	EventKindRaffle EventKind = "raffle"
)

// EventState represents the lifecycle of a game or raffle.
type EventState string

const (
	EventStateOpen      EventState = "open"
	EventStateDrawing   EventState = "drawing"
	EventStateSettling  EventState = "settling"
	EventStateClosed    EventState = "closed"
	EventStateCancelled EventState = "cancelled"
)

// validTransitions encodes the state machine. CLOSED and CANCELLED are
// terminal.
var validTransitions = map[EventState][]EventState{
	EventStateOpen:     {EventStateDrawing, EventStateCancelled},
	EventStateDrawing:  {EventStateSettling, EventStateCancelled},
	EventStateSettling: {EventStateClosed},
}

// Event represents a single game or raffle owning its escrow account,
// participant cards and draw state.
type Event struct {
	ID              int64           `db:"id"`
	Kind            EventKind       `db:"kind"`
	State           EventState      `db:"state"`
	CardPrice       decimal.Decimal `db:"card_price"`
	MinParticipants int             `db:"min_participants"`
	Pattern         WinPattern      `db:"win_pattern"`
	CreatedAt       time.Time       `db:"created_at"`
	StartedAt       *time.Time      `db:"started_at"`
	SettledAt       *time.Time      `db:"settled_at"`
	CancelledAt     *time.Time      `db:"cancelled_at"`
}

// CanAcceptBuyIns reports whether new participants may still buy in.
func (e *Event) CanAcceptBuyIns() bool {
	return e.State == EventStateOpen
}

// IsTerminal reports whether no further transition may occur.
func (e *Event) IsTerminal() bool {
	return e.State == EventStateClosed || e.State == EventStateCancelled
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (e *Event) CanTransitionTo(next EventState) bool {
	for _, s := range validTransitions[e.State] {
		if s == next {
			return true
		}
	}
	return false
}

// Winner records a participant whose card satisfied the event's pattern.
type Winner struct {
	EventID   int64      `db:"event_id"`
	UserID    int64      `db:"user_id"`
	Pattern   WinPattern `db:"pattern"`
	CreatedAt time.Time  `db:"created_at"`
}
