package events

import (
	"context"
	"sync"

	"bingocore/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of domain events in the economy core
type EventType string

const (
	EventTypeCreditChange     EventType = "credit_change"
	EventTypeUserCreated      EventType = "user_created"
	EventTypeUserBlocked      EventType = "user_blocked"
	EventTypeUserUnblocked    EventType = "user_unblocked"
	EventTypeEscrowHeld       EventType = "escrow_held"
	EventTypeEscrowReleased   EventType = "escrow_released"
	EventTypeEscrowRefunded   EventType = "escrow_refunded"
	EventTypeGameStateChanged EventType = "game_state_changed"
	EventTypeWinnerDeclared   EventType = "winner_declared"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// CreditChangeEvent represents a credit balance change that occurred
type CreditChangeEvent struct {
	UserID          int64
	OldBalance      decimal.Decimal
	NewBalance      decimal.Decimal
	TransactionType models.TransactionType
	ChangeAmount    decimal.Decimal
}

func (e CreditChangeEvent) Type() EventType {
	return EventTypeCreditChange
}

// UserCreatedEvent represents a new user creation
type UserCreatedEvent struct {
	UserID         int64
	Username       string
	InitialCredits decimal.Decimal
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// UserBlockedEvent represents a user being blocked, with their credits frozen
type UserBlockedEvent struct {
	UserID        int64
	Reason        string
	ActorID       *int64
	FrozenCredits decimal.Decimal
}

func (e UserBlockedEvent) Type() EventType {
	return EventTypeUserBlocked
}

// UserUnblockedEvent represents a user being unblocked
type UserUnblockedEvent struct {
	UserID          int64
	ReleasedCredits decimal.Decimal
	Refundable      bool
}

func (e UserUnblockedEvent) Type() EventType {
	return EventTypeUserUnblocked
}

// EscrowHeldEvent represents funds moved into an event's escrow. UserID is
// nil for carried-over pot tickets.
type EscrowHeldEvent struct {
	EventID  int64
	UserID   *int64
	TicketID uuid.UUID
	Amount   decimal.Decimal
}

func (e EscrowHeldEvent) Type() EventType {
	return EventTypeEscrowHeld
}

// EscrowReleasedEvent represents a ticket released into the settlement pot.
// Who is paid out is announced per winner by WinnerDeclaredEvent.
type EscrowReleasedEvent struct {
	EventID  int64
	TicketID uuid.UUID
	Amount   decimal.Decimal
}

func (e EscrowReleasedEvent) Type() EventType {
	return EventTypeEscrowReleased
}

// EscrowRefundedEvent represents a ticket refunded to its payer
type EscrowRefundedEvent struct {
	EventID  int64
	TicketID uuid.UUID
	PayerID  *int64
	Amount   decimal.Decimal
}

func (e EscrowRefundedEvent) Type() EventType {
	return EventTypeEscrowRefunded
}

// GameStateChangedEvent represents a game/raffle state transition
type GameStateChangedEvent struct {
	EventID  int64
	OldState models.EventState
	NewState models.EventState
}

func (e GameStateChangedEvent) Type() EventType {
	return EventTypeGameStateChanged
}

// WinnerDeclaredEvent represents a card satisfying the event's win pattern
type WinnerDeclaredEvent struct {
	EventID int64
	UserID  int64
	Pattern models.WinPattern
}

func (e WinnerDeclaredEvent) Type() EventType {
	return EventTypeWinnerDeclared
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	// Call handlers asynchronously to avoid blocking the caller
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus stashes events published during a unit of work and flushes
// them to the underlying bus only after the transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush is called after a successful DB commit. Emission uses a background
// context because events outlive the transaction that produced them.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	eventCtx := context.Background()

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard is called after a rollback to drop pending events.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
