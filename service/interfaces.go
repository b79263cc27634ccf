package service

import (
	"context"
	"time"

	"bingocore/events"
	"bingocore/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by ID, nil when not found
	GetByID(ctx context.Context, userID int64) (*models.User, error)

	// GetByUsername retrieves a user by username, nil when not found
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// Create creates a new user with the starting credits
	Create(ctx context.Context, username string, startingCredits decimal.Decimal) (*models.User, error)

	// DebitAvailable atomically deducts from available credits and returns
	// the resulting balance. Fails with ErrInsufficientFunds when the
	// balance check does not pass; the check and the deduction are one
	// statement so concurrent buy-ins cannot race past it.
	DebitAvailable(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)

	// CreditAvailable atomically adds to available credits and returns the
	// resulting balance
	CreditAvailable(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)

	// ApplyBlock sets the blocked state and moves all available credits to
	// blocked credits in a single statement. Returns the frozen amount.
	ApplyBlock(ctx context.Context, userID int64, state models.BlockState) (decimal.Decimal, error)

	// ApplyUnblock clears the blocked state. When refundable, blocked
	// credits move back to available; otherwise they are zeroed for the
	// administrative write-off. Returns the released amount.
	ApplyUnblock(ctx context.Context, userID int64, refundable bool) (decimal.Decimal, error)

	// IncrementCompletedEvents increments the completion counter and
	// returns the new total
	IncrementCompletedEvents(ctx context.Context, userID int64) (int, error)

	// SetReputationScore stores the recomputed reputation score
	SetReputationScore(ctx context.Context, userID int64, score int) error
}

// EventRepository defines the interface for game/raffle data access
type EventRepository interface {
	// Create creates a new event in the OPEN state
	Create(ctx context.Context, event *models.Event) error

	// GetByID retrieves an event by ID, nil when not found
	GetByID(ctx context.Context, eventID int64) (*models.Event, error)

	// GetByIDForUpdate retrieves an event and row-locks it, serializing
	// all escrow and draw operations on the same event
	GetByIDForUpdate(ctx context.Context, eventID int64) (*models.Event, error)

	// UpdateState transitions the event between states. The update is
	// conditional on the expected prior state; zero rows affected means
	// the transition raced or is illegal.
	UpdateState(ctx context.Context, eventID int64, from, to models.EventState, at time.Time) error

	// GetOldestOpen returns the oldest OPEN event of the kind excluding
	// the given ID, nil when none exists. Used by the carry-over policy.
	GetOldestOpen(ctx context.Context, kind models.EventKind, excludeID int64) (*models.Event, error)

	// RecordWinners stores the winners detected for an event
	RecordWinners(ctx context.Context, winners []*models.Winner) error

	// ListWinners returns the recorded winners for an event
	ListWinners(ctx context.Context, eventID int64) ([]*models.Winner, error)
}

// EscrowRepository defines the interface for escrow accounts and hold tickets
type EscrowRepository interface {
	// CreateAccount creates the event's escrow account with zero balance
	CreateAccount(ctx context.Context, eventID int64) error

	// GetAccount retrieves an event's escrow account, nil when not found
	GetAccount(ctx context.Context, eventID int64) (*models.EscrowAccount, error)

	// AddHeld increases the held balance
	AddHeld(ctx context.Context, eventID int64, amount decimal.Decimal) error

	// SubtractHeld decreases the held balance, failing when it would go
	// negative
	SubtractHeld(ctx context.Context, eventID int64, amount decimal.Decimal) error

	// CreateTicket stores a new active hold ticket
	CreateTicket(ctx context.Context, ticket *models.HoldTicket) error

	// GetTicket retrieves a ticket by ID, nil when not found
	GetTicket(ctx context.Context, ticketID uuid.UUID) (*models.HoldTicket, error)

	// ListActiveTickets returns the unsettled tickets for an event
	ListActiveTickets(ctx context.Context, eventID int64) ([]*models.HoldTicket, error)

	// SettleTicket marks an active ticket released or refunded. Settling a
	// ticket that is not active fails with ErrDuplicateSettlement.
	SettleTicket(ctx context.Context, ticketID uuid.UUID, state models.TicketState, at time.Time) error
}

// CardRepository defines the interface for bingo card data access
type CardRepository interface {
	// Create stores a generated card
	Create(ctx context.Context, card *models.Card) error

	// GetByEventAndUser retrieves a participant's card, nil when not found
	GetByEventAndUser(ctx context.Context, eventID, userID int64) (*models.Card, error)

	// ListByEvent returns all cards issued for an event
	ListByEvent(ctx context.Context, eventID int64) ([]*models.Card, error)

	// CountByEvent returns the number of participants holding cards
	CountByEvent(ctx context.Context, eventID int64) (int, error)
}

// DrawRepository defines the interface for the called-number sequence
type DrawRepository interface {
	// Append appends the next called number at the given 1-based position
	Append(ctx context.Context, eventID int64, position, number int) error

	// Get returns the event's draw state in call order
	Get(ctx context.Context, eventID int64) (*models.DrawState, error)
}

// CreditHistoryRepository defines the interface for credit change tracking
type CreditHistoryRepository interface {
	// Record creates a new credit history entry
	Record(ctx context.Context, history *models.CreditHistory) error

	// GetByUser returns credit history for a specific user
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.CreditHistory, error)
}

// TrustService gates participation and manages the blocking state machine
type TrustService interface {
	// CheckAdmission returns nil when the user may join an event, or
	// ErrUserBlocked with the block reason
	CheckAdmission(ctx context.Context, userID int64) error

	// Block freezes the user: sets the blocked state and moves available
	// credits to blocked credits in one transaction
	Block(ctx context.Context, userID int64, reason string, actorID *int64, until *time.Time) error

	// Unblock clears the blocked state, returning frozen credits unless a
	// dispute marked them non-refundable
	Unblock(ctx context.Context, userID int64, refundable bool) error
}

// EconomyService orchestrates admission, escrow, draws and settlement for
// games and raffles
type EconomyService interface {
	// CreateEvent creates a new OPEN event with its escrow account
	CreateEvent(ctx context.Context, kind models.EventKind, cardPrice decimal.Decimal, minParticipants int, pattern models.WinPattern) (*models.Event, error)

	// Admit buys a user into an event: trust check, escrow hold and card
	// issue in one transaction
	Admit(ctx context.Context, userID, eventID int64, amount decimal.Decimal) (*models.Card, error)

	// StartDrawing transitions OPEN to DRAWING. Unless forced, the event
	// must have reached its minimum participant count.
	StartDrawing(ctx context.Context, eventID int64, force bool) error

	// DrawNext calls the next number. Detecting a winner transitions the
	// event to SETTLING; exhausting all 75 numbers applies the configured
	// no-winner policy.
	DrawNext(ctx context.Context, eventID int64) (int, error)

	// CheckWinners evaluates every card against the called numbers
	CheckWinners(ctx context.Context, eventID int64) ([]*models.Winner, error)

	// Settle releases every ticket to the recorded winners and closes the
	// event, crediting reputations for all participants
	Settle(ctx context.Context, eventID int64) error

	// Cancel refunds every outstanding ticket and transitions the event to
	// CANCELLED. Transient refund failures are retried with backoff; any
	// residual tickets stay queryable until drained.
	Cancel(ctx context.Context, eventID int64) error

	// DrainResiduals retries refunds still outstanding on a cancelled event
	DrainResiduals(ctx context.Context, eventID int64) error

	// RunDrawLoop drives DrawNext on an interval until the event leaves the
	// DRAWING state or the context is cancelled
	RunDrawLoop(ctx context.Context, eventID int64, interval time.Duration)
}

// UserService defines the interface for user operations
type UserService interface {
	// GetOrCreateUser retrieves an existing user or creates a new one with
	// the starting credits
	GetOrCreateUser(ctx context.Context, username string) (*models.User, error)

	// GetUser retrieves a user by ID
	GetUser(ctx context.Context, userID int64) (*models.User, error)

	// Status returns the balances and trust state for the application layer
	Status(ctx context.Context, userID int64) (*models.UserStatus, error)
}

// ReputationStrategy computes a user's score from their completion history.
// The exact curve is a policy parameter, not fixed by the core.
type ReputationStrategy interface {
	// Score returns the reputation score after completedEvents completions
	Score(completedEvents int) int
}

// NoWinnerPolicy resolves an event whose draw completed with no winner. The
// resolution runs inside the caller's transaction.
type NoWinnerPolicy interface {
	// Resolve settles or refunds the event's outstanding tickets
	Resolve(ctx context.Context, uow UnitOfWork, event *models.Event) error

	// Name identifies the policy in logs and metadata
	Name() string
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	EventRepository() EventRepository
	EscrowRepository() EscrowRepository
	CardRepository() CardRepository
	DrawRepository() DrawRepository
	CreditHistoryRepository() CreditHistoryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance
	Create() UnitOfWork
}
