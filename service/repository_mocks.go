package service

import (
	"context"
	"time"

	"bingocore/events"
	"bingocore/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, username string, startingCredits decimal.Decimal) (*models.User, error) {
	args := m.Called(ctx, username, startingCredits)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) DebitAvailable(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockUserRepository) CreditAvailable(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockUserRepository) ApplyBlock(ctx context.Context, userID int64, state models.BlockState) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, state)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockUserRepository) ApplyUnblock(ctx context.Context, userID int64, refundable bool) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, refundable)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockUserRepository) IncrementCompletedEvents(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) SetReputationScore(ctx context.Context, userID int64, score int) error {
	args := m.Called(ctx, userID, score)
	return args.Error(0)
}

// MockEventRepository is a mock implementation of EventRepository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) GetByID(ctx context.Context, eventID int64) (*models.Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventRepository) GetByIDForUpdate(ctx context.Context, eventID int64) (*models.Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventRepository) UpdateState(ctx context.Context, eventID int64, from, to models.EventState, at time.Time) error {
	args := m.Called(ctx, eventID, from, to, at)
	return args.Error(0)
}

func (m *MockEventRepository) GetOldestOpen(ctx context.Context, kind models.EventKind, excludeID int64) (*models.Event, error) {
	args := m.Called(ctx, kind, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventRepository) RecordWinners(ctx context.Context, winners []*models.Winner) error {
	args := m.Called(ctx, winners)
	return args.Error(0)
}

func (m *MockEventRepository) ListWinners(ctx context.Context, eventID int64) ([]*models.Winner, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Winner), args.Error(1)
}

// MockEscrowRepository is a mock implementation of EscrowRepository
type MockEscrowRepository struct {
	mock.Mock
}

func (m *MockEscrowRepository) CreateAccount(ctx context.Context, eventID int64) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockEscrowRepository) GetAccount(ctx context.Context, eventID int64) (*models.EscrowAccount, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowAccount), args.Error(1)
}

func (m *MockEscrowRepository) AddHeld(ctx context.Context, eventID int64, amount decimal.Decimal) error {
	args := m.Called(ctx, eventID, amount)
	return args.Error(0)
}

func (m *MockEscrowRepository) SubtractHeld(ctx context.Context, eventID int64, amount decimal.Decimal) error {
	args := m.Called(ctx, eventID, amount)
	return args.Error(0)
}

func (m *MockEscrowRepository) CreateTicket(ctx context.Context, ticket *models.HoldTicket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func (m *MockEscrowRepository) GetTicket(ctx context.Context, ticketID uuid.UUID) (*models.HoldTicket, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HoldTicket), args.Error(1)
}

func (m *MockEscrowRepository) ListActiveTickets(ctx context.Context, eventID int64) ([]*models.HoldTicket, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HoldTicket), args.Error(1)
}

func (m *MockEscrowRepository) SettleTicket(ctx context.Context, ticketID uuid.UUID, state models.TicketState, at time.Time) error {
	args := m.Called(ctx, ticketID, state, at)
	return args.Error(0)
}

// MockCardRepository is a mock implementation of CardRepository
type MockCardRepository struct {
	mock.Mock
}

func (m *MockCardRepository) Create(ctx context.Context, card *models.Card) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockCardRepository) GetByEventAndUser(ctx context.Context, eventID, userID int64) (*models.Card, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Card), args.Error(1)
}

func (m *MockCardRepository) ListByEvent(ctx context.Context, eventID int64) ([]*models.Card, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Card), args.Error(1)
}

func (m *MockCardRepository) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

// MockDrawRepository is a mock implementation of DrawRepository
type MockDrawRepository struct {
	mock.Mock
}

func (m *MockDrawRepository) Append(ctx context.Context, eventID int64, position, number int) error {
	args := m.Called(ctx, eventID, position, number)
	return args.Error(0)
}

func (m *MockDrawRepository) Get(ctx context.Context, eventID int64) (*models.DrawState, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DrawState), args.Error(1)
}

// MockCreditHistoryRepository is a mock implementation of CreditHistoryRepository
type MockCreditHistoryRepository struct {
	mock.Mock
}

func (m *MockCreditHistoryRepository) Record(ctx context.Context, history *models.CreditHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockCreditHistoryRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.CreditHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CreditHistory), args.Error(1)
}

// CapturingPublisher records published events for assertions. Unlike the
// repository mocks it never needs expectations; publishing is fire-and-forget.
type CapturingPublisher struct {
	Events []events.Event
}

func (p *CapturingPublisher) Publish(event events.Event) {
	p.Events = append(p.Events, event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork backed by the
// repository mocks set via SetRepositories
type MockUnitOfWork struct {
	mock.Mock
	userRepo          UserRepository
	eventRepo         EventRepository
	escrowRepo        EscrowRepository
	cardRepo          CardRepository
	drawRepo          DrawRepository
	creditHistoryRepo CreditHistoryRepository
	bus               *CapturingPublisher
}

// SetRepositories wires the repository mocks into the unit of work. Nil is
// fine for repositories a test never touches.
func (m *MockUnitOfWork) SetRepositories(
	userRepo UserRepository,
	eventRepo EventRepository,
	escrowRepo EscrowRepository,
	cardRepo CardRepository,
	drawRepo DrawRepository,
	creditHistoryRepo CreditHistoryRepository,
) {
	m.userRepo = userRepo
	m.eventRepo = eventRepo
	m.escrowRepo = escrowRepo
	m.cardRepo = cardRepo
	m.drawRepo = drawRepo
	m.creditHistoryRepo = creditHistoryRepo
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository { return m.userRepo }

func (m *MockUnitOfWork) EventRepository() EventRepository { return m.eventRepo }

func (m *MockUnitOfWork) EscrowRepository() EscrowRepository { return m.escrowRepo }

func (m *MockUnitOfWork) CardRepository() CardRepository { return m.cardRepo }

func (m *MockUnitOfWork) DrawRepository() DrawRepository { return m.drawRepo }

func (m *MockUnitOfWork) CreditHistoryRepository() CreditHistoryRepository {
	return m.creditHistoryRepo
}

// EventBus returns a capturing publisher; Published() exposes what was emitted
func (m *MockUnitOfWork) EventBus() EventPublisher {
	if m.bus == nil {
		m.bus = &CapturingPublisher{}
	}
	return m.bus
}

// Published returns the events published so far
func (m *MockUnitOfWork) Published() []events.Event {
	if m.bus == nil {
		return nil
	}
	return m.bus.Events
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
