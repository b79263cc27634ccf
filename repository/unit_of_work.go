package repository

import (
	"context"
	"fmt"

	"bingocore/database"
	"bingocore/events"
	"bingocore/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the service.UnitOfWork interface
type unitOfWork struct {
	db                *database.DB
	tx                pgx.Tx
	ctx               context.Context
	transactionalBus  *events.TransactionalBus
	userRepo          service.UserRepository
	eventRepo         service.EventRepository
	escrowRepo        service.EscrowRepository
	cardRepo          service.CardRepository
	drawRepo          service.DrawRepository
	creditHistoryRepo service.CreditHistoryRepository
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return classifyErr(fmt.Errorf("failed to begin transaction: %w", err))
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories bound to the transaction
	u.userRepo = newUserRepositoryWithTx(tx)
	u.eventRepo = newEventRepositoryWithTx(tx)
	u.escrowRepo = newEscrowRepositoryWithTx(tx)
	u.cardRepo = newCardRepositoryWithTx(tx)
	u.drawRepo = newDrawRepositoryWithTx(tx)
	u.creditHistoryRepo = newCreditHistoryRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return classifyErr(fmt.Errorf("failed to commit transaction: %w", err))
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

// EventRepository returns the event repository for this unit of work
func (u *unitOfWork) EventRepository() service.EventRepository {
	if u.eventRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.eventRepo
}

// EscrowRepository returns the escrow repository for this unit of work
func (u *unitOfWork) EscrowRepository() service.EscrowRepository {
	if u.escrowRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.escrowRepo
}

// CardRepository returns the card repository for this unit of work
func (u *unitOfWork) CardRepository() service.CardRepository {
	if u.cardRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.cardRepo
}

// DrawRepository returns the draw repository for this unit of work
func (u *unitOfWork) DrawRepository() service.DrawRepository {
	if u.drawRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.drawRepo
}

// CreditHistoryRepository returns the credit history repository for this unit of work
func (u *unitOfWork) CreditHistoryRepository() service.CreditHistoryRepository {
	if u.creditHistoryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.creditHistoryRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
