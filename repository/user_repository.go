package repository

import (
	"context"
	"fmt"
	"time"

	"bingocore/database"
	"bingocore/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const userColumns = `
	id, username, available_credits, blocked_credits,
	is_blocked, block_reason, blocked_at, blocked_until, blocked_by,
	manual_reputation, reputation_score, total_completed_events,
	created_at, updated_at`

// UserRepository implements the service.UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.AvailableCredits,
		&user.BlockedCredits,
		&user.Block.Blocked,
		&user.Block.Reason,
		&user.Block.At,
		&user.Block.Until,
		&user.Block.By,
		&user.Reputation.Mode,
		&user.Reputation.Score,
		&user.TotalCompletedEvents,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to get user %d: %w", userID, err))
	}

	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, username))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to get user %q: %w", username, err))
	}

	return user, nil
}

// Create creates a new user with the starting credits
func (r *UserRepository) Create(ctx context.Context, username string, startingCredits decimal.Decimal) (*models.User, error) {
	query := `
		INSERT INTO users (username, available_credits)
		VALUES ($1, $2)
		RETURNING` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query, username, startingCredits))
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to create user %q: %w", username, err))
	}

	return user, nil
}

// DebitAvailable deducts from available credits and returns the new balance.
// The balance check and the deduction are a single conditional UPDATE, so two
// concurrent debits can never both pass the check. The block guard matches
// BlockState.InEffectAt: a block whose until has passed no longer bars
// spending, even though the flag stays set until an explicit unblock.
func (r *UserRepository) DebitAvailable(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET available_credits = available_credits - $1, updated_at = NOW()
		WHERE id = $2
		  AND NOT (is_blocked AND (blocked_until IS NULL OR blocked_until > NOW()))
		  AND available_credits >= $1
		RETURNING available_credits
	`

	var balance decimal.Decimal
	err := r.q.QueryRow(ctx, query, amount, userID).Scan(&balance)
	if err == pgx.ErrNoRows {
		// Distinguish the failure for the caller
		user, err := r.GetByID(ctx, userID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to check user: %w", err)
		}
		if user == nil {
			return decimal.Zero, fmt.Errorf("%w: id %d", models.ErrUserNotFound, userID)
		}
		if user.Block.InEffectAt(time.Now()) {
			return decimal.Zero, fmt.Errorf("%w: %s", models.ErrUserBlocked, user.Block.Reason)
		}
		return decimal.Zero, fmt.Errorf("%w: have %s available, need %s",
			models.ErrInsufficientFunds, user.AvailableCredits, amount)
	}
	if err != nil {
		return decimal.Zero, classifyErr(fmt.Errorf("failed to debit user %d: %w", userID, err))
	}

	return balance, nil
}

// CreditAvailable adds to available credits and returns the new balance.
// Credits land regardless of block state; only spending is gated.
func (r *UserRepository) CreditAvailable(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET available_credits = available_credits + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING available_credits
	`

	var balance decimal.Decimal
	err := r.q.QueryRow(ctx, query, amount, userID).Scan(&balance)
	if err == pgx.ErrNoRows {
		return decimal.Zero, fmt.Errorf("%w: id %d", models.ErrUserNotFound, userID)
	}
	if err != nil {
		return decimal.Zero, classifyErr(fmt.Errorf("failed to credit user %d: %w", userID, err))
	}

	return balance, nil
}

// ApplyBlock sets the blocked state and moves all available credits to
// blocked credits in one statement. The old row is joined in so the frozen
// amount can be returned.
func (r *UserRepository) ApplyBlock(ctx context.Context, userID int64, state models.BlockState) (decimal.Decimal, error) {
	query := `
		UPDATE users u
		SET is_blocked = TRUE,
		    block_reason = $2,
		    blocked_at = $3,
		    blocked_until = $4,
		    blocked_by = $5,
		    blocked_credits = u.blocked_credits + u.available_credits,
		    available_credits = 0,
		    updated_at = NOW()
		FROM (SELECT id, available_credits FROM users WHERE id = $1 FOR UPDATE) old
		WHERE u.id = old.id
		RETURNING old.available_credits
	`

	var frozen decimal.Decimal
	err := r.q.QueryRow(ctx, query, userID, state.Reason, state.At, state.Until, state.By).Scan(&frozen)
	if err == pgx.ErrNoRows {
		return decimal.Zero, fmt.Errorf("%w: id %d", models.ErrUserNotFound, userID)
	}
	if err != nil {
		return decimal.Zero, classifyErr(fmt.Errorf("failed to block user %d: %w", userID, err))
	}

	return frozen, nil
}

// ApplyUnblock clears the blocked state. When refundable, blocked credits
// move back to available; otherwise they are zeroed for the write-off.
// Returns the amount that was held.
func (r *UserRepository) ApplyUnblock(ctx context.Context, userID int64, refundable bool) (decimal.Decimal, error) {
	query := `
		UPDATE users u
		SET is_blocked = FALSE,
		    block_reason = '',
		    blocked_at = NULL,
		    blocked_until = NULL,
		    blocked_by = NULL,
		    available_credits = CASE WHEN $2 THEN u.available_credits + u.blocked_credits ELSE u.available_credits END,
		    blocked_credits = 0,
		    updated_at = NOW()
		FROM (SELECT id, blocked_credits FROM users WHERE id = $1 FOR UPDATE) old
		WHERE u.id = old.id
		RETURNING old.blocked_credits
	`

	var released decimal.Decimal
	err := r.q.QueryRow(ctx, query, userID, refundable).Scan(&released)
	if err == pgx.ErrNoRows {
		return decimal.Zero, fmt.Errorf("%w: id %d", models.ErrUserNotFound, userID)
	}
	if err != nil {
		return decimal.Zero, classifyErr(fmt.Errorf("failed to unblock user %d: %w", userID, err))
	}

	return released, nil
}

// IncrementCompletedEvents increments the completion counter and returns the
// new total
func (r *UserRepository) IncrementCompletedEvents(ctx context.Context, userID int64) (int, error) {
	query := `
		UPDATE users
		SET total_completed_events = total_completed_events + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING total_completed_events
	`

	var total int
	err := r.q.QueryRow(ctx, query, userID).Scan(&total)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("%w: id %d", models.ErrUserNotFound, userID)
	}
	if err != nil {
		return 0, classifyErr(fmt.Errorf("failed to increment completions for user %d: %w", userID, err))
	}

	return total, nil
}

// SetReputationScore stores the recomputed reputation score. The score is
// maintained even under an operator override; the override only changes how
// it is read.
func (r *UserRepository) SetReputationScore(ctx context.Context, userID int64, score int) error {
	query := `
		UPDATE users
		SET reputation_score = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, score, userID)
	if err != nil {
		return classifyErr(fmt.Errorf("failed to set reputation for user %d: %w", userID, err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", models.ErrUserNotFound, userID)
	}

	return nil
}
