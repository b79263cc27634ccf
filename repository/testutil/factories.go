package testutil

import (
	"context"
	"testing"

	"bingocore/database"
	"bingocore/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// CreateTestUser inserts a user with the given available balance and returns it
func CreateTestUser(t *testing.T, db *database.DB, username string, credits string) *models.User {
	ctx := context.Background()

	query := `
		INSERT INTO users (username, available_credits)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`

	user := &models.User{
		Username:         username,
		AvailableCredits: decimal.RequireFromString(credits),
		BlockedCredits:   decimal.Zero,
		Reputation:       models.Reputation{Mode: models.ReputationModeAuto},
	}
	err := db.QueryRow(ctx, query, username, user.AvailableCredits).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	require.NoError(t, err)

	return user
}

// CreateTestEvent inserts an OPEN event with its escrow account and returns it
func CreateTestEvent(t *testing.T, db *database.DB, kind models.EventKind, cardPrice string) *models.Event {
	ctx := context.Background()

	event := &models.Event{
		Kind:            kind,
		State:           models.EventStateOpen,
		CardPrice:       decimal.RequireFromString(cardPrice),
		MinParticipants: 2,
		Pattern:         models.WinPatternHorizontal,
	}

	// The event and its escrow account land together or not at all.
	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO events (kind, state, card_price, min_participants, win_pattern)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`
		if err := tx.QueryRow(ctx, query, event.Kind, event.State, event.CardPrice,
			event.MinParticipants, event.Pattern).Scan(&event.ID, &event.CreatedAt); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `INSERT INTO escrow_accounts (event_id, held_balance) VALUES ($1, 0)`, event.ID)
		return err
	})
	require.NoError(t, err)

	return event
}

// CreateTestTicket inserts an active hold ticket and bumps the escrow balance
func CreateTestTicket(t *testing.T, db *database.DB, eventID, userID int64, amount string) *models.HoldTicket {
	ctx := context.Background()

	ticket := models.NewHoldTicket(eventID, userID, decimal.RequireFromString(amount))

	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO hold_tickets (id, event_id, user_id, amount, state)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`
		if err := tx.QueryRow(ctx, query, ticket.ID, ticket.EventID, ticket.UserID,
			ticket.Amount, ticket.State).Scan(&ticket.CreatedAt); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`UPDATE escrow_accounts SET held_balance = held_balance + $1 WHERE event_id = $2`,
			ticket.Amount, eventID)
		return err
	})
	require.NoError(t, err)

	return ticket
}
