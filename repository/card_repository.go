package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"bingocore/database"
	"bingocore/models"

	"github.com/jackc/pgx/v5"
)

// CardRepository implements the service.CardRepository interface. Card cells
// are stored as JSONB; the grid is opaque to SQL and only read back whole.
type CardRepository struct {
	q queryable
}

// NewCardRepository creates a new card repository
func NewCardRepository(db *database.DB) *CardRepository {
	return &CardRepository{q: db.Pool}
}

// newCardRepositoryWithTx creates a new card repository with a transaction
func newCardRepositoryWithTx(tx queryable) *CardRepository {
	return &CardRepository{q: tx}
}

// Create stores a generated card
func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	cellsJSON, err := json.Marshal(card.Cells)
	if err != nil {
		return fmt.Errorf("failed to marshal card cells: %w", err)
	}

	query := `
		INSERT INTO cards (id, event_id, user_id, cells)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err = r.q.QueryRow(ctx, query, card.ID, card.EventID, card.UserID, cellsJSON).
		Scan(&card.CreatedAt)
	if err != nil {
		return classifyErr(fmt.Errorf("failed to create card for user %d in event %d: %w",
			card.UserID, card.EventID, err))
	}

	return nil
}

// GetByEventAndUser retrieves a participant's card
func (r *CardRepository) GetByEventAndUser(ctx context.Context, eventID, userID int64) (*models.Card, error) {
	query := `
		SELECT id, event_id, user_id, cells, created_at
		FROM cards
		WHERE event_id = $1 AND user_id = $2
	`

	card, err := scanCard(r.q.QueryRow(ctx, query, eventID, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to get card for user %d in event %d: %w",
			userID, eventID, err))
	}

	return card, nil
}

// ListByEvent returns all cards issued for an event
func (r *CardRepository) ListByEvent(ctx context.Context, eventID int64) ([]*models.Card, error) {
	query := `
		SELECT id, event_id, user_id, cells, created_at
		FROM cards
		WHERE event_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to list cards for event %d: %w", eventID, err))
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards: %w", err)
	}

	return cards, nil
}

// CountByEvent returns the number of participants holding cards
func (r *CardRepository) CountByEvent(ctx context.Context, eventID int64) (int, error) {
	query := `SELECT COUNT(*) FROM cards WHERE event_id = $1`

	var count int
	if err := r.q.QueryRow(ctx, query, eventID).Scan(&count); err != nil {
		return 0, classifyErr(fmt.Errorf("failed to count cards for event %d: %w", eventID, err))
	}

	return count, nil
}

func scanCard(row pgx.Row) (*models.Card, error) {
	var card models.Card
	var cellsJSON []byte

	err := row.Scan(&card.ID, &card.EventID, &card.UserID, &cellsJSON, &card.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(cellsJSON, &card.Cells); err != nil {
		return nil, fmt.Errorf("failed to unmarshal card cells: %w", err)
	}

	return &card, nil
}
