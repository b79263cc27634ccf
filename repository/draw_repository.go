package repository

import (
	"context"
	"fmt"

	"bingocore/database"
	"bingocore/models"
)

// DrawRepository implements the service.DrawRepository interface. The drawn
// sequence is append-only; position and number each carry a uniqueness
// constraint per event, so a raced double-draw fails at the database.
type DrawRepository struct {
	q queryable
}

// NewDrawRepository creates a new draw repository
func NewDrawRepository(db *database.DB) *DrawRepository {
	return &DrawRepository{q: db.Pool}
}

// newDrawRepositoryWithTx creates a new draw repository with a transaction
func newDrawRepositoryWithTx(tx queryable) *DrawRepository {
	return &DrawRepository{q: tx}
}

// Append appends the next called number at the given 1-based position
func (r *DrawRepository) Append(ctx context.Context, eventID int64, position, number int) error {
	if number < 1 || number > models.MaxDrawNumber {
		return fmt.Errorf("number %d out of range", number)
	}

	query := `
		INSERT INTO draw_numbers (event_id, position, number)
		VALUES ($1, $2, $3)
	`

	if _, err := r.q.Exec(ctx, query, eventID, position, number); err != nil {
		return classifyErr(fmt.Errorf("failed to append number %d for event %d: %w", number, eventID, err))
	}

	return nil
}

// Get returns the event's draw state in call order
func (r *DrawRepository) Get(ctx context.Context, eventID int64) (*models.DrawState, error) {
	query := `
		SELECT number
		FROM draw_numbers
		WHERE event_id = $1
		ORDER BY position
	`

	rows, err := r.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to get draw state for event %d: %w", eventID, err))
	}
	defer rows.Close()

	draw := &models.DrawState{EventID: eventID}
	for rows.Next() {
		var number int
		if err := rows.Scan(&number); err != nil {
			return nil, fmt.Errorf("failed to scan drawn number: %w", err)
		}
		draw.Numbers = append(draw.Numbers, number)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate drawn numbers: %w", err)
	}

	return draw, nil
}
