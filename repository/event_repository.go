package repository

import (
	"context"
	"fmt"
	"time"

	"bingocore/database"
	"bingocore/models"

	"github.com/jackc/pgx/v5"
)

const eventColumns = `
	id, kind, state, card_price, min_participants, win_pattern,
	created_at, started_at, settled_at, cancelled_at`

// EventRepository implements the service.EventRepository interface
type EventRepository struct {
	q queryable
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{q: db.Pool}
}

// newEventRepositoryWithTx creates a new event repository with a transaction
func newEventRepositoryWithTx(tx queryable) *EventRepository {
	return &EventRepository{q: tx}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var event models.Event
	err := row.Scan(
		&event.ID,
		&event.Kind,
		&event.State,
		&event.CardPrice,
		&event.MinParticipants,
		&event.Pattern,
		&event.CreatedAt,
		&event.StartedAt,
		&event.SettledAt,
		&event.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Create creates a new event in the OPEN state
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (kind, state, card_price, min_participants, win_pattern)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		event.Kind,
		models.EventStateOpen,
		event.CardPrice,
		event.MinParticipants,
		event.Pattern,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return classifyErr(fmt.Errorf("failed to create event: %w", err))
	}

	event.State = models.EventStateOpen
	return nil
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(ctx context.Context, eventID int64) (*models.Event, error) {
	query := `SELECT` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.q.QueryRow(ctx, query, eventID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to get event %d: %w", eventID, err))
	}

	return event, nil
}

// GetByIDForUpdate retrieves an event and row-locks it. Every operation that
// mutates an event's money or draw state takes this lock first, serializing
// concurrent buy-ins, draws and settlement on the same event.
func (r *EventRepository) GetByIDForUpdate(ctx context.Context, eventID int64) (*models.Event, error) {
	query := `SELECT` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`

	event, err := scanEvent(r.q.QueryRow(ctx, query, eventID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to lock event %d: %w", eventID, err))
	}

	return event, nil
}

// UpdateState transitions the event between states. The update is conditional
// on the expected prior state; the lifecycle timestamp for the target state
// is stamped in the same statement.
func (r *EventRepository) UpdateState(ctx context.Context, eventID int64, from, to models.EventState, at time.Time) error {
	var tsColumn string
	switch to {
	case models.EventStateDrawing:
		tsColumn = "started_at"
	case models.EventStateClosed:
		tsColumn = "settled_at"
	case models.EventStateCancelled:
		tsColumn = "cancelled_at"
	}

	query := `UPDATE events SET state = $1`
	args := []any{to, eventID, from}
	if tsColumn != "" {
		query += `, ` + tsColumn + ` = $4`
		args = append(args, at)
	}
	query += ` WHERE id = $2 AND state = $3`

	result, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return classifyErr(fmt.Errorf("failed to transition event %d: %w", eventID, err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("event %d could not transition from %s to %s", eventID, from, to)
	}

	return nil
}

// GetOldestOpen returns the oldest OPEN event of the kind excluding the given
// ID, nil when none exists
func (r *EventRepository) GetOldestOpen(ctx context.Context, kind models.EventKind, excludeID int64) (*models.Event, error) {
	query := `
		SELECT` + eventColumns + `
		FROM events
		WHERE kind = $1 AND state = $2 AND id <> $3
		ORDER BY created_at, id
		LIMIT 1
	`

	event, err := scanEvent(r.q.QueryRow(ctx, query, kind, models.EventStateOpen, excludeID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to find oldest open %s event: %w", kind, err))
	}

	return event, nil
}

// RecordWinners stores the winners detected for an event
func (r *EventRepository) RecordWinners(ctx context.Context, winners []*models.Winner) error {
	query := `
		INSERT INTO event_winners (event_id, user_id, pattern)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	for _, winner := range winners {
		err := r.q.QueryRow(ctx, query, winner.EventID, winner.UserID, winner.Pattern).
			Scan(&winner.CreatedAt)
		if err != nil {
			return classifyErr(fmt.Errorf("failed to record winner %d for event %d: %w",
				winner.UserID, winner.EventID, err))
		}
	}

	return nil
}

// ListWinners returns the recorded winners for an event
func (r *EventRepository) ListWinners(ctx context.Context, eventID int64) ([]*models.Winner, error) {
	query := `
		SELECT event_id, user_id, pattern, created_at
		FROM event_winners
		WHERE event_id = $1
		ORDER BY user_id
	`

	rows, err := r.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to list winners for event %d: %w", eventID, err))
	}
	defer rows.Close()

	var winners []*models.Winner
	for rows.Next() {
		var winner models.Winner
		if err := rows.Scan(&winner.EventID, &winner.UserID, &winner.Pattern, &winner.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan winner: %w", err)
		}
		winners = append(winners, &winner)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate winners: %w", err)
	}

	return winners, nil
}
