package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"bingocore/database"
	"bingocore/models"
)

// CreditHistoryRepository implements the service.CreditHistoryRepository interface
type CreditHistoryRepository struct {
	q queryable
}

// NewCreditHistoryRepository creates a new credit history repository
func NewCreditHistoryRepository(db *database.DB) *CreditHistoryRepository {
	return &CreditHistoryRepository{q: db.Pool}
}

// newCreditHistoryRepositoryWithTx creates a new credit history repository with a transaction
func newCreditHistoryRepositoryWithTx(tx queryable) *CreditHistoryRepository {
	return &CreditHistoryRepository{q: tx}
}

// Record creates a new credit history entry
func (r *CreditHistoryRepository) Record(ctx context.Context, history *models.CreditHistory) error {
	metadataJSON, err := json.Marshal(history.TransactionMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	query := `
		INSERT INTO credit_history
		(user_id, balance_before, balance_after, change_amount, transaction_type, transaction_metadata, related_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		history.UserID,
		history.BalanceBefore,
		history.BalanceAfter,
		history.ChangeAmount,
		history.TransactionType,
		metadataJSON,
		history.RelatedEventID,
	).Scan(&history.ID, &history.CreatedAt)

	if err != nil {
		return classifyErr(fmt.Errorf("failed to record credit history for user %d: %w", history.UserID, err))
	}

	return nil
}

// GetByUser returns credit history for a specific user, newest first
func (r *CreditHistoryRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.CreditHistory, error) {
	query := `
		SELECT id, user_id, balance_before, balance_after, change_amount,
		       transaction_type, transaction_metadata, related_event_id, created_at
		FROM credit_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, classifyErr(fmt.Errorf("failed to get credit history for user %d: %w", userID, err))
	}
	defer rows.Close()

	var histories []*models.CreditHistory
	for rows.Next() {
		var history models.CreditHistory
		var metadataJSON []byte

		err := rows.Scan(
			&history.ID,
			&history.UserID,
			&history.BalanceBefore,
			&history.BalanceAfter,
			&history.ChangeAmount,
			&history.TransactionType,
			&metadataJSON,
			&history.RelatedEventID,
			&history.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit history: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &history.TransactionMetadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
			}
		}

		histories = append(histories, &history)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credit history: %w", err)
	}

	return histories, nil
}
