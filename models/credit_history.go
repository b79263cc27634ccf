package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of credit change
type TransactionType string

const (
	TransactionTypeInitial         TransactionType = "initial"
	TransactionTypeBuyIn           TransactionType = "buy_in"
	TransactionTypePayout          TransactionType = "payout"
	TransactionTypeRefund          TransactionType = "refund"
	TransactionTypeCreditsFrozen   TransactionType = "credits_frozen"
	TransactionTypeCreditsUnfrozen TransactionType = "credits_unfrozen"
	TransactionTypeWriteOff        TransactionType = "write_off"
)

// CreditHistory represents a historical credit balance change. Every move of
// money through the core leaves exactly one entry.
type CreditHistory struct {
	ID                  int64           `db:"id"`
	UserID              int64           `db:"user_id"`
	BalanceBefore       decimal.Decimal `db:"balance_before"`
	BalanceAfter        decimal.Decimal `db:"balance_after"`
	ChangeAmount        decimal.Decimal `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedEventID      *int64          `db:"related_event_id"`
	CreatedAt           time.Time       `db:"created_at"`
}
