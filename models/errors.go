package models

import "errors"

// Error taxonomy for the economy core. Validation errors are returned to the
// calling layer for user-facing handling. Invariant violations abort the
// enclosing transaction and must be surfaced to operators, never swallowed.
var (
	// ErrInsufficientFunds is returned when a buy-in exceeds the payer's
	// available credits.
	ErrInsufficientFunds = errors.New("insufficient available credits")

	// ErrUserBlocked is returned when a blocked user attempts to participate.
	ErrUserBlocked = errors.New("user is blocked")

	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEventNotFound is returned when the referenced event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrEventNotOpen is returned when an operation is attempted against an
	// event whose state does not allow it (buy-in after start, draw on a
	// terminal event, and so on).
	ErrEventNotOpen = errors.New("event state does not allow this operation")

	// ErrDuplicateSettlement indicates a hold ticket was released or refunded
	// more than once. This is a programming-level invariant violation that
	// guards against fund duplication or loss.
	ErrDuplicateSettlement = errors.New("hold ticket already settled")

	// ErrEntropyUnavailable indicates the secure random source failed. Card
	// generation and number draws must not proceed without fair randomness.
	ErrEntropyUnavailable = errors.New("secure entropy source unavailable")

	// ErrTransientStore indicates a retryable store failure.
	ErrTransientStore = errors.New("transient store failure")
)
