package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReputationMode distinguishes the system-computed score from a manual
// operator override.
type ReputationMode string

const (
	ReputationModeAuto         ReputationMode = "auto"
	ReputationModeOverrideGood ReputationMode = "override_good"
	ReputationModeOverrideBad  ReputationMode = "override_bad"
)

// Reputation is a tagged union: either the computed score applies (auto) or
// an operator verdict overrides it entirely.
type Reputation struct {
	Mode  ReputationMode `db:"manual_reputation"`
	Score int            `db:"reputation_score"`
}

// Allows reports whether this reputation admits the user given the minimum
// score policy. An override verdict bypasses the computed score.
func (r Reputation) Allows(minScore int) bool {
	switch r.Mode {
	case ReputationModeOverrideGood:
		return true
	case ReputationModeOverrideBad:
		return false
	default:
		return r.Score >= minScore
	}
}

// BlockState carries the full blocking record as one value so the flag and
// its companion fields cannot drift apart.
type BlockState struct {
	Blocked bool       `db:"is_blocked"`
	Reason  string     `db:"block_reason"`
	At      *time.Time `db:"blocked_at"`
	Until   *time.Time `db:"blocked_until"`
	By      *int64     `db:"blocked_by"` // nil for system-initiated blocks
}

// InEffectAt reports whether the block denies participation at the given
// instant. A block whose Until has passed no longer denies, but the user
// stays flagged until explicitly cleared.
func (b BlockState) InEffectAt(now time.Time) bool {
	if !b.Blocked {
		return false
	}
	return b.Until == nil || b.Until.After(now)
}

// User holds identity, spendable and frozen credit balances, and the trust
// state that gates participation.
type User struct {
	ID                   int64           `db:"id"`
	Username             string          `db:"username"`
	AvailableCredits     decimal.Decimal `db:"available_credits"`
	BlockedCredits       decimal.Decimal `db:"blocked_credits"`
	Reputation           Reputation
	Block                BlockState
	TotalCompletedEvents int       `db:"total_completed_events"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

// AdmissionError returns nil when the user may participate at the given
// instant, or ErrUserBlocked wrapped with the reason. The block state is
// checked first; the reputation gate applies afterwards, with operator
// overrides taking precedence over the computed score.
func (u *User) AdmissionError(now time.Time, minReputation int) error {
	if u.Block.InEffectAt(now) {
		if u.Block.Reason != "" {
			return fmt.Errorf("%w: %s", ErrUserBlocked, u.Block.Reason)
		}
		return ErrUserBlocked
	}
	if !u.Reputation.Allows(minReputation) {
		if u.Reputation.Mode == ReputationModeOverrideBad {
			return fmt.Errorf("%w: reputation overridden to bad", ErrUserBlocked)
		}
		return fmt.Errorf("%w: reputation score %d below minimum %d", ErrUserBlocked, u.Reputation.Score, minReputation)
	}
	return nil
}

// UserStatus is the read-model handed to the surrounding application layer.
type UserStatus struct {
	UserID           int64           `json:"user_id"`
	AvailableCredits decimal.Decimal `json:"available_credits"`
	BlockedCredits   decimal.Decimal `json:"blocked_credits"`
	IsBlocked        bool            `json:"is_blocked"`
	ReputationScore  int             `json:"reputation_score"`
}
