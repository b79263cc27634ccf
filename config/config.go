package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// NoWinnerPolicyName selects what happens when all 75 numbers are drawn
// without a winner.
type NoWinnerPolicyName string

const (
	NoWinnerPolicyRefund    NoWinnerPolicyName = "refund"
	NoWinnerPolicyCarryOver NoWinnerPolicyName = "carry_over"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Economy configuration
	StartingCredits        decimal.Decimal
	MinCardPrice           decimal.Decimal
	DefaultMinParticipants int

	// Draw configuration
	DrawInterval time.Duration

	// No-winner fallback after all 75 numbers are drawn
	NoWinnerPolicy NoWinnerPolicyName

	// Reputation scoring (linear with cap)
	ReputationPerEvent int
	ReputationCap      int
	MinReputationScore int

	// Refund drain on cancellation
	RefundRetryMax      int
	RefundRetryBaseWait time.Duration

	// Environment: "development", "test" or "production"
	Environment string
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// Economy defaults
		StartingCredits:        decimal.NewFromInt(10),
		MinCardPrice:           decimal.RequireFromString("0.10"),
		DefaultMinParticipants: 2,

		DrawInterval:   5 * time.Second,
		NoWinnerPolicy: NoWinnerPolicyRefund,

		ReputationPerEvent: 5,
		ReputationCap:      100,
		MinReputationScore: 0,

		RefundRetryMax:      5,
		RefundRetryBaseWait: 200 * time.Millisecond,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if credits := os.Getenv("STARTING_CREDITS"); credits != "" {
		if parsed, err := decimal.NewFromString(credits); err == nil {
			config.StartingCredits = parsed
		}
	}
	if price := os.Getenv("MIN_CARD_PRICE"); price != "" {
		if parsed, err := decimal.NewFromString(price); err == nil && parsed.IsPositive() {
			config.MinCardPrice = parsed
		}
	}
	if min := os.Getenv("DEFAULT_MIN_PARTICIPANTS"); min != "" {
		if parsed, err := strconv.Atoi(min); err == nil && parsed > 0 {
			config.DefaultMinParticipants = parsed
		}
	}
	if interval := os.Getenv("DRAW_INTERVAL_SECONDS"); interval != "" {
		if parsed, err := strconv.Atoi(interval); err == nil && parsed > 0 {
			config.DrawInterval = time.Duration(parsed) * time.Second
		}
	}
	if policy := os.Getenv("NO_WINNER_POLICY"); policy != "" {
		switch NoWinnerPolicyName(policy) {
		case NoWinnerPolicyRefund, NoWinnerPolicyCarryOver:
			config.NoWinnerPolicy = NoWinnerPolicyName(policy)
		default:
			return nil, fmt.Errorf("invalid NO_WINNER_POLICY: %q", policy)
		}
	}
	if per := os.Getenv("REPUTATION_PER_EVENT"); per != "" {
		if parsed, err := strconv.Atoi(per); err == nil {
			config.ReputationPerEvent = parsed
		}
	}
	if cap := os.Getenv("REPUTATION_CAP"); cap != "" {
		if parsed, err := strconv.Atoi(cap); err == nil {
			config.ReputationCap = parsed
		}
	}
	if min := os.Getenv("MIN_REPUTATION_SCORE"); min != "" {
		if parsed, err := strconv.Atoi(min); err == nil && parsed >= 0 {
			config.MinReputationScore = parsed
		}
	}
	if retries := os.Getenv("REFUND_RETRY_MAX"); retries != "" {
		if parsed, err := strconv.Atoi(retries); err == nil && parsed >= 0 {
			config.RefundRetryMax = parsed
		}
	}
	if wait := os.Getenv("REFUND_RETRY_BASE_MS"); wait != "" {
		if parsed, err := strconv.Atoi(wait); err == nil && parsed > 0 {
			config.RefundRetryBaseWait = time.Duration(parsed) * time.Millisecond
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
