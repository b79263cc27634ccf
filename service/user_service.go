package service

import (
	"context"
	"fmt"

	"bingocore/config"
	"bingocore/models"
)

type userService struct {
	uowFactory UnitOfWorkFactory
	cfg        *config.Config
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory, cfg *config.Config) UserService {
	return &userService{
		uowFactory: uowFactory,
		cfg:        cfg,
	}
}

// GetOrCreateUser retrieves an existing user or creates a new one with the
// configured starting credits
func (s *userService) GetOrCreateUser(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = uow.UserRepository().Create(ctx, username, s.cfg.StartingCredits)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	history := &models.CreditHistory{
		UserID:          user.ID,
		BalanceBefore:   user.AvailableCredits.Sub(s.cfg.StartingCredits),
		BalanceAfter:    user.AvailableCredits,
		ChangeAmount:    s.cfg.StartingCredits,
		TransactionType: models.TransactionTypeInitial,
		TransactionMetadata: map[string]any{
			"username": username,
		},
	}
	if err := RecordCreditChange(ctx, uow, history); err != nil {
		return nil, fmt.Errorf("failed to record initial credits: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

// GetUser retrieves a user by ID
func (s *userService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: id %d", models.ErrUserNotFound, userID)
	}

	return user, nil
}

// Status returns the balances and trust state for the application layer
func (s *userService) Status(ctx context.Context, userID int64) (*models.UserStatus, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.UserStatus{
		UserID:           user.ID,
		AvailableCredits: user.AvailableCredits,
		BlockedCredits:   user.BlockedCredits,
		IsBlocked:        user.Block.Blocked,
		ReputationScore:  user.Reputation.Score,
	}, nil
}
