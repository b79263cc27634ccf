package service

import (
	"context"
	"errors"
	"testing"

	"bingocore/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newUserServiceMocks() (*MockUnitOfWork, *MockUnitOfWorkFactory, *MockUserRepository, *MockCreditHistoryRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockHistoryRepo := new(MockCreditHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, nil, nil, nil, nil, mockHistoryRepo)
	mockFactory.On("Create").Return(mockUoW)

	return mockUoW, mockFactory, mockUserRepo, mockHistoryRepo
}

func TestUserService_GetOrCreateUser_ExistingUser(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockHistoryRepo := newUserServiceMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	// No Commit() expected since the user exists and no changes are made

	existing := &models.User{ID: 42, Username: "alice", AvailableCredits: decimal.NewFromInt(5)}
	mockUserRepo.On("GetByUsername", ctx, "alice").Return(existing, nil)

	service := NewUserService(mockFactory, testConfig())

	user, err := service.GetOrCreateUser(ctx, "alice")

	assert.NoError(t, err)
	assert.Equal(t, existing, user)
	mockUoW.AssertNotCalled(t, "Commit")
	mockHistoryRepo.AssertNotCalled(t, "Record")
}

func TestUserService_GetOrCreateUser_NewUser(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockHistoryRepo := newUserServiceMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	starting := decimal.NewFromInt(10)
	created := &models.User{ID: 42, Username: "bob", AvailableCredits: starting}

	mockUserRepo.On("GetByUsername", ctx, "bob").Return(nil, nil)
	mockUserRepo.On("Create", ctx, "bob", starting).Return(created, nil)

	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.CreditHistory) bool {
		return h.UserID == 42 &&
			h.BalanceBefore.IsZero() &&
			h.BalanceAfter.Equal(starting) &&
			h.ChangeAmount.Equal(starting) &&
			h.TransactionType == models.TransactionTypeInitial
	})).Return(nil)

	service := NewUserService(mockFactory, testConfig())

	user, err := service.GetOrCreateUser(ctx, "bob")

	assert.NoError(t, err)
	assert.Equal(t, created, user)
	mockUserRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
}

func TestUserService_GetOrCreateUser_EmptyUsername(t *testing.T) {
	ctx := context.Background()
	_, mockFactory, _, _ := newUserServiceMocks()

	service := NewUserService(mockFactory, testConfig())

	_, err := service.GetOrCreateUser(ctx, "")

	assert.Error(t, err)
}

func TestUserService_GetOrCreateUser_CreateError(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, _ := newUserServiceMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByUsername", ctx, "carol").Return(nil, nil)
	mockUserRepo.On("Create", ctx, "carol", mock.Anything).Return(nil, errors.New("unique violation"))

	service := NewUserService(mockFactory, testConfig())

	_, err := service.GetOrCreateUser(ctx, "carol")

	assert.Error(t, err)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestUserService_Status(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, _ := newUserServiceMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	user := &models.User{
		ID:               42,
		Username:         "alice",
		AvailableCredits: decimal.RequireFromString("3.50"),
		BlockedCredits:   decimal.RequireFromString("1.25"),
		Block:            models.BlockState{Blocked: true, Reason: "dispute"},
		Reputation:       models.Reputation{Mode: models.ReputationModeAuto, Score: 35},
	}
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(user, nil)

	service := NewUserService(mockFactory, testConfig())

	status, err := service.Status(ctx, 42)

	assert.NoError(t, err)
	assert.Equal(t, int64(42), status.UserID)
	assert.True(t, status.AvailableCredits.Equal(decimal.RequireFromString("3.50")))
	assert.True(t, status.BlockedCredits.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, status.IsBlocked)
	assert.Equal(t, 35, status.ReputationScore)
}

func TestUserService_GetUser_NotFound(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, _ := newUserServiceMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockUserRepo.On("GetByID", ctx, int64(999)).Return(nil, nil)

	service := NewUserService(mockFactory, testConfig())

	_, err := service.GetUser(ctx, 999)

	assert.ErrorIs(t, err, models.ErrUserNotFound)
}
