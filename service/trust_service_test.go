package service

import (
	"context"
	"testing"
	"time"

	"bingocore/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTrustMocks() (*MockUnitOfWork, *MockUnitOfWorkFactory, *MockUserRepository, *MockCreditHistoryRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockHistoryRepo := new(MockCreditHistoryRepository)

	mockUoW.SetRepositories(mockUserRepo, nil, nil, nil, nil, mockHistoryRepo)
	mockFactory.On("Create").Return(mockUoW)

	return mockUoW, mockFactory, mockUserRepo, mockHistoryRepo
}

func TestTrustService_CheckAdmission_NotBlocked(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, _ := newTrustMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(&models.User{ID: 42}, nil)

	service := NewTrustService(mockFactory, testConfig())

	err := service.CheckAdmission(ctx, 42)

	assert.NoError(t, err)
	mockUserRepo.AssertExpectations(t)
}

func TestTrustService_CheckAdmission_Blocked(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, _ := newTrustMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	blocked := &models.User{
		ID: 42,
		Block: models.BlockState{
			Blocked: true,
			Reason:  "chargeback dispute",
		},
	}
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(blocked, nil)

	service := NewTrustService(mockFactory, testConfig())

	err := service.CheckAdmission(ctx, 42)

	assert.ErrorIs(t, err, models.ErrUserBlocked)
	assert.Contains(t, err.Error(), "chargeback dispute")
}

func TestTrustService_CheckAdmission_ExpiredBlockAdmits(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, _ := newTrustMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	past := time.Now().Add(-time.Hour)
	expired := &models.User{
		ID: 42,
		Block: models.BlockState{
			Blocked: true,
			Reason:  "cooldown",
			Until:   &past,
		},
	}
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(expired, nil)

	service := NewTrustService(mockFactory, testConfig())

	// The block window has passed; the user admits even though the flag is
	// still set until an operator clears it.
	err := service.CheckAdmission(ctx, 42)

	assert.NoError(t, err)
}

func TestTrustService_CheckAdmission_FutureBlockDenies(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, _ := newTrustMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	future := time.Now().Add(time.Hour)
	blocked := &models.User{
		ID: 42,
		Block: models.BlockState{
			Blocked: true,
			Reason:  "cooldown",
			Until:   &future,
		},
	}
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(blocked, nil)

	service := NewTrustService(mockFactory, testConfig())

	err := service.CheckAdmission(ctx, 42)

	assert.ErrorIs(t, err, models.ErrUserBlocked)
}

func TestTrustService_CheckAdmission_ReputationGate(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig()
	cfg.MinReputationScore = 10

	tests := []struct {
		name       string
		reputation models.Reputation
		wantErr    bool
	}{
		{"score below minimum denies", models.Reputation{Mode: models.ReputationModeAuto, Score: 5}, true},
		{"score at minimum admits", models.Reputation{Mode: models.ReputationModeAuto, Score: 10}, false},
		{"override bad denies regardless of score", models.Reputation{Mode: models.ReputationModeOverrideBad, Score: 50}, true},
		{"override good admits regardless of score", models.Reputation{Mode: models.ReputationModeOverrideGood, Score: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUoW, mockFactory, mockUserRepo, _ := newTrustMocks()
			mockUoW.On("Begin", ctx).Return(nil)
			mockUoW.On("Rollback").Return(nil)
			mockUserRepo.On("GetByID", ctx, int64(42)).Return(&models.User{ID: 42, Reputation: tt.reputation}, nil)

			service := NewTrustService(mockFactory, cfg)

			err := service.CheckAdmission(ctx, 42)

			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrUserBlocked)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTrustService_CheckAdmission_UserNotFound(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, _ := newTrustMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockUserRepo.On("GetByID", ctx, int64(999)).Return(nil, nil)

	service := NewTrustService(mockFactory, testConfig())

	err := service.CheckAdmission(ctx, 999)

	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestTrustService_Block_FreezesCredits(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockHistoryRepo := newTrustMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	balance := decimal.RequireFromString("25.50")
	user := &models.User{ID: 42, AvailableCredits: balance}
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(user, nil)

	actorID := int64(1)
	mockUserRepo.On("ApplyBlock", ctx, int64(42), mock.MatchedBy(func(s models.BlockState) bool {
		return s.Blocked && s.Reason == "fraud review" && s.By != nil && *s.By == actorID
	})).Return(balance, nil)

	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.CreditHistory) bool {
		return h.UserID == 42 &&
			h.TransactionType == models.TransactionTypeCreditsFrozen &&
			h.ChangeAmount.Equal(balance.Neg()) &&
			h.BalanceAfter.IsZero()
	})).Return(nil)

	service := NewTrustService(mockFactory, testConfig())

	err := service.Block(ctx, 42, "fraud review", &actorID, nil)

	assert.NoError(t, err)
	mockUserRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
}

func TestTrustService_Block_ZeroBalanceSkipsHistory(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockHistoryRepo := newTrustMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	user := &models.User{ID: 42, AvailableCredits: decimal.Zero}
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(user, nil)
	mockUserRepo.On("ApplyBlock", ctx, int64(42), mock.Anything).Return(decimal.Zero, nil)

	service := NewTrustService(mockFactory, testConfig())

	err := service.Block(ctx, 42, "spam", nil, nil)

	assert.NoError(t, err)
	mockHistoryRepo.AssertNotCalled(t, "Record")
}

func TestTrustService_Unblock_Refundable(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockHistoryRepo := newTrustMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	frozen := decimal.RequireFromString("25.50")
	user := &models.User{
		ID:               42,
		AvailableCredits: decimal.Zero,
		BlockedCredits:   frozen,
		Block:            models.BlockState{Blocked: true, Reason: "fraud review"},
	}
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(user, nil)
	mockUserRepo.On("ApplyUnblock", ctx, int64(42), true).Return(frozen, nil)

	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.CreditHistory) bool {
		return h.TransactionType == models.TransactionTypeCreditsUnfrozen &&
			h.ChangeAmount.Equal(frozen) &&
			h.BalanceAfter.Equal(frozen)
	})).Return(nil)

	service := NewTrustService(mockFactory, testConfig())

	err := service.Unblock(ctx, 42, true)

	assert.NoError(t, err)
	mockUserRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
}

func TestTrustService_Unblock_NonRefundableWritesOff(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, mockHistoryRepo := newTrustMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	frozen := decimal.RequireFromString("25.50")
	user := &models.User{
		ID:             42,
		BlockedCredits: frozen,
		Block:          models.BlockState{Blocked: true, Reason: "fraud confirmed"},
	}
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(user, nil)
	mockUserRepo.On("ApplyUnblock", ctx, int64(42), false).Return(frozen, nil)

	// The available balance is untouched; the write-off is only a ledger entry.
	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.CreditHistory) bool {
		return h.TransactionType == models.TransactionTypeWriteOff &&
			h.ChangeAmount.IsZero() &&
			h.TransactionMetadata["written_off_amount"] == frozen.String()
	})).Return(nil)

	service := NewTrustService(mockFactory, testConfig())

	err := service.Unblock(ctx, 42, false)

	assert.NoError(t, err)
	mockHistoryRepo.AssertExpectations(t)
}

func TestTrustService_Unblock_NotBlocked(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockUserRepo, _ := newTrustMocks()

	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(&models.User{ID: 42}, nil)

	service := NewTrustService(mockFactory, testConfig())

	err := service.Unblock(ctx, 42, true)

	assert.Error(t, err)
	mockUserRepo.AssertNotCalled(t, "ApplyUnblock")
	mockUoW.AssertNotCalled(t, "Commit")
}
