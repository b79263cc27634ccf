package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bingocore/config"
	"bingocore/events"
	"bingocore/models"
	"bingocore/repository"
	"bingocore/repository/testutil"
	"bingocore/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func integrationConfig() *config.Config {
	return &config.Config{
		StartingCredits:        decimal.NewFromInt(10),
		MinCardPrice:           decimal.RequireFromString("0.10"),
		DefaultMinParticipants: 2,
		DrawInterval:           time.Millisecond,
		NoWinnerPolicy:         config.NoWinnerPolicyRefund,
		ReputationPerEvent:     5,
		ReputationCap:          100,
		RefundRetryMax:         3,
		RefundRetryBaseWait:    time.Millisecond,
		Environment:            "test",
	}
}

func setupServices(t *testing.T) (*testutil.TestDatabase, service.EconomyService, service.UserService, service.TrustService) {
	testDB := testutil.SetupTestDatabase(t)

	cfg := integrationConfig()
	bus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(testDB.DB, bus)
	strategy := service.NewReputationStrategy(cfg)

	economy := service.NewEconomyService(uowFactory, cfg, strategy, service.NewRefundAllPolicy())
	users := service.NewUserService(uowFactory, cfg)
	trust := service.NewTrustService(uowFactory, cfg)

	return testDB, economy, users, trust
}

// Full lifecycle: two buy-ins, forced start, draws until someone wins, then
// settlement. The sum of all user balances must come back to the sum of the
// starting credits; escrow neither creates nor destroys money.
func TestEconomy_FullGameLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	_, economy, users, _ := setupServices(t)
	ctx := context.Background()

	alice, err := users.GetOrCreateUser(ctx, "alice")
	require.NoError(t, err)
	bob, err := users.GetOrCreateUser(ctx, "bob")
	require.NoError(t, err)

	event, err := economy.CreateEvent(ctx, models.EventKindGame,
		decimal.RequireFromString("0.10"), 2, models.WinPatternHorizontal)
	require.NoError(t, err)

	price := decimal.RequireFromString("0.10")
	aliceCard, err := economy.Admit(ctx, alice.ID, event.ID, price)
	require.NoError(t, err)
	require.NotNil(t, aliceCard)
	_, err = economy.Admit(ctx, bob.ID, event.ID, price)
	require.NoError(t, err)

	// Buy-ins after the draw starts are rejected
	require.NoError(t, economy.StartDrawing(ctx, event.ID, false))
	_, err = economy.Admit(ctx, alice.ID, event.ID, price)
	assert.ErrorIs(t, err, models.ErrEventNotOpen)

	// Draw until a winner moves the event to SETTLING. With a horizontal
	// pattern every card eventually wins, so this terminates within 75 calls.
	for i := 0; i < models.MaxDrawNumber+1; i++ {
		_, err := economy.DrawNext(ctx, event.ID)
		if errors.Is(err, models.ErrEventNotOpen) {
			break
		}
		require.NoError(t, err)
	}

	winners, err := economy.CheckWinners(ctx, event.ID)
	require.NoError(t, err)
	require.NotEmpty(t, winners)

	require.NoError(t, economy.Settle(ctx, event.ID))

	// Money is conserved: the 0.20 pot went to the winners
	aliceAfter, err := users.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	bobAfter, err := users.GetUser(ctx, bob.ID)
	require.NoError(t, err)

	total := aliceAfter.AvailableCredits.Add(bobAfter.AvailableCredits)
	assert.True(t, total.Equal(decimal.NewFromInt(20)),
		"expected 20.00 total after settlement, got %s", total)

	// Both participants completed the event
	assert.Equal(t, 1, aliceAfter.TotalCompletedEvents)
	assert.Equal(t, 1, bobAfter.TotalCompletedEvents)
	assert.Equal(t, 5, aliceAfter.Reputation.Score)

	// Settling twice must not pay out twice
	err = economy.Settle(ctx, event.ID)
	assert.ErrorIs(t, err, models.ErrEventNotOpen)
}

func TestEconomy_CancelRefundsEveryone_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	testDB, economy, users, _ := setupServices(t)
	ctx := context.Background()

	carol, err := users.GetOrCreateUser(ctx, "carol")
	require.NoError(t, err)

	event, err := economy.CreateEvent(ctx, models.EventKindRaffle,
		decimal.RequireFromString("0.10"), 2, models.WinPatternFull)
	require.NoError(t, err)

	_, err = economy.Admit(ctx, carol.ID, event.ID, decimal.RequireFromString("0.10"))
	require.NoError(t, err)

	mid, err := users.GetUser(ctx, carol.ID)
	require.NoError(t, err)
	require.True(t, mid.AvailableCredits.Equal(decimal.RequireFromString("9.90")))

	require.NoError(t, economy.Cancel(ctx, event.ID))

	after, err := users.GetUser(ctx, carol.ID)
	require.NoError(t, err)
	assert.True(t, after.AvailableCredits.Equal(decimal.NewFromInt(10)),
		"refund restores the full starting balance, got %s", after.AvailableCredits)

	// Escrow drained to zero, no active tickets left
	escrowRepo := repository.NewEscrowRepository(testDB.DB)
	account, err := escrowRepo.GetAccount(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, account.HeldBalance.IsZero())

	active, err := escrowRepo.ListActiveTickets(ctx, event.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestEconomy_BlockedUserCannotBuyIn_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	_, economy, users, trust := setupServices(t)
	ctx := context.Background()

	dave, err := users.GetOrCreateUser(ctx, "dave")
	require.NoError(t, err)

	event, err := economy.CreateEvent(ctx, models.EventKindGame,
		decimal.RequireFromString("0.10"), 2, models.WinPatternHorizontal)
	require.NoError(t, err)

	require.NoError(t, trust.Block(ctx, dave.ID, "dispute", nil, nil))

	_, err = economy.Admit(ctx, dave.ID, event.ID, decimal.RequireFromString("0.10"))
	assert.ErrorIs(t, err, models.ErrUserBlocked)

	// Blocking froze the full balance
	status, err := users.Status(ctx, dave.ID)
	require.NoError(t, err)
	assert.True(t, status.AvailableCredits.IsZero())
	assert.True(t, status.BlockedCredits.Equal(decimal.NewFromInt(10)))

	// Unblock with refund restores spendability
	require.NoError(t, trust.Unblock(ctx, dave.ID, true))
	_, err = economy.Admit(ctx, dave.ID, event.ID, decimal.RequireFromString("0.10"))
	assert.NoError(t, err)
}

// A block whose until has lapsed no longer bars participation, even though
// the flag stays set until an operator unblocks. Credits refunded after the
// freeze must be spendable on a fresh buy-in.
func TestEconomy_ExpiredBlockCanBuyIn_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	_, economy, users, trust := setupServices(t)
	ctx := context.Background()

	erin, err := users.GetOrCreateUser(ctx, "erin")
	require.NoError(t, err)

	price := decimal.RequireFromString("0.10")
	first, err := economy.CreateEvent(ctx, models.EventKindGame, price, 2, models.WinPatternHorizontal)
	require.NoError(t, err)
	_, err = economy.Admit(ctx, erin.ID, first.ID, price)
	require.NoError(t, err)

	// The block freezes the remaining 9.90 and has already lapsed.
	until := time.Now().Add(-time.Hour)
	require.NoError(t, trust.Block(ctx, erin.ID, "cooldown", nil, &until))

	// Cancelling the first event refunds the 0.10 into available credits.
	require.NoError(t, economy.Cancel(ctx, first.ID))

	second, err := economy.CreateEvent(ctx, models.EventKindGame, price, 2, models.WinPatternHorizontal)
	require.NoError(t, err)
	card, err := economy.Admit(ctx, erin.ID, second.ID, price)
	require.NoError(t, err)
	require.NotNil(t, card)

	// The frozen balance and the flag survive until an explicit unblock.
	status, err := users.Status(ctx, erin.ID)
	require.NoError(t, err)
	assert.True(t, status.IsBlocked)
	assert.True(t, status.AvailableCredits.IsZero())
	assert.True(t, status.BlockedCredits.Equal(decimal.RequireFromString("9.90")))
}
