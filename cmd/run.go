package cmd

import (
	"context"
	"fmt"

	"bingocore/config"
	"bingocore/database"
	"bingocore/events"
	"bingocore/repository"
	"bingocore/service"

	log "github.com/sirupsen/logrus"
)

// Services bundles the wired-up core for an embedding application
type Services struct {
	Users   service.UserService
	Trust   service.TrustService
	Economy service.EconomyService
	Bus     *events.Bus
	DB      *database.DB
}

// Setup wires configuration, database, event bus and services together
func Setup(ctx context.Context) (*Services, error) {
	cfg := config.Get()

	log.Info("Connecting to database...")
	databaseURL := database.ConstructDatabaseURL(cfg.DatabaseURL, cfg.DatabaseName)
	db, err := database.NewConnection(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	strategy := service.NewReputationStrategy(cfg)

	var noWinner service.NoWinnerPolicy
	switch cfg.NoWinnerPolicy {
	case config.NoWinnerPolicyCarryOver:
		noWinner = service.NewCarryOverPolicy(strategy)
	default:
		noWinner = service.NewRefundAllPolicy()
	}

	return &Services{
		Users:   service.NewUserService(uowFactory, cfg),
		Trust:   service.NewTrustService(uowFactory, cfg),
		Economy: service.NewEconomyService(uowFactory, cfg, strategy, noWinner),
		Bus:     eventBus,
		DB:      db,
	}, nil
}

// Run initializes the core and blocks until the context is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()

	services, err := Setup(ctx)
	if err != nil {
		return err
	}
	defer services.DB.Close()

	log.WithFields(log.Fields{
		"environment":      cfg.Environment,
		"no_winner_policy": cfg.NoWinnerPolicy,
		"draw_interval":    cfg.DrawInterval,
	}).Info("Economy core is running")

	<-ctx.Done()

	log.Info("Shutting down...")
	return nil
}
