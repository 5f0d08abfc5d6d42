package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/loyaltyclub/backend/internal/config"
	"github.com/loyaltyclub/backend/internal/database"
	"github.com/loyaltyclub/backend/internal/logger"
	"github.com/loyaltyclub/backend/internal/payout"
	"github.com/loyaltyclub/backend/internal/referral"
	"github.com/loyaltyclub/backend/internal/store"
)

// openDB connects without migrating; tests swap it for an in-memory database
var openDB = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return database.Open(cfg)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "loyaltyctl",
		Short:         "Loyalty referral engine administration",
		Long:          `loyaltyctl applies migrations, issues admin tokens and runs reward and ambassador payouts and manages partner venues against the loyalty database.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newMigrateCommand(),
		newTokenCommand(),
		newRewardsCommand(),
		newAmbassadorsCommand(),
		newUsersCommand(),
	)

	return rootCmd
}

// env is what every database-backed command starts from
type env struct {
	cfg   *config.Config
	log   *slog.Logger
	db    *gorm.DB
	store *store.Store
}

func initEnv() (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Init(cfg.Logger)

	db, err := openDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &env{cfg: cfg, log: log, db: db, store: store.New(db)}, nil
}

// payouts builds the payout state machine with point re-credit wired in
func (e *env) payouts() *payout.Service {
	svc := payout.NewService(e.store, e.log)
	svc.SetPointCrediter(referral.NewService(e.store, e.cfg.Referral, e.log))
	return svc
}
