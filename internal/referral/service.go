// Package referral builds the bounded referrer tree and fans rewards out
// over it: fixed registration bonuses, percentage transaction bonuses and
// currency-denominated partner commissions.
package referral

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/loyaltyclub/backend/internal/config"
	"github.com/loyaltyclub/backend/internal/models"
	"github.com/loyaltyclub/backend/internal/store"
)

// Store is the subset of the reward store the referral engine needs
type Store interface {
	GetUser(ctx context.Context, chatID string) (*models.User, error)
	UserExists(ctx context.Context, chatID string) (bool, error)
	FindUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (bool, error)

	InsertLink(ctx context.Context, link *models.ReferralTreeLink) (bool, error)
	FindLinksByReferred(ctx context.Context, referred string, maxLevel int) ([]models.ReferralTreeLink, error)
	BumpLinkAggregates(ctx context.Context, referrer, referred string, agg store.LinkAggregates) error

	InsertReward(ctx context.Context, reward *models.ReferralReward) (bool, error)
	GetReward(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error)
	FindReward(ctx context.Context, referrer string, rewardType models.RewardType, transactionID string) (*models.ReferralReward, error)
	CreditReward(ctx context.Context, reward *models.ReferralReward, field models.BalanceField) (bool, error)
	TransitionReward(ctx context.Context, id uuid.UUID, from, to models.RewardStatus, extra map[string]interface{}) (bool, error)
}

// Service is the referral engine
type Service struct {
	store  Store
	cfg    config.ReferralConfig
	logger *slog.Logger
}

// NewService creates a new referral engine. The config tables are copied and
// never mutated afterwards.
func NewService(st Store, cfg config.ReferralConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		cfg:    cfg,
		logger: logger.With("component", "referral"),
	}
}

// Config returns the fan-out tables in use
func (s *Service) Config() config.ReferralConfig {
	return s.cfg
}
