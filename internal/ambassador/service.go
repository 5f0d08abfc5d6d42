// Package ambassador runs the ambassador revenue share: partner portfolio
// management, attributed check earnings split 70/30 with the platform, and
// confirmation of pending balance payouts.
package ambassador

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/config"
	"github.com/loyaltyclub/backend/internal/models"
)

var (
	// PlatformFeeShare is the platform's cut of every gross commission
	PlatformFeeShare = decimal.RequireFromString("0.30")
	// AmbassadorShare is what the ambassador keeps
	AmbassadorShare = decimal.RequireFromString("0.70")
)

const moneyPlaces = 8

// Store is the subset of the reward store the ambassador engine needs
type Store interface {
	GetUser(ctx context.Context, chatID string) (*models.User, error)

	CreateAmbassador(ctx context.Context, a *models.Ambassador) error
	GetAmbassador(ctx context.Context, id uuid.UUID) (*models.Ambassador, error)
	GetAmbassadorByChatID(ctx context.Context, chatID string) (*models.Ambassador, error)
	AmbassadorCodeTaken(ctx context.Context, code string) (bool, error)
	TransitionAmbassadorStatus(ctx context.Context, id uuid.UUID, from []models.AmbassadorStatus, to models.AmbassadorStatus) (bool, error)

	AttachPartner(ctx context.Context, link *models.AmbassadorPartner) (bool, error)
	DetachPartner(ctx context.Context, ambassadorID uuid.UUID, partnerChatID string) (bool, error)
	ListPartners(ctx context.Context, ambassadorID uuid.UUID) ([]models.AmbassadorPartner, error)

	InsertEarning(ctx context.Context, e *models.AmbassadorEarning) error
	ListEarnings(ctx context.Context, ambassadorID uuid.UUID, limit int) ([]models.AmbassadorEarning, error)
	CreditAmbassador(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	DeductAmbassadorPending(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error)
	InsertPayout(ctx context.Context, p *models.AmbassadorPayout) error
}

// Service is the ambassador commission engine
type Service struct {
	store  Store
	cfg    config.AmbassadorConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new ambassador engine
func NewService(st Store, cfg config.AmbassadorConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultMaxPartners <= 0 {
		cfg.DefaultMaxPartners = 10
	}
	return &Service{
		store:  st,
		cfg:    cfg,
		logger: logger.With("component", "ambassador"),
		now:    time.Now,
	}
}

// Get loads an ambassador
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Ambassador, error) {
	return s.store.GetAmbassador(ctx, id)
}

// Register promotes an existing user to ambassador. maxPartners <= 0 uses
// the configured default.
func (s *Service) Register(ctx context.Context, chatID, name string, maxPartners int) (*models.Ambassador, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, apperrors.Invalid("chat id is required")
	}
	if maxPartners <= 0 {
		maxPartners = s.cfg.DefaultMaxPartners
	}

	if _, err := s.store.GetUser(ctx, chatID); err != nil {
		return nil, err
	}
	_, err := s.store.GetAmbassadorByChatID(ctx, chatID)
	if err == nil {
		return nil, apperrors.Precondition("user %s is already an ambassador", chatID)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	code, err := s.newCode(ctx, name)
	if err != nil {
		return nil, err
	}

	a := &models.Ambassador{
		ChatID:         chatID,
		Name:           name,
		AmbassadorCode: code,
		Status:         models.AmbassadorActive,
		MaxPartners:    maxPartners,
		BalancePending: decimal.Zero,
		TotalEarnings:  decimal.Zero,
		TotalPaid:      decimal.Zero,
	}
	if err := s.store.CreateAmbassador(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("ambassador registered", "ambassador_id", a.ID, "chat_id", chatID, "code", code)
	return a, nil
}

// newCode builds slug(name)-xxxxxxxx, retrying on the rare collision
func (s *Service) newCode(ctx context.Context, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "ambassador"
	}
	for attempt := 0; attempt < 3; attempt++ {
		code := fmt.Sprintf("%s-%s", base, uuid.New().String()[:8])
		taken, err := s.store.AmbassadorCodeTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", apperrors.Precondition("could not allocate an ambassador code for %q", name)
}
