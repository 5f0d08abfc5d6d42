package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
)

const referralCodeLength = 8

// Registration is the outcome of RegisterUser
type Registration struct {
	User       *models.User `json:"user"`
	Created    bool         `json:"created"`
	ReferrerID string       `json:"referrer_id,omitempty"`
	NewLinks   int          `json:"new_links"`
	Bonuses    FanOutResult `json:"-"`
}

// RegisterUser handles a /start: the token is resolved, the user is created
// with referred_by fixed once, and for a user with a referrer the tree is
// materialised and registration bonuses fanned out. A repeated registration
// keeps the stored referrer, ignores the new token and re-runs the
// idempotent tree and bonus steps, so an earlier attempt that stopped
// half-way is completed and nothing is paid twice. Store failures while
// building the tree are returned so the registration can be retried;
// per-level bonus failures are reported in Bonuses.
func (s *Service) RegisterUser(ctx context.Context, chatID, token string) (*Registration, error) {
	existing, err := s.store.GetUser(ctx, chatID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return s.completeRegistration(ctx, &Registration{User: existing})
	}

	referrer, ok, err := s.ResolveReferrer(ctx, token)
	if err != nil {
		return nil, err
	}
	if ok && referrer == chatID {
		ok = false
	}

	code, err := generateReferralCode(referralCodeLength)
	if err != nil {
		return nil, err
	}
	user := &models.User{ChatID: chatID, ReferralCode: &code}
	if ok {
		user.ReferredBy = &referrer
	}

	created, err := s.store.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if !created {
		// lost a race with a concurrent registration of the same user
		if user, err = s.store.GetUser(ctx, chatID); err != nil {
			return nil, err
		}
	}
	return s.completeRegistration(ctx, &Registration{User: user, Created: created})
}

func (s *Service) completeRegistration(ctx context.Context, reg *Registration) (*Registration, error) {
	chatID := reg.User.ChatID
	if reg.User.ReferredBy == nil || *reg.User.ReferredBy == "" {
		if reg.Created {
			s.logger.Info("user registered", "user", chatID)
		}
		return reg, nil
	}
	referrer := *reg.User.ReferredBy
	reg.ReferrerID = referrer

	links, err := s.CreateLinks(ctx, chatID, referrer)
	reg.NewLinks = links
	if err != nil {
		s.logger.Error("failed to materialise tree links", "user", chatID, "referrer", referrer, "error", err)
		return nil, err
	}

	reg.Bonuses = s.AwardRegistrationBonuses(ctx, chatID, referrer)
	if err := reg.Bonuses.Aborted(); err != nil {
		return nil, err
	}

	if reg.Created {
		s.logger.Info("user registered", "user", chatID, "referrer", referrer, "new_links", links)
	} else if links > 0 || len(reg.Bonuses.Credited) > 0 {
		s.logger.Info("registration completed", "user", chatID, "referrer", referrer,
			"new_links", links, "credited", len(reg.Bonuses.Credited))
	}
	return reg, nil
}

func generateReferralCode(length int) (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
