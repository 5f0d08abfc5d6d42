package referral

import (
	"context"
	"errors"
	"strings"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
)

// Ancestor is one referrer above a user
type Ancestor struct {
	ReferrerID string `json:"referrer_id"`
	Level      int    `json:"level"`
}

// ResolveReferrer decodes a registration token into a referrer chat id.
// partner_<chat_id> names the referrer directly; ref_<code> is looked up by
// referral code. Unknown or malformed tokens resolve to ("", false, nil);
// only store failures are returned as errors.
func (s *Service) ResolveReferrer(ctx context.Context, token string) (string, bool, error) {
	token = strings.TrimSpace(token)

	switch {
	case s.cfg.PartnerTokenPrefix != "" && strings.HasPrefix(token, s.cfg.PartnerTokenPrefix):
		chatID := strings.TrimPrefix(token, s.cfg.PartnerTokenPrefix)
		if chatID == "" {
			return "", false, nil
		}
		exists, err := s.store.UserExists(ctx, chatID)
		if err != nil {
			return "", false, err
		}
		if !exists {
			return "", false, nil
		}
		return chatID, true, nil

	case s.cfg.CodeTokenPrefix != "" && strings.HasPrefix(token, s.cfg.CodeTokenPrefix):
		code := strings.TrimPrefix(token, s.cfg.CodeTokenPrefix)
		if code == "" {
			return "", false, nil
		}
		owner, err := s.store.FindUserByReferralCode(ctx, code)
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return owner.ChatID, true, nil
	}

	return "", false, nil
}

// CreateLinks materialises the links directReferrer -> newUser (level 1)
// and up to two more levels by following referred_by. It is a no-op when the
// referrer is empty, unknown or newUser itself, and returns the number of
// links that did not exist before.
func (s *Service) CreateLinks(ctx context.Context, newUser, directReferrer string) (int, error) {
	if directReferrer == "" || directReferrer == newUser {
		return 0, nil
	}

	ancestor, err := s.store.GetUser(ctx, directReferrer)
	if errors.Is(err, apperrors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	created := 0
	seen := map[string]bool{newUser: true}
	for level := 1; level <= models.MaxReferralLevel; level++ {
		if seen[ancestor.ChatID] {
			s.logger.Warn("referral cycle detected", "user", newUser, "ancestor", ancestor.ChatID, "level", level)
			break
		}
		seen[ancestor.ChatID] = true

		inserted, err := s.store.InsertLink(ctx, &models.ReferralTreeLink{
			ReferrerChatID: ancestor.ChatID,
			ReferredChatID: newUser,
			Level:          level,
		})
		if err != nil {
			return created, err
		}
		if inserted {
			created++
		}

		if level == models.MaxReferralLevel || ancestor.ReferredBy == nil || *ancestor.ReferredBy == "" {
			break
		}
		next, err := s.store.GetUser(ctx, *ancestor.ReferredBy)
		if errors.Is(err, apperrors.ErrNotFound) {
			break
		}
		if err != nil {
			return created, err
		}
		ancestor = next
	}

	s.logger.Debug("tree links materialised", "user", newUser, "referrer", directReferrer, "created", created)
	return created, nil
}

// LoadAncestors returns the persisted referrers of userID ordered by level,
// one per level, never deeper than three levels
func (s *Service) LoadAncestors(ctx context.Context, userID string, maxLevel int) ([]Ancestor, error) {
	if maxLevel <= 0 || maxLevel > models.MaxReferralLevel {
		maxLevel = models.MaxReferralLevel
	}

	links, err := s.store.FindLinksByReferred(ctx, userID, maxLevel)
	if err != nil {
		return nil, err
	}

	ancestors := make([]Ancestor, 0, maxLevel)
	for level := 1; level <= maxLevel; level++ {
		for _, link := range links {
			if link.Level == level {
				ancestors = append(ancestors, Ancestor{ReferrerID: link.ReferrerChatID, Level: level})
				break
			}
		}
	}
	return ancestors, nil
}
