package referral

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
	"github.com/loyaltyclub/backend/internal/store"
)

// pointCredit describes one level of a point-denominated fan-out
type pointCredit struct {
	ancestor      Ancestor
	referred      string
	rewardType    models.RewardType
	points        int64
	transactionID string
}

// registrationKey is the dedupe key of registration rewards, so a repeated
// registration of the same user never pays a level twice
func registrationKey(chatID string) string {
	return "registration:" + chatID
}

// balanceFieldFor returns the point pool a reward type credits
func balanceFieldFor(t models.RewardType) (models.BalanceField, bool) {
	switch t {
	case models.RewardRegistration:
		return models.BalanceCommission, true
	case models.RewardTransaction, models.RewardAchievement:
		return models.BalanceSpendable, true
	}
	return "", false
}

// aggregatesFor is the link bookkeeping a credited reward contributes
func aggregatesFor(reward *models.ReferralReward) store.LinkAggregates {
	agg := store.LinkAggregates{Points: reward.Points}
	if reward.RewardType == models.RewardTransaction {
		at := reward.CreatedAt
		agg.Transactions = 1
		agg.At = &at
	}
	return agg
}

// AwardRegistrationBonuses credits the fixed registration bonus to every
// persisted ancestor of newUser. Bonuses go to commission_balance. Failures
// are isolated per level and reported in the result. Running it again for
// the same user only finishes levels that were never credited.
func (s *Service) AwardRegistrationBonuses(ctx context.Context, newUser, directReferrer string) FanOutResult {
	var res FanOutResult
	if directReferrer == "" {
		return res
	}

	ancestors, err := s.LoadAncestors(ctx, newUser, models.MaxReferralLevel)
	if err != nil {
		res.fail("", 0, "load ancestors", err)
		s.logger.Error("registration bonus aborted", "user", newUser, "error", err)
		return res
	}

	for _, a := range ancestors {
		bonus := s.cfg.RegistrationBonus(a.Level)
		if bonus <= 0 {
			res.skip(a.ReferrerID, a.Level, "no bonus configured")
			continue
		}
		s.creditPoints(ctx, &res, pointCredit{
			ancestor:      a,
			referred:      newUser,
			rewardType:    models.RewardRegistration,
			points:        bonus,
			transactionID: registrationKey(newUser),
		})
	}

	s.logger.Info("registration bonuses awarded",
		"user", newUser,
		"credited", len(res.Credited),
		"points", res.TotalPoints(),
		"failed", len(res.Failed),
	)
	return res
}

// AwardTransactionBonuses credits floor(earnedPoints * percent) to each
// persisted ancestor of client. Bonuses go to the spendable balance. The
// tree is read, never rebuilt. A repeated transactionID does not credit a
// level twice.
func (s *Service) AwardTransactionBonuses(ctx context.Context, client string, earnedPoints int64, transactionID string) FanOutResult {
	var res FanOutResult
	if earnedPoints <= 0 {
		return res
	}

	ancestors, err := s.LoadAncestors(ctx, client, models.MaxReferralLevel)
	if err != nil {
		res.fail("", 0, "load ancestors", err)
		s.logger.Error("transaction bonus aborted", "client", client, "transaction_id", transactionID, "error", err)
		return res
	}

	earned := decimal.NewFromInt(earnedPoints)

	for _, a := range ancestors {
		bonus := earned.Mul(s.cfg.TransactionPercent(a.Level)).Floor().IntPart()
		if bonus <= 0 {
			res.skip(a.ReferrerID, a.Level, "bonus rounds to zero")
			continue
		}
		s.creditPoints(ctx, &res, pointCredit{
			ancestor:      a,
			referred:      client,
			rewardType:    models.RewardTransaction,
			points:        bonus,
			transactionID: transactionID,
		})
	}

	s.logger.Info("transaction bonuses awarded",
		"client", client,
		"transaction_id", transactionID,
		"earned_points", earnedPoints,
		"credited", len(res.Credited),
		"points", res.TotalPoints(),
		"failed", len(res.Failed),
	)
	return res
}

// creditPoints runs one level: the reward row is claimed as pending, then
// settled to accumulated together with the balance credit. A row left
// pending by an earlier attempt is resumed instead of skipped. A failed
// credit leaves the reward in failed with the reason.
func (s *Service) creditPoints(ctx context.Context, res *FanOutResult, c pointCredit) {
	a := c.ancestor
	log := s.logger.With("referrer", a.ReferrerID, "referred", c.referred, "level", a.Level, "reward_type", c.rewardType)

	reward := &models.ReferralReward{
		ReferrerChatID: a.ReferrerID,
		ReferredChatID: c.referred,
		RewardType:     c.rewardType,
		Level:          a.Level,
		Points:         c.points,
		Status:         models.RewardStatusPending,
	}
	if c.transactionID != "" {
		txID := c.transactionID
		reward.TransactionID = &txID
	}

	inserted, err := s.store.InsertReward(ctx, reward)
	if err != nil {
		log.Error("failed to insert reward", "error", err)
		res.fail(a.ReferrerID, a.Level, "insert reward", err)
		return
	}
	if !inserted {
		if c.transactionID == "" {
			res.skip(a.ReferrerID, a.Level, "already rewarded")
			return
		}
		existing, err := s.store.FindReward(ctx, a.ReferrerID, c.rewardType, c.transactionID)
		if err != nil {
			log.Error("failed to load recorded reward", "error", err)
			res.fail(a.ReferrerID, a.Level, "load reward", err)
			return
		}
		if existing.Status != models.RewardStatusPending {
			log.Info("reward already recorded, skipping", "status", existing.Status)
			res.skip(a.ReferrerID, a.Level, "already rewarded")
			return
		}
		log.Info("resuming pending reward", "reward_id", existing.ID)
		reward = existing
	}

	credited, err := s.settlePoints(ctx, reward)
	if err != nil {
		log.Error("failed to credit balance", "reward_id", reward.ID, "error", err)
		res.fail(a.ReferrerID, a.Level, "credit balance", err)
		return
	}
	if !credited {
		res.skip(a.ReferrerID, a.Level, "already rewarded")
		return
	}
	res.Credited = append(res.Credited, Credit{ReferrerID: a.ReferrerID, Level: a.Level, Points: reward.Points})

	if err := s.store.BumpLinkAggregates(ctx, a.ReferrerID, c.referred, aggregatesFor(reward)); err != nil {
		log.Warn("failed to update link aggregates", "error", err)
		res.fail(a.ReferrerID, a.Level, "link aggregates", err)
	}
}

// settlePoints credits a pending point reward and settles it. A failed
// credit moves the reward to failed with the reason.
func (s *Service) settlePoints(ctx context.Context, reward *models.ReferralReward) (bool, error) {
	field, ok := balanceFieldFor(reward.RewardType)
	if !ok {
		return false, apperrors.Precondition("reward type %s has no point balance", reward.RewardType)
	}

	credited, err := s.store.CreditReward(ctx, reward, field)
	if err != nil {
		if _, markErr := s.store.TransitionReward(ctx, reward.ID, models.RewardStatusPending, models.RewardStatusFailed,
			map[string]interface{}{"failure_reason": err.Error()}); markErr != nil {
			s.logger.Error("failed to mark reward failed", "reward_id", reward.ID, "error", markErr)
		}
		return false, err
	}
	return credited, nil
}

// RecreditReward re-runs the balance credit of a point reward that was left
// failed or pending. A failed reward is made pending first. On success the
// reward is accumulated and the link aggregates carry its points.
// Commission rewards are rejected; they are settled by TON payout.
func (s *Service) RecreditReward(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error) {
	reward, err := s.store.GetReward(ctx, id)
	if err != nil {
		return nil, err
	}
	if reward.RewardType.IsCommission() {
		return nil, apperrors.Precondition("reward %s is a %s commission and is paid in TON", id, reward.RewardType)
	}

	if reward.Status == models.RewardStatusFailed {
		if _, err := s.store.TransitionReward(ctx, id, models.RewardStatusFailed, models.RewardStatusPending,
			map[string]interface{}{"failure_reason": ""}); err != nil {
			return nil, err
		}
	}

	credited, err := s.settlePoints(ctx, reward)
	if err != nil {
		return nil, err
	}
	if !credited {
		current, err := s.store.GetReward(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.Precondition("reward %s is %s, expected pending or failed", id, current.Status)
	}

	if err := s.store.BumpLinkAggregates(ctx, reward.ReferrerChatID, reward.ReferredChatID, aggregatesFor(reward)); err != nil {
		s.logger.Warn("failed to update link aggregates", "reward_id", id, "error", err)
	}
	s.logger.Info("reward re-credited", "reward_id", id, "referrer", reward.ReferrerChatID, "points", reward.Points)
	return s.store.GetReward(ctx, id)
}
