package referral

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
)

// usdPlaces is the precision of stored commission amounts
const usdPlaces = 8

// AwardPartnerCommissions records commission_l1..l3 rewards for the
// ancestors of a partner that processed a check. Amounts are currency and
// stay pending until an admin pays them out; no point balance is touched.
func (s *Service) AwardPartnerCommissions(ctx context.Context, partner string, checkAmount decimal.Decimal, transactionID string) FanOutResult {
	var res FanOutResult
	if !checkAmount.IsPositive() {
		return res
	}

	user, err := s.store.GetUser(ctx, partner)
	if err != nil {
		res.fail("", 0, "load partner", err)
		return res
	}
	if !user.IsPartner {
		res.fail("", 0, "load partner", apperrors.Precondition("user %s is not a partner", partner))
		return res
	}

	ancestors, err := s.LoadAncestors(ctx, partner, models.MaxReferralLevel)
	if err != nil {
		res.fail("", 0, "load ancestors", err)
		s.logger.Error("partner commission aborted", "partner", partner, "error", err)
		return res
	}

	var txID *string
	if transactionID != "" {
		txID = &transactionID
	}

	for _, a := range ancestors {
		amount := checkAmount.Mul(s.cfg.PartnerCommission(a.Level)).RoundDown(usdPlaces)
		if !amount.IsPositive() {
			res.skip(a.ReferrerID, a.Level, "commission rounds to zero")
			continue
		}

		inserted, err := s.store.InsertReward(ctx, &models.ReferralReward{
			ReferrerChatID: a.ReferrerID,
			ReferredChatID: partner,
			RewardType:     models.CommissionRewardType(a.Level),
			Level:          a.Level,
			AmountUSD:      amount,
			Status:         models.RewardStatusPending,
			TransactionID:  txID,
			MetaData:       models.JSON{"check_amount": checkAmount.String()},
		})
		if err != nil {
			s.logger.Error("failed to insert commission", "referrer", a.ReferrerID, "level", a.Level, "error", err)
			res.fail(a.ReferrerID, a.Level, "insert reward", err)
			continue
		}
		if !inserted {
			res.skip(a.ReferrerID, a.Level, "already rewarded")
			continue
		}
		res.Credited = append(res.Credited, Credit{ReferrerID: a.ReferrerID, Level: a.Level, AmountUSD: amount})
	}

	s.logger.Info("partner commissions recorded",
		"partner", partner,
		"transaction_id", transactionID,
		"check_amount", checkAmount.String(),
		"credited", len(res.Credited),
		"amount_usd", res.TotalUSD().String(),
	)
	return res
}
