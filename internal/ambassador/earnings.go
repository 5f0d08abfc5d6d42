package ambassador

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
)

// Split is the breakdown of one attributed check
type Split struct {
	Gross            decimal.Decimal
	PlatformFee      decimal.Decimal
	AmbassadorAmount decimal.Decimal
}

// SplitCommission computes gross = check * pct and splits it 30/70 between
// platform and ambassador. Fee and ambassador share always sum to gross.
func SplitCommission(checkAmount, commissionPct decimal.Decimal) Split {
	gross := checkAmount.Mul(commissionPct).Round(moneyPlaces)
	fee := gross.Mul(PlatformFeeShare).Round(moneyPlaces)
	return Split{
		Gross:            gross,
		PlatformFee:      fee,
		AmbassadorAmount: gross.Sub(fee),
	}
}

// RecordEarning attributes a partner check to an ambassador. The ambassador
// must be active and the partner attached within max_partners. The earning
// row is written first, then the pending balance and lifetime total are
// incremented in place.
func (s *Service) RecordEarning(ctx context.Context, ambassadorID uuid.UUID, partnerChatID string, checkAmount, commissionPct decimal.Decimal) (*models.AmbassadorEarning, error) {
	if !checkAmount.IsPositive() {
		return nil, apperrors.Invalid("check amount must be positive, got %s", checkAmount)
	}
	if !commissionPct.IsPositive() || commissionPct.GreaterThan(decimal.NewFromInt(1)) {
		return nil, apperrors.Invalid("commission pct must be in (0, 1], got %s", commissionPct)
	}

	a, err := s.store.GetAmbassador(ctx, ambassadorID)
	if err != nil {
		return nil, err
	}
	if a.Status != models.AmbassadorActive {
		return nil, apperrors.Precondition("ambassador %s is %s", ambassadorID, a.Status)
	}

	partners, err := s.store.ListPartners(ctx, ambassadorID)
	if err != nil {
		return nil, err
	}
	attached, withinCap := partnerWithinCap(partners, partnerChatID, a.MaxPartners)
	if !attached {
		return nil, apperrors.Precondition("partner %s is not attached to ambassador %s", partnerChatID, ambassadorID)
	}
	if !withinCap {
		return nil, apperrors.Precondition("partner %s exceeds max_partners %d of ambassador %s", partnerChatID, a.MaxPartners, ambassadorID)
	}

	split := SplitCommission(checkAmount, commissionPct)
	earning := &models.AmbassadorEarning{
		AmbassadorID:     ambassadorID,
		PartnerChatID:    partnerChatID,
		CheckAmount:      checkAmount,
		CommissionPct:    commissionPct,
		GrossAmount:      split.Gross,
		PlatformFee:      split.PlatformFee,
		AmbassadorAmount: split.AmbassadorAmount,
	}
	if err := s.store.InsertEarning(ctx, earning); err != nil {
		return nil, err
	}

	if err := s.store.CreditAmbassador(ctx, ambassadorID, split.AmbassadorAmount); err != nil {
		s.logger.Error("earning recorded but balance not credited",
			"ambassador_id", ambassadorID,
			"earning_id", earning.ID,
			"amount", split.AmbassadorAmount.String(),
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("ambassador earning recorded",
		"ambassador_id", ambassadorID,
		"partner", partnerChatID,
		"gross", split.Gross.String(),
		"ambassador_amount", split.AmbassadorAmount.String(),
	)
	return earning, nil
}

// Earnings lists the latest earnings of an ambassador
func (s *Service) Earnings(ctx context.Context, ambassadorID uuid.UUID, limit int) ([]models.AmbassadorEarning, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.store.ListEarnings(ctx, ambassadorID, limit)
}
