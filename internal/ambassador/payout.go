package ambassador

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
)

// ConfirmPayout pays out the pending balance observed when the call starts.
// Only that amount is deducted, so earnings credited between the read and
// the deduction stay pending for the next payout. The paid amount is
// returned.
func (s *Service) ConfirmPayout(ctx context.Context, ambassadorID uuid.UUID, confirmedBy string) (decimal.Decimal, error) {
	a, err := s.store.GetAmbassador(ctx, ambassadorID)
	if err != nil {
		return decimal.Zero, err
	}

	amount := a.BalancePending
	if !amount.IsPositive() {
		return decimal.Zero, apperrors.Precondition("ambassador %s has nothing pending", ambassadorID)
	}

	now := s.now()
	ok, err := s.store.DeductAmbassadorPending(ctx, ambassadorID, amount, now)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return decimal.Zero, apperrors.Precondition("pending balance of ambassador %s changed during payout", ambassadorID)
	}

	if err := s.store.InsertPayout(ctx, &models.AmbassadorPayout{
		AmbassadorID: ambassadorID,
		Amount:       amount,
		ConfirmedBy:  confirmedBy,
	}); err != nil {
		s.logger.Error("payout applied but audit row not written", "ambassador_id", ambassadorID, "amount", amount.String(), "error", err)
	}

	s.logger.Info("ambassador payout confirmed", "ambassador_id", ambassadorID, "amount", amount.String(), "confirmed_by", confirmedBy)
	return amount, nil
}
