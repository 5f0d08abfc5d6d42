package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
)

// CreateAmbassador inserts a new ambassador
func (s *Store) CreateAmbassador(ctx context.Context, a *models.Ambassador) error {
	return apperrors.Store("insert ambassador", s.conn(ctx).Create(a).Error)
}

// GetAmbassador loads an ambassador by id
func (s *Store) GetAmbassador(ctx context.Context, id uuid.UUID) (*models.Ambassador, error) {
	var a models.Ambassador
	if err := first(s.conn(ctx).Where("id = ?", id), &a, "ambassador", id.String()); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAmbassadorByChatID loads an ambassador by Telegram chat id
func (s *Store) GetAmbassadorByChatID(ctx context.Context, chatID string) (*models.Ambassador, error) {
	var a models.Ambassador
	if err := first(s.conn(ctx).Where("chat_id = ?", chatID), &a, "ambassador", chatID); err != nil {
		return nil, err
	}
	return &a, nil
}

// AmbassadorCodeTaken reports whether code is in use
func (s *Store) AmbassadorCodeTaken(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.Ambassador{}).Where("ambassador_code = ?", code).Count(&count).Error
	if err != nil {
		return false, apperrors.Store("count ambassador code", err)
	}
	return count > 0, nil
}

// TransitionAmbassadorStatus sets status to `to` only when it is one of from
func (s *Store) TransitionAmbassadorStatus(ctx context.Context, id uuid.UUID, from []models.AmbassadorStatus, to models.AmbassadorStatus) (bool, error) {
	result := s.conn(ctx).Model(&models.Ambassador{}).
		Where("id = ? AND status IN ?", id, from).
		UpdateColumns(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if result.Error != nil {
		return false, apperrors.Store("transition ambassador", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// AttachPartner links a partner to an ambassador, ignoring duplicates
func (s *Store) AttachPartner(ctx context.Context, link *models.AmbassadorPartner) (bool, error) {
	result := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(link)
	if result.Error != nil {
		return false, apperrors.Store("attach partner", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DetachPartner removes a partner mapping
func (s *Store) DetachPartner(ctx context.Context, ambassadorID uuid.UUID, partnerChatID string) (bool, error) {
	result := s.conn(ctx).
		Where("ambassador_id = ? AND partner_chat_id = ?", ambassadorID, partnerChatID).
		Delete(&models.AmbassadorPartner{})
	if result.Error != nil {
		return false, apperrors.Store("detach partner", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListPartners returns the ambassador's partner mappings in attach order
func (s *Store) ListPartners(ctx context.Context, ambassadorID uuid.UUID) ([]models.AmbassadorPartner, error) {
	var partners []models.AmbassadorPartner
	err := s.conn(ctx).
		Where("ambassador_id = ?", ambassadorID).
		Order("id ASC").
		Find(&partners).Error
	if err != nil {
		return nil, apperrors.Store("list partners", err)
	}
	return partners, nil
}

// InsertEarning appends an immutable earning row
func (s *Store) InsertEarning(ctx context.Context, e *models.AmbassadorEarning) error {
	return apperrors.Store("insert ambassador earning", s.conn(ctx).Create(e).Error)
}

// ListEarnings returns the latest earnings of an ambassador
func (s *Store) ListEarnings(ctx context.Context, ambassadorID uuid.UUID, limit int) ([]models.AmbassadorEarning, error) {
	var earnings []models.AmbassadorEarning
	err := s.conn(ctx).
		Where("ambassador_id = ?", ambassadorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&earnings).Error
	if err != nil {
		return nil, apperrors.Store("list ambassador earnings", err)
	}
	return earnings, nil
}

// CreditAmbassador adds amount to balance_pending and total_earnings in place
func (s *Store) CreditAmbassador(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	result := s.conn(ctx).Model(&models.Ambassador{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"balance_pending": gorm.Expr("balance_pending + ?", amount),
			"total_earnings":  gorm.Expr("total_earnings + ?", amount),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return apperrors.Store("credit ambassador", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("ambassador", id.String())
	}
	return nil
}

// DeductAmbassadorPending subtracts amount from balance_pending, moves it to
// total_paid and stamps last_payout_at. It only applies while the pending
// balance still covers amount, so accruals landing concurrently are kept.
func (s *Store) DeductAmbassadorPending(ctx context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) (bool, error) {
	result := s.conn(ctx).Model(&models.Ambassador{}).
		Where("id = ? AND balance_pending >= ?", id, amount).
		UpdateColumns(map[string]interface{}{
			"balance_pending": gorm.Expr("balance_pending - ?", amount),
			"total_paid":      gorm.Expr("total_paid + ?", amount),
			"last_payout_at":  at,
			"updated_at":      at,
		})
	if result.Error != nil {
		return false, apperrors.Store("deduct ambassador pending", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// InsertPayout records a confirmed ambassador payout
func (s *Store) InsertPayout(ctx context.Context, p *models.AmbassadorPayout) error {
	return apperrors.Store("insert ambassador payout", s.conn(ctx).Create(p).Error)
}

// PendingAmbassadorTotal sums balance_pending over all ambassadors
func (s *Store) PendingAmbassadorTotal(ctx context.Context) (decimal.Decimal, int64, error) {
	var row struct {
		Total decimal.Decimal
		Count int64
	}
	err := s.conn(ctx).Model(&models.Ambassador{}).
		Select("COALESCE(SUM(balance_pending), 0) AS total, COUNT(*) AS count").
		Where("balance_pending > 0").
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, 0, apperrors.Store("sum ambassador pending", err)
	}
	return row.Total, row.Count, nil
}
