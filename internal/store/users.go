package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
)

// GetUser loads a user by chat id
func (s *Store) GetUser(ctx context.Context, chatID string) (*models.User, error) {
	var user models.User
	if err := first(s.conn(ctx).Where("chat_id = ?", chatID), &user, "user", chatID); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserExists reports whether chatID is a registered user
func (s *Store) UserExists(ctx context.Context, chatID string) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.User{}).Where("chat_id = ?", chatID).Count(&count).Error
	if err != nil {
		return false, apperrors.Store("count user", err)
	}
	return count > 0, nil
}

// FindUserByReferralCode resolves a referral code to its owner
func (s *Store) FindUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	if err := first(s.conn(ctx).Where("referral_code = ?", code), &user, "referral code", code); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a user unless the chat id already exists. It reports
// whether a row was written; referred_by is therefore only ever set once.
// Only a chat id conflict is ignored; any other unique violation, such as a
// referral code collision, is returned as a store error.
func (s *Store) CreateUser(ctx context.Context, user *models.User) (bool, error) {
	result := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoNothing: true,
	}).Create(user)
	if result.Error != nil {
		return false, apperrors.Store("insert user", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// incrementBalance adds delta to one of the user's point pools with
// in-database arithmetic
func incrementBalance(q *gorm.DB, chatID string, field models.BalanceField, delta int64) error {
	result := q.Model(&models.User{}).
		Where("chat_id = ?", chatID).
		UpdateColumn(string(field), gorm.Expr(string(field)+" + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("user", chatID)
	}
	return nil
}

// SetPartner flags or unflags a user as a partner venue
func (s *Store) SetPartner(ctx context.Context, chatID string, isPartner bool) error {
	result := s.conn(ctx).Model(&models.User{}).
		Where("chat_id = ?", chatID).
		Update("is_partner", isPartner)
	if result.Error != nil {
		return apperrors.Store("update partner flag", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("user", chatID)
	}
	return nil
}
