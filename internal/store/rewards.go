package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
)

// RewardFilter narrows reward queries and bulk transitions
type RewardFilter struct {
	TypePrefix string
	ReferrerID string
	Status     models.RewardStatus
}

func (f RewardFilter) apply(q *gorm.DB) *gorm.DB {
	if f.TypePrefix != "" {
		q = q.Where("reward_type LIKE ? ESCAPE '\\'", likePrefix(f.TypePrefix))
	}
	if f.ReferrerID != "" {
		q = q.Where("referrer_chat_id = ?", f.ReferrerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

// InsertReward appends a reward row. A duplicate (referrer, type,
// transaction) is ignored and reported as not inserted.
func (s *Store) InsertReward(ctx context.Context, reward *models.ReferralReward) (bool, error) {
	result := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(reward)
	if result.Error != nil {
		return false, apperrors.Store("insert reward", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetReward loads a reward by id
func (s *Store) GetReward(ctx context.Context, id uuid.UUID) (*models.ReferralReward, error) {
	var reward models.ReferralReward
	if err := first(s.conn(ctx).Where("id = ?", id), &reward, "reward", id.String()); err != nil {
		return nil, err
	}
	return &reward, nil
}

// FindReward loads the reward recorded for (referrer, type, transaction)
func (s *Store) FindReward(ctx context.Context, referrer string, rewardType models.RewardType, transactionID string) (*models.ReferralReward, error) {
	var reward models.ReferralReward
	q := s.conn(ctx).Where("referrer_chat_id = ? AND reward_type = ? AND transaction_id = ?", referrer, rewardType, transactionID)
	if err := first(q, &reward, "reward", referrer+"/"+string(rewardType)+"/"+transactionID); err != nil {
		return nil, err
	}
	return &reward, nil
}

// CreditReward settles a pending point reward. The reward moves to
// accumulated and its points land on the referrer's field in one
// transaction, so a reward is credited at most once and never marked
// accumulated without its points. It reports false when the reward was no
// longer pending.
func (s *Store) CreditReward(ctx context.Context, reward *models.ReferralReward, field models.BalanceField) (bool, error) {
	if !field.Valid() {
		return false, apperrors.Invalid("unknown balance field %q", field)
	}

	credited := false
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&models.ReferralReward{}).
			Where("id = ? AND status = ?", reward.ID, models.RewardStatusPending).
			UpdateColumns(map[string]interface{}{
				"status":         models.RewardStatusAccumulated,
				"failure_reason": "",
				"updated_at":     time.Now(),
			})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return nil
		}

		if err := incrementBalance(tx, reward.ReferrerChatID, field, reward.Points); err != nil {
			return err
		}
		credited = true
		return nil
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, err
	}
	if err != nil {
		return false, apperrors.Store("credit reward", err)
	}
	return credited, nil
}

// TransitionReward moves one reward from -> to in a single conditional
// update. It reports whether the row matched; the caller decides whether a
// miss is a not-found or a precondition failure.
func (s *Store) TransitionReward(ctx context.Context, id uuid.UUID, from, to models.RewardStatus, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := s.conn(ctx).Model(&models.ReferralReward{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(updates)
	if result.Error != nil {
		return false, apperrors.Store("transition reward", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// BulkTransitionRewards moves every reward matching filter from -> to in one
// statement and returns the affected count
func (s *Store) BulkTransitionRewards(ctx context.Context, filter RewardFilter, from, to models.RewardStatus, extra map[string]interface{}) (int64, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	filter.Status = from
	result := filter.apply(s.conn(ctx).Model(&models.ReferralReward{})).UpdateColumns(updates)
	if result.Error != nil {
		return 0, apperrors.Store("bulk transition rewards", result.Error)
	}
	return result.RowsAffected, nil
}

// ListRewards pages through rewards matching filter, newest first
func (s *Store) ListRewards(ctx context.Context, filter RewardFilter, page, pageSize int) ([]models.ReferralReward, int64, error) {
	var total int64
	if err := filter.apply(s.conn(ctx).Model(&models.ReferralReward{})).Count(&total).Error; err != nil {
		return nil, 0, apperrors.Store("count rewards", err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var rewards []models.ReferralReward
	err := filter.apply(s.conn(ctx)).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rewards).Error
	if err != nil {
		return nil, 0, apperrors.Store("list rewards", err)
	}
	return rewards, total, nil
}

// RewardSummary aggregates rewards by type and status
type RewardSummary struct {
	RewardType models.RewardType   `json:"reward_type"`
	Status     models.RewardStatus `json:"status"`
	Count      int64               `json:"count"`
	Points     int64               `json:"points"`
	AmountUSD  decimal.Decimal     `json:"amount_usd"`
}

// SummarizeRewards groups all rewards by (type, status)
func (s *Store) SummarizeRewards(ctx context.Context) ([]RewardSummary, error) {
	var rows []RewardSummary
	err := s.conn(ctx).Model(&models.ReferralReward{}).
		Select("reward_type, status, COUNT(*) AS count, COALESCE(SUM(points), 0) AS points, COALESCE(SUM(amount_usd), 0) AS amount_usd").
		Group("reward_type, status").
		Order("reward_type, status").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Store("summarize rewards", err)
	}
	return rows, nil
}
