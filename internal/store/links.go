package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/loyaltyclub/backend/internal/apperrors"
	"github.com/loyaltyclub/backend/internal/models"
)

// InsertLink inserts a tree link, ignoring a conflicting (referrer, referred)
// pair. It reports whether the link is new.
func (s *Store) InsertLink(ctx context.Context, link *models.ReferralTreeLink) (bool, error) {
	result := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(link)
	if result.Error != nil {
		return false, apperrors.Store("insert tree link", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindLinksByReferred returns the links pointing at referred up to maxLevel,
// ordered by level
func (s *Store) FindLinksByReferred(ctx context.Context, referred string, maxLevel int) ([]models.ReferralTreeLink, error) {
	var links []models.ReferralTreeLink
	err := s.conn(ctx).
		Where("referred_chat_id = ? AND level BETWEEN 1 AND ?", referred, maxLevel).
		Order("level ASC").
		Find(&links).Error
	if err != nil {
		return nil, apperrors.Store("find tree links", err)
	}
	return links, nil
}

// FindLinksByReferrer returns the downline of referrer
func (s *Store) FindLinksByReferrer(ctx context.Context, referrer string) ([]models.ReferralTreeLink, error) {
	var links []models.ReferralTreeLink
	err := s.conn(ctx).
		Where("referrer_chat_id = ?", referrer).
		Order("level ASC, created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, apperrors.Store("find downline", err)
	}
	return links, nil
}

// LinkAggregates is an in-database increment of a link's counters
type LinkAggregates struct {
	Points       int64
	Transactions int64
	// At stamps last_transaction_at and activates the link when set
	At *time.Time
}

// BumpLinkAggregates applies agg to the (referrer, referred) link
func (s *Store) BumpLinkAggregates(ctx context.Context, referrer, referred string, agg LinkAggregates) error {
	updates := map[string]interface{}{
		"total_earned_points": gorm.Expr("total_earned_points + ?", agg.Points),
		"total_transactions":  gorm.Expr("total_transactions + ?", agg.Transactions),
		"updated_at":          time.Now(),
	}
	if agg.At != nil {
		updates["last_transaction_at"] = *agg.At
		updates["is_active"] = true
	}

	result := s.conn(ctx).Model(&models.ReferralTreeLink{}).
		Where("referrer_chat_id = ? AND referred_chat_id = ?", referrer, referred).
		UpdateColumns(updates)
	if result.Error != nil {
		return apperrors.Store("update tree link aggregates", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("tree link", referrer+"->"+referred)
	}
	return nil
}
