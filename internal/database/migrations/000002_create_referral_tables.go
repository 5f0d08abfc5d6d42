package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/loyaltyclub/backend/internal/models"
)

// The (referrer, referred) unique index on referral_tree_links backs the
// insert-ignore used by the tree builder.
func createReferralTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_referral_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.ReferralTreeLink{}, &models.ReferralReward{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("referral_rewards", "referral_tree_links")
		},
	}
}

func init() {
	register(createReferralTables())
}
