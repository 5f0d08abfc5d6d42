package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/loyaltyclub/backend/internal/models"
)

func createAmbassadorTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_ambassador_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Ambassador{},
				&models.AmbassadorPartner{},
				&models.AmbassadorEarning{},
				&models.AmbassadorPayout{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("ambassador_payouts", "ambassador_earnings", "ambassador_partners", "ambassadors")
		},
	}
}

func init() {
	register(createAmbassadorTables())
}
