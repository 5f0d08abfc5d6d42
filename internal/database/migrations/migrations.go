package migrations

import (
	"fmt"
	"log/slog"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// migrationsList holds all migrations in apply order
var migrationsList []*gormigrate.Migration

func register(m *gormigrate.Migration) {
	migrationsList = append(migrationsList, m)
}

// RunMigrations applies every pending migration
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrationsList)

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("could not migrate: %w", err)
	}
	slog.Debug("migrations ran successfully", "count", len(migrationsList))
	return nil
}

// RollbackLast reverts the most recently applied migration
func RollbackLast(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrationsList)
	return m.RollbackLast()
}

// IDs lists the registered migration ids
func IDs() []string {
	ids := make([]string, 0, len(migrationsList))
	for _, m := range migrationsList {
		ids = append(ids, m.ID)
	}
	return ids
}
