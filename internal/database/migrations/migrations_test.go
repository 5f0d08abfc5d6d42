package migrations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loyaltyclub/backend/internal/database/dbtest"
	"github.com/loyaltyclub/backend/internal/database/migrations"
)

func TestMigrationsCreateTables(t *testing.T) {
	db := dbtest.Open(t)

	for _, table := range []string{
		"users",
		"referral_tree_links",
		"referral_rewards",
		"ambassadors",
		"ambassador_partners",
		"ambassador_earnings",
		"ambassador_payouts",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("referral_tree_links", "idx_tree_link_pair"))
}

func TestMigrationsAreOrderedAndRerunnable(t *testing.T) {
	ids := migrations.IDs()
	require.Len(t, ids, 3)
	assert.Equal(t, "000001_create_users_table", ids[0])

	db := dbtest.Open(t)
	assert.NoError(t, migrations.RunMigrations(db))
}

func TestRollbackLast(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, migrations.RollbackLast(db))
	assert.False(t, db.Migrator().HasTable("ambassadors"))
	assert.True(t, db.Migrator().HasTable("referral_rewards"))
}
