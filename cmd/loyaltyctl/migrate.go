package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loyaltyclub/backend/internal/database/migrations"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := initEnv()
				if err != nil {
					return err
				}
				if err := migrations.RunMigrations(e.db); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := initEnv()
				if err != nil {
					return err
				}
				if err := migrations.RollbackLast(e.db); err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "last migration rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List known migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, id := range migrations.IDs() {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			},
		},
	)

	return cmd
}
