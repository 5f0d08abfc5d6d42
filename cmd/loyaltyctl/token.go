package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loyaltyclub/backend/internal/config"
	"github.com/loyaltyclub/backend/internal/utils"
)

func newTokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if ttl <= 0 {
				ttl = time.Duration(cfg.JWT.Expiration) * time.Hour
			}

			token, err := utils.GenerateAdminToken(cfg.JWT.Secret, subject, true, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Operator recorded as the token subject (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_EXPIRATION hours)")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
