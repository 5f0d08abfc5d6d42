package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loyaltyclub/backend/internal/ambassador"
)

func newAmbassadorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ambassadors",
		Short: "Ambassador operations",
	}

	var confirmedBy string
	payoutCmd := &cobra.Command{
		Use:   "payout <ambassador-id>",
		Short: "Confirm payout of an ambassador's pending balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid ambassador id %q: %w", args[0], err)
			}

			e, err := initEnv()
			if err != nil {
				return err
			}

			svc := ambassador.NewService(e.store, e.cfg.Ambassador, e.log)
			amount, err := svc.ConfirmPayout(cmd.Context(), id, confirmedBy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "paid %s USD to ambassador %s\n", amount.String(), id)
			return nil
		},
	}
	payoutCmd.Flags().StringVar(&confirmedBy, "confirmed-by", "loyaltyctl", "Operator recorded on the payout")

	cmd.AddCommand(payoutCmd)
	return cmd
}
