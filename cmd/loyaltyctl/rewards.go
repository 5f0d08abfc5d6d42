package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/loyaltyclub/backend/internal/models"
	"github.com/loyaltyclub/backend/internal/payout"
)

func newRewardsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Reward payout operations",
	}

	cmd.AddCommand(
		newRewardTransitionCommand("pay", "Mark a pending commission as paid", (*payout.Service).PaySingle),
		newRewardTransitionCommand("retry", "Make a failed commission pending again or re-credit a point reward", (*payout.Service).Retry),
		newPayPendingCommand(),
	)

	return cmd
}

type rewardTransition func(s *payout.Service, ctx context.Context, id uuid.UUID) (*models.ReferralReward, error)

func newRewardTransitionCommand(use, short string, fn rewardTransition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <reward-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid reward id %q: %w", args[0], err)
			}

			e, err := initEnv()
			if err != nil {
				return err
			}

			reward, err := fn(e.payouts(), cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reward %s is now %s\n", reward.ID, reward.Status)
			return nil
		},
	}
}

func newPayPendingCommand() *cobra.Command {
	var filter payout.Filter

	cmd := &cobra.Command{
		Use:   "pay-pending",
		Short: "Mark every pending commission matching the filter as paid",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := initEnv()
			if err != nil {
				return err
			}

			count, err := e.payouts().PayAllPending(cmd.Context(), filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "paid %d rewards\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.TypePrefix, "type-prefix", "", "Commission type prefix (default commission_)")
	cmd.Flags().StringVar(&filter.ReferrerID, "referrer", "", "Only pay rewards of this referrer chat id")

	return cmd
}
