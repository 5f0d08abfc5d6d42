package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "User administration",
	}
	cmd.AddCommand(newSetPartnerCommand())
	return cmd
}

func newSetPartnerCommand() *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "partner <chat-id>",
		Short: "Flag a user as a partner venue so checks earn commissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := initEnv()
			if err != nil {
				return err
			}

			if err := e.store.SetPartner(cmd.Context(), args[0], !off); err != nil {
				return err
			}
			if off {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s is no longer a partner\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s is now a partner\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "Remove the partner flag instead")
	return cmd
}
