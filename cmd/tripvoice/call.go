package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tbxark/tripvoice/campaign"
)

var callCmd = &cobra.Command{
	Use:   "call <phone>",
	Short: "Dispatch one outbound planning call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		phone := campaign.NormalizePhone(args[0])
		if phone == "" {
			return campaign.ErrNoNumbers
		}
		if err := a.newDispatcher().Dispatch(cmd.Context(), phone); err != nil {
			return fmt.Errorf("failed to call %s: %w", phone, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Call to %s dispatched\n", phone)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(callCmd)
}
