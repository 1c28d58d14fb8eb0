package commands

import (
	"github.com/spf13/cobra"

	"github.com/fleetbooks/recon/internal/reconcile"
)

func newLedgerCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "List open bank and system transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBooks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.Close()

			bank, system, err := b.ledgers(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printTxns(out, "Bank", bank.All(), reconcile.IDSet{})
			printTxns(out, "System", system.All(), reconcile.IDSet{})
			return nil
		},
	}
}

func newPairsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pairs",
		Short: "List reconciled pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBooks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.Close()

			pairs, err := b.store.Pairs(cmd.Context())
			if err != nil {
				return err
			}
			printPairs(cmd.OutOrStdout(), pairs)
			return nil
		},
	}
}
