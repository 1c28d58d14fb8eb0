package commands

import (
	"github.com/spf13/cobra"

	"github.com/fleetbooks/recon/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "recon",
		Short:   "Bank reconciliation for small-business books",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.books, "books", ".", "books directory")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides recon.yaml")

	rootCmd.AddCommand(
		newInitCommand(),
		newImportCommand(opts),
		newLedgerCommand(opts),
		newBalanceCommand(opts),
		newSuggestCommand(opts),
		newReconcileCommand(opts),
		newPairsCommand(opts),
		newSessionCommand(opts),
	)

	return rootCmd
}
