package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fleetbooks/recon/internal/activity"
	"github.com/fleetbooks/recon/internal/model"
	"github.com/fleetbooks/recon/internal/reconcile"
)

// selectionFlags are the --bank/--system ID lists shared by balance and
// reconcile.
type selectionFlags struct {
	bank   []string
	system []string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.bank, "bank", nil, "bank transaction IDs")
	cmd.Flags().StringSliceVar(&f.system, "system", nil, "system transaction IDs")
}

func (f *selectionFlags) apply(s *reconcile.Session) error {
	for _, id := range f.bank {
		if err := s.SelectBank(id); err != nil {
			return err
		}
	}
	for _, id := range f.system {
		if err := s.SelectSystem(id); err != nil {
			return err
		}
	}
	return nil
}

func newBalanceCommand(opts *globalOptions) *cobra.Command {
	var sel selectionFlags

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Weigh a selection of bank and system transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBooks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.Close()

			s, err := b.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := sel.apply(s); err != nil {
				return err
			}
			printBalance(cmd.OutOrStdout(), s.Balance())
			return nil
		},
	}
	sel.register(cmd)
	return cmd
}

func newReconcileCommand(opts *globalOptions) *cobra.Command {
	var sel selectionFlags

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Commit a balanced selection as a reconciled pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBooks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.Close()

			s, err := b.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := sel.apply(s); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bal := s.Balance()
			printBalance(out, bal)
			if !bal.Reconcilable {
				return reconcile.ErrNotReconcilable
			}

			return runCommit(cmd.Context(), out, b, s)
		},
	}
	sel.register(cmd)
	return cmd
}

func newSuggestCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "Ask the configured matcher for candidate pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBooks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.Close()

			s, err := b.session(cmd.Context())
			if err != nil {
				return err
			}
			return runSuggest(cmd.Context(), cmd.OutOrStdout(), b, s)
		},
	}
}

// runCommit commits the selection and records the outcome, failed or not,
// in the activity log.
func runCommit(ctx context.Context, out io.Writer, b *books, s *reconcile.Session) error {
	pair, err := s.Commit(ctx)
	if err != nil {
		b.record(activity.ActionCommitFail, err.Error(), "")
		return err
	}
	fmt.Fprintf(out, "Reconciled %s\n", pair.ID)
	b.record(activity.ActionReconcile, pairDetails(pair), pair.ID)
	return nil
}

func runSuggest(ctx context.Context, out io.Writer, b *books, s *reconcile.Session) error {
	suggestions, err := s.Suggest(ctx)
	if err != nil {
		b.record(activity.ActionMatchFail, err.Error(), "")
		return err
	}
	status := s.MatcherStatus()
	b.record(activity.ActionSuggest,
		fmt.Sprintf("%d suggestion(s), %d dropped", len(suggestions), len(status.Dropped)), "")

	if len(suggestions) == 0 {
		fmt.Fprintln(out, "No confident matches.")
		return nil
	}
	bank, system := s.Bank(), s.System()
	for i, sug := range suggestions {
		printSuggestion(out, i, sug, reconcile.Calculate(bank, system, selectionOf(sug)))
	}
	return nil
}

func pairDetails(pair model.ReconciledPair) string {
	return fmt.Sprintf("%d bank, %d system, net %s",
		len(pair.BankItems), len(pair.SystemItems), pair.Net().StringFixed(2))
}
