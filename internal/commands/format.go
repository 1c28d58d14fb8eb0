package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fleetbooks/recon/internal/model"
	"github.com/fleetbooks/recon/internal/reconcile"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// signedString renders a transaction amount with its sign, e.g. "-45.20".
func signedString(t model.Transaction) string {
	return t.Signed().StringFixed(2)
}

func printTxns(w io.Writer, title string, txns []model.Transaction, sel reconcile.IDSet) {
	fmt.Fprintf(w, "%s (%d open)\n", title, len(txns))
	if len(txns) == 0 {
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "  \tID\tDATE\tTYPE\tAMOUNT\tDESCRIPTION")
	for _, t := range txns {
		mark := " "
		if sel.Contains(t.ID) {
			mark = "*"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			mark, t.ID, t.Date.Format("2006-01-02"), t.Type, signedString(t), t.Description)
	}
	_ = tw.Flush()
}

func printBalance(w io.Writer, bal reconcile.Balance) {
	status := "NOT RECONCILABLE"
	if bal.Reconcilable {
		status = "reconcilable"
	}
	fmt.Fprintf(w, "bank %s (%d)  system %s (%d)  difference %s  %s\n",
		bal.BankTotal.StringFixed(2), bal.BankCount,
		bal.SystemTotal.StringFixed(2), bal.SystemCount,
		bal.Difference.StringFixed(2), status)
}

func printPairs(w io.Writer, pairs []model.ReconciledPair) {
	if len(pairs) == 0 {
		fmt.Fprintln(w, "No reconciled pairs.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "PAIR\tRECONCILED AT\tBANK\tSYSTEM\tNET")
	for _, p := range pairs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.ReconciledAt.Format("2006-01-02 15:04:05Z07:00"),
			strings.Join(p.Members(model.SourceBank), ","),
			strings.Join(p.Members(model.SourceSystem), ","),
			p.Net().StringFixed(2))
	}
	_ = tw.Flush()
}

func printSuggestion(w io.Writer, i int, sug model.MatchSuggestion, bal reconcile.Balance) {
	fmt.Fprintf(w, "[%d] bank %s <-> system %s\n", i,
		strings.Join(sug.BankTransactionIDs, ","), strings.Join(sug.SystemTransactionIDs, ","))
	if sug.Reason != "" {
		fmt.Fprintf(w, "    %s\n", sug.Reason)
	}
	fmt.Fprint(w, "    ")
	printBalance(w, bal)
}

func selectionOf(sug model.MatchSuggestion) reconcile.Selection {
	return reconcile.Selection{
		Bank:   reconcile.NewIDSet(sug.BankTransactionIDs...),
		System: reconcile.NewIDSet(sug.SystemTransactionIDs...),
	}
}
