package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleetbooks/recon/internal/reconcile"
)

const sessionHelp = `Commands:
  ledger                          show open transactions (* = selected)
  select|deselect|toggle bank|system ID...
  clear                           clear the selection
  balance                         weigh the current selection
  suggest                         ask the matcher for candidate pairs
  apply N                         stage suggestion N as the selection
  commit                          reconcile the current selection
  pairs                           pairs reconciled in this session
  quit
`

var errQuit = errors.New("quit")

func newSessionCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Reconcile interactively",
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
			r := &repl{books: b, session: s, out: cmd.OutOrStdout()}
			return r.run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

// repl drives one Session from line-oriented input.
type repl struct {
	books   *books
	session *reconcile.Session
	out     io.Writer
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(r.out, "%d open bank, %d open system. Type help for commands.\n",
		len(r.session.Bank()), len(r.session.System()))

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "recon> ")
		if !sc.Scan() {
			fmt.Fprintln(r.out)
			return sc.Err()
		}
		err := r.exec(ctx, sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	s := r.session

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "help", "?":
		fmt.Fprint(r.out, sessionHelp)
	case "quit", "exit", "q":
		return errQuit
	case "ledger", "l":
		sel := s.Selection()
		printTxns(r.out, "Bank", s.Bank(), sel.Bank)
		printTxns(r.out, "System", s.System(), sel.System)
	case "select", "deselect", "toggle":
		if err := r.mutate(cmd, args); err != nil {
			return err
		}
		printBalance(r.out, s.Balance())
	case "clear":
		s.ClearSelection()
		printBalance(r.out, s.Balance())
	case "balance", "b":
		printBalance(r.out, s.Balance())
	case "suggest":
		return runSuggest(ctx, r.out, r.books, s)
	case "apply":
		if len(args) != 1 {
			return fmt.Errorf("usage: apply N")
		}
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("suggestion number %q: %w", args[0], err)
		}
		bal, err := s.ApplySuggestion(i)
		if err != nil {
			return err
		}
		printBalance(r.out, bal)
	case "commit":
		return runCommit(ctx, r.out, r.books, s)
	case "pairs":
		printPairs(r.out, s.Pairs())
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (r *repl) mutate(op string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s bank|system ID...", op)
	}
	s := r.session
	var fn func(string) error
	switch side := args[0]; {
	case side == "bank" && op == "select":
		fn = s.SelectBank
	case side == "bank" && op == "deselect":
		fn = s.DeselectBank
	case side == "bank":
		fn = s.ToggleBank
	case side == "system" && op == "select":
		fn = s.SelectSystem
	case side == "system" && op == "deselect":
		fn = s.DeselectSystem
	case side == "system":
		fn = s.ToggleSystem
	default:
		return fmt.Errorf("unknown side %q, want bank or system", side)
	}
	for _, id := range args[1:] {
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}
