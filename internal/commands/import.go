package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleetbooks/recon/internal/activity"
	"github.com/fleetbooks/recon/internal/importer"
)

func newImportCommand(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import bank statements",
		Long: "Import one statement file, or every CSV waiting in statements/. " +
			"Files taken from statements/ are moved to statements/processed/ once stored.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBooks(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.Close()

			if format == "" {
				format = b.cfg.Statement.Format
			}
			parser := importer.DefaultRegistry().Get(format)
			if parser == nil {
				return fmt.Errorf("unknown statement format %q (known: %s)",
					format, strings.Join(importer.DefaultRegistry().Formats(), ", "))
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				return importFile(cmd.Context(), b, parser, args[0], false, out)
			}

			files, err := importer.Scan(b.root)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(out, "No statements to import.")
				return nil
			}
			var failed int
			for _, f := range files {
				if err := importFile(cmd.Context(), b, parser, f.Path, true, out); err != nil {
					fmt.Fprintf(out, "%s: %v\n", f.Name, err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d statements failed to import", failed, len(files))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "statement format (default from recon.yaml)")

	return cmd
}

func importFile(ctx context.Context, b *books, parser importer.Parser, path string, fromInbox bool, out io.Writer) error {
	name := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening statement: %w", err)
	}
	batch, err := parser.Parse(f)
	f.Close()
	if err != nil {
		if errors.Is(err, importer.ErrFormat) {
			b.log.Warn("statement rejected", zap.String("file", name), zap.Error(err))
		}
		return err
	}

	if err := b.store.AddBankTransactions(ctx, batch.Transactions); err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}
	if fromInbox {
		if err := importer.MarkProcessed(b.root, name); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "%s: %d accepted, %d skipped (batch %s)\n", name, batch.Accepted(), len(batch.Skipped), batch.ID)
	for _, d := range batch.Skipped {
		fmt.Fprintf(out, "  row %d: %s\n", d.Row, d.Reason)
	}

	b.log.Info("statement imported",
		zap.String("file", name),
		zap.String("batch", batch.ID),
		zap.Int("accepted", batch.Accepted()),
		zap.Int("skipped", len(batch.Skipped)))
	b.record(activity.ActionImport,
		fmt.Sprintf("%s: %d accepted, %d skipped, batch %s", name, batch.Accepted(), len(batch.Skipped), batch.ID), "")
	return nil
}
