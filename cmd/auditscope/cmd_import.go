package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/auditscope/internal/dbpool"
	"github.com/persistorai/auditscope/internal/store"
)

func newImportCmd() *cobra.Command {
	var (
		dryRun bool
		target string
	)

	cmd := &cobra.Command{
		Use:   "import <sqlite-file>",
		Short: "Copy reports from a SQLite export into PostgreSQL",
		Long: `Copy every report stored in a SQLite export (fetch -f sqlite) into the
PostgreSQL database at DATABASE_URL. Reports already present are skipped
and each copied report's entry count is verified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				target = cfg.DatabaseURL.Value()
			}
			return runImport(cmd.Context(), args[0], target, dryRun, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Read the export without writing")
	cmd.Flags().StringVar(&target, "database-url", "", "Target database (env: DATABASE_URL)")

	return cmd
}

func runImport(ctx context.Context, path, target string, dryRun bool, w io.Writer) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("sqlite export: %w", err)
	}
	if target == "" && !dryRun {
		return fmt.Errorf("import needs DATABASE_URL or --database-url")
	}

	src, err := store.OpenSQLite(ctx, path, log)
	if err != nil {
		return err
	}
	defer src.Close()

	var dst store.Sink
	if !dryRun {
		dst, err = store.Open(ctx, store.KindPostgres, target, log)
		if err != nil {
			return err
		}
		defer dst.Close()
	}

	start := time.Now()
	res, err := store.Copy(ctx, src, dst, dryRun, log)
	printImport(w, path, dbpool.Redact(target), &res, time.Since(start), err)
	return err
}

func printImport(w io.Writer, source, target string, r *store.CopyResult, d time.Duration, err error) {
	fmt.Fprintln(w, "=== auditscope import ===")
	if r.DryRun {
		fmt.Fprintln(w, "MODE: DRY RUN (no changes made)")
	}
	fmt.Fprintf(w, "Source:  %s\n", source)
	fmt.Fprintf(w, "Target:  %s\n", target)
	fmt.Fprintf(w, "Reports: %d read, %d copied, %d skipped\n", r.ReportsRead, r.ReportsCopied, r.ReportsSkipped)
	fmt.Fprintf(w, "Entries: %d read, %d copied\n", r.EntriesRead, r.EntriesCopied)
	fmt.Fprintf(w, "Duration: %.1fs\n", d.Seconds())
	if err != nil {
		fmt.Fprintf(w, "Status: FAILED: %v\n", err)
		return
	}
	fmt.Fprintln(w, "Status: OK")
}
