// Command resultctl imports result workbooks and looks up records directly
// against the configured store, without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"resultportal/internal/app"
	"resultportal/internal/config"
	"resultportal/internal/ingest"
	"resultportal/internal/logging"
	"resultportal/internal/queue"
	"resultportal/internal/results"
)

// env is what the subcommands run against.
type env struct {
	repo   results.Repository
	events queue.Publisher
	logger *zap.Logger
	close  func()
}

type opener func(ctx context.Context) (*env, error)

func openConfigured(verbose bool) opener {
	return func(ctx context.Context) (*env, error) {
		cfg := config.Load()
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger, err := logging.New("dev", level)
		if err != nil {
			return nil, err
		}
		b, err := app.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		var events queue.Publisher
		if cfg.QueueBackend != "memory" {
			events = b.Queue
		}
		return &env{repo: b.Repo, events: events, logger: logger, close: b.Close}, nil
	}
}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	var timeout time.Duration

	root := &cobra.Command{
		Use:           "resultctl",
		Short:         "Administer the result portal store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")
	root.SetOut(out)

	withEnv := func(run func(ctx context.Context, e *env, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			e, err := open(ctx)
			if err != nil {
				return err
			}
			if e.close != nil {
				defer e.close()
			}
			if e.logger == nil {
				e.logger = zap.NewNop()
			}
			return run(ctx, e, args)
		}
	}

	importCmd := &cobra.Command{
		Use:   "import [workbook.xlsx]",
		Short: "Import every sheet of a result workbook",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(ctx context.Context, e *env, args []string) error {
			path := args[0]
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".xlsx" && ext != ".xls" {
				return fmt.Errorf("%s: not an Excel file (.xls or .xlsx)", path)
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			sum, err := ingest.NewPipeline(e.repo, e.logger).IngestReader(ctx, f)
			if err != nil {
				return err
			}
			evt := queue.ImportCompleted{
				BatchID:      sum.BatchID,
				Filename:     filepath.Base(path),
				Sheets:       sum.Sheets,
				RowsUpserted: sum.RowsUpserted,
				RowsSkipped:  sum.RowsSkipped,
				RowsFailed:   sum.RowsFailed,
				By:           "resultctl",
				At:           time.Now().UTC(),
			}
			if err := queue.PublishJSON(ctx, e.events, queue.TypeImportCompleted, evt); err != nil {
				e.logger.Warn("publish import.completed failed", zap.Error(err))
			}
			fmt.Fprintf(out, "batch %s: %d sheets, %d upserted, %d skipped, %d failed\n",
				sum.BatchID, sum.Sheets, sum.RowsUpserted, sum.RowsSkipped, sum.RowsFailed)
			return nil
		}),
	}

	var rollNo, dob string
	lookupCmd := &cobra.Command{
		Use:   "lookup",
		Short: "Print a student's result as JSON",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(ctx context.Context, e *env, _ []string) error {
			rec, ok, err := results.NewService(e.repo, nil, e.logger).Lookup(ctx, rollNo, dob)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no result found for %s", rollNo)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}),
	}
	lookupCmd.Flags().StringVar(&rollNo, "roll", "", "Roll number")
	lookupCmd.Flags().StringVar(&dob, "dob", "", "Date of birth (YYYY-MM-DD)")
	_ = lookupCmd.MarkFlagRequired("roll")
	_ = lookupCmd.MarkFlagRequired("dob")

	hashCmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(h))
			return nil
		},
	}

	root.AddCommand(importCmd, lookupCmd, hashCmd)
	return root
}

func main() {
	verbose := os.Getenv("RESULTCTL_VERBOSE") != ""
	if err := newRootCmd(openConfigured(verbose), os.Stdout).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
