package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockedby/mailmerge/internal/app"
	"github.com/blockedby/mailmerge/internal/dispatcher"
	"github.com/blockedby/mailmerge/internal/report"
)

type sendOptions struct {
	dryRun     bool
	reportPath string
	output     string
	actor      string
	count      int
	quiet      bool
}

func newSendCommand() *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send JOB_FILE",
		Short: "Send one message per row and audit every outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return runSend(cmd, rt, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Log messages instead of sending; skip the workbook audit log")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write results to this XLSX file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", FormatTable, "Output format: table, json, yaml")
	cmd.Flags().StringVar(&opts.actor, "actor", "", "Actor written to the audit log (overrides the run YAML)")
	cmd.Flags().IntVar(&opts.count, "count", 0, "Send only the first N rows (overrides the job file)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print per-row progress")

	return cmd
}

func runSend(cmd *cobra.Command, rt *runtimeState, path string, opts *sendOptions) error {
	job, err := LoadJobFile(path)
	if err != nil {
		return err
	}
	if opts.count > 0 {
		n := opts.count
		job.Count = &n
	}

	rc, err := rt.loadRunConfig(opts.dryRun)
	if err != nil {
		return err
	}
	if opts.actor != "" {
		rc.Actor = opts.actor
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, rt.cfg, rc, app.Options{DryRun: opts.dryRun}, rt.log)
	if err != nil {
		return err
	}
	defer components.Close()

	runner := dispatcher.NewRunner(components.Deps())

	out := runner.Run(ctx, dispatcher.Job{
		Rows:            job.Rows,
		RecipientColumn: job.RecipientColumn,
		Template:        job.Template(),
		Mapping:         job.Mapping,
		Count:           job.RequestedCount(),
		Config:          rc,
		Preflight:       components.Preflight,
		OnProgress: func(p dispatcher.Progress) {
			if opts.quiet {
				return
			}
			_, _ = fmt.Fprintf(rt.errOut, "[%d/%d] %3.0f%% %s %s\n",
				p.Processed, p.Requested, p.Percent, p.Last.Recipient, p.Last.Status)
		},
	})

	if !out.Started() {
		_ = writeReport(rt.out, FormatTable, out.Report)
		return out.Err
	}
	if out.Failed() {
		return out.Err
	}

	if err := writeResults(rt.out, opts.output, out.Results); err != nil {
		return err
	}

	summary := out.Summary()
	_, _ = fmt.Fprintf(rt.errOut, "run %s: %d sent, %d failed, %d audit rows persisted, %d partial, %d dropped\n",
		summary.RunID, summary.Sent, summary.Failed, summary.Audit.Persisted, summary.Audit.Partial, summary.Audit.Dropped)

	if opts.reportPath != "" {
		if err := report.Save(opts.reportPath, out.Results); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(rt.errOut, "report written to %s\n", opts.reportPath)
	}

	return nil
}
