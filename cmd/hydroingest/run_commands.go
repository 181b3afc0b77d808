package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"hydroingest/internal/ingest"
	"hydroingest/internal/ledger"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest every file currently in the inbound directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			d, err := ctx.newDaemon(cmd.Context(), out, skipPreflight)
			if err != nil {
				return err
			}
			report, err := d.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			printReport(out, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and store checks")
	return cmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the inbound directory until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := ctx.newDaemon(cmd.Context(), cmd.OutOrStdout(), skipPreflight)
			if err != nil {
				return err
			}
			return d.Watch(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and store checks")
	return cmd
}

func printReport(out io.Writer, report ingest.Report) {
	if len(report.Outcomes) == 0 {
		fmt.Fprintln(out, "No files in the inbound directory")
		return
	}
	rows := make([][]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		detail := ""
		if o.Err != nil {
			detail = ingest.Reason(o.Err)
		}
		rows = append(rows, []string{
			o.File,
			string(o.State),
			strconv.FormatInt(o.DeploymentID, 10),
			strconv.FormatInt(o.LoggerID, 10),
			strconv.Itoa(o.Sensors),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"File", "State", "Deployment", "Logger", "Sensors", "Reason"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	fmt.Fprintf(out, "Run %s: %d archived, %d quarantined\n", report.RunID,
		report.Count(ledger.StateArchived), report.Count(ledger.StateQuarantined))
	if report.Interrupted {
		fmt.Fprintln(out, "Interrupted; remaining files stay in the inbound directory")
	}
}
