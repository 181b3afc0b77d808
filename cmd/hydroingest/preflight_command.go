package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hydroingest/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, ledger and store before ingesting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var pinger preflight.Pinger
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Store unavailable: %v\n", err)
			} else {
				pinger = st
			}

			results := preflight.RunAll(cmd.Context(), cfg, pinger)
			out := cmd.OutOrStdout()
			printPreflight(out, results)
			if err != nil || preflight.Failed(results) {
				return fmt.Errorf("preflight failed")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

func printPreflight(out io.Writer, results []preflight.Result) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "OK"
		if !r.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{r.Name, status, r.Detail})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Check", "Status", "Detail"}, rows, nil))
}
