package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"hydroingest/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the processing ledger",
	}
	cmd.AddCommand(newLedgerListCommand(ctx))
	cmd.AddCommand(newLedgerStatusCommand(ctx))
	return cmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var stateFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := parseStateFilters(stateFlags)
			if err != nil {
				return err
			}
			l, err := ctx.openLedger()
			if err != nil {
				return err
			}
			entries, err := l.List(cmd.Context(), states...)
			if err != nil {
				return fmt.Errorf("list ledger: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Ledger is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					e.FileName,
					string(e.State),
					strconv.FormatInt(e.DeploymentID, 10),
					strconv.FormatInt(e.LoggerID, 10),
					e.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
					e.Detail,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "File", "State", "Deployment", "Logger", "Updated", "Detail"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&stateFlags, "state", "s", nil, "Filter by state (repeatable)")
	return cmd
}

func newLedgerStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ledger counts per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := ctx.openLedger()
			if err != nil {
				return err
			}
			stats, err := l.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("ledger stats: %w", err)
			}
			sum, err := l.Summarize(cmd.Context())
			if err != nil {
				return fmt.Errorf("ledger summary: %w", err)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(ledger.AllStates()))
			for _, st := range ledger.AllStates() {
				rows = append(rows, []string{string(st), strconv.Itoa(stats[st])})
			}
			fmt.Fprintln(out, renderTable(out, []string{"State", "Files"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(out, "Total %d, archived %d, quarantined %d, in flight %d\n",
				sum.Total, sum.Archived, sum.Quarantined, sum.InFlight)
			return nil
		},
	}
}

func parseStateFilters(values []string) ([]ledger.State, error) {
	var out []ledger.State
	for _, raw := range values {
		st, ok := ledger.ParseState(strings.ToLower(strings.TrimSpace(raw)))
		if !ok {
			return nil, fmt.Errorf("unknown state %q", raw)
		}
		out = append(out, st)
	}
	return out, nil
}
