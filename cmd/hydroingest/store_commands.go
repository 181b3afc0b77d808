package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"hydroingest/internal/store"
)

func newStoreCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the measurement store",
	}
	cmd.AddCommand(newStoreStatusCommand(ctx))
	cmd.AddCommand(newStoreErrorsCommand(ctx))
	return cmd
}

func newStoreStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show row counts of the measurement tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			counts, err := st.Counts(cmd.Context())
			if err != nil {
				return err
			}
			cfg, _ := ctx.ensureConfig()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Driver: %s\n", cfg.Store.Driver)
			tables := []string{
				store.TableDeployment,
				store.TableRawValue,
				store.TableProcessedValue,
				store.TableCheckAtProcessedValue,
				store.TableProcessedValueHasRawValue,
				store.TableErrors,
			}
			rows := make([][]string, 0, len(tables))
			for _, table := range tables {
				rows = append(rows, []string{table, strconv.FormatInt(counts[table], 10)})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Table", "Rows"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newStoreErrorsCommand(ctx *commandContext) *cobra.Command {
	var unsolvedOnly bool

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List recorded ingestion errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			records, err := st.Errors(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				if unsolvedOnly && rec.Solved != 0 {
					continue
				}
				rows = append(rows, []string{
					strconv.FormatInt(rec.ID, 10),
					rec.Time.Local().Format("2006-01-02 15:04:05"),
					strconv.FormatInt(rec.DeploymentID, 10),
					strconv.FormatInt(rec.LoggerID, 10),
					yesNo(rec.Solved != 0),
					rec.Description,
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No errors recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Time", "Deployment", "Logger", "Solved", "Description"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&unsolvedOnly, "unsolved", false, "Only show errors not yet marked solved")
	return cmd
}
