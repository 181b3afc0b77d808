package main

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"hydroingest/internal/ncfile"
)

func newInspectCommand(_ *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "inspect <file>",
		Short:       "Decode a measurement file and summarize its contents",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ncfile.NetCDFReader{}.Read(args[0])
			if err != nil {
				return fmt.Errorf("inspect %s: %w", args[0], err)
			}
			printFileSummary(cmd.OutOrStdout(), f)
			return nil
		},
	}
}

func printFileSummary(out io.Writer, f *ncfile.File) {
	fmt.Fprintf(out, "File:        %s (%d bytes)\n", f.Name, f.Size)
	fmt.Fprintf(out, "Logger:      %d\n", f.LoggerID)
	fmt.Fprintf(out, "Deployment:  %d (%s .. %s)\n", f.DeploymentID,
		f.Deployment.Start.Format("2006-01-02 15:04:05"), f.Deployment.End.Format("2006-01-02 15:04:05"))
	if f.Contact.ID != 0 {
		fmt.Fprintf(out, "Contact:     %d %s %s\n", f.Contact.ID, f.Contact.FirstName, f.Contact.LastName)
	}
	if f.Vessel.Name != "" {
		fmt.Fprintf(out, "Vessel:      %s (%s)\n", f.Vessel.Name, f.Vessel.ID)
	}
	fmt.Fprintf(out, "Samples:     %d\n", f.Len())
	fmt.Fprintf(out, "Sensors:     %v\n\n", f.SensorIDs())

	rows := make([][]string, 0, len(f.Variables))
	for _, v := range f.Variables {
		sensor := "-"
		if id, ok := v.SensorID(); ok {
			sensor = strconv.FormatInt(id, 10)
		}
		rows = append(rows, []string{v.Name, sensor, v.Units, strconv.Itoa(countValid(v.Values)), yesNo(v.IsRaw())})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Variable", "Sensor", "Units", "Values", "Raw"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	))
}

func countValid(values []float64) int {
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
