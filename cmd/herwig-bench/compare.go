package main

import (
	"fmt"

	"herwigbench/internal/report"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	fasterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	slowerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <baseline.csv> <current.csv>",
		Short: "Compare a report against a baseline",
		Long: `Compares the mean duration, energy and emissions of a report with a
baseline report of the same phase. With --threshold, exits non-zero when
duration or energy grew by more than that many percent.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, _ := cmd.Flags().GetFloat64("threshold")

			var summaries [2]report.Summary
			for i, path := range args {
				ms, err := report.ReadCSV(path)
				if err != nil {
					return err
				}
				summaries[i] = report.Summarize(path, ms)
			}

			c := report.Compare(summaries[:1], summaries[1:])[0]
			style := fasterStyle
			if c.DurationDiff > 0 || c.EnergyDiff > 0 {
				style = slowerStyle
			}
			fmt.Fprintln(cmd.OutOrStdout(), style.Render(c.String()))

			if threshold > 0 && c.Regressed(threshold) {
				return fmt.Errorf("regression above %.1f%% against %s", threshold, args[0])
			}
			return nil
		},
	}
	cmd.Flags().Float64("threshold", 0, "Fail when duration or energy regress by more than this percentage")
	return cmd
}
