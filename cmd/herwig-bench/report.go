package main

import (
	"fmt"
	"path/filepath"

	"herwigbench/internal/report"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <csv>...",
		Short: "Summarise one or more report files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asMarkdown, _ := cmd.Flags().GetBool("markdown")
			noColor, _ := cmd.Flags().GetBool("no-color")
			if noColor {
				lipgloss.SetColorProfile(termenv.Ascii)
			}

			summaries := make([]report.Summary, 0, len(args))
			for _, path := range args {
				ms, err := report.ReadCSV(path)
				if err != nil {
					return err
				}
				summaries = append(summaries, report.Summarize(filepath.Base(path), ms))
			}

			if !asMarkdown {
				fmt.Fprintln(cmd.OutOrStdout(), report.RenderTable(summaries))
				return nil
			}

			md := report.RenderMarkdown("Herwig benchmark", summaries)
			out, err := renderMarkdown(md, noColor)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().Bool("markdown", false, "Render the summary as markdown")
	cmd.Flags().Bool("no-color", false, "Disable colours and styling")
	return cmd
}

func renderMarkdown(md string, plain bool) (string, error) {
	style := glamour.WithAutoStyle()
	if plain {
		style = glamour.WithStandardStyle("notty")
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(100))
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return renderer.Render(md)
}
