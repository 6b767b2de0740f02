package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"herwigbench/internal/config"
	"herwigbench/internal/model"
	"herwigbench/internal/report"
	"herwigbench/internal/store"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"
)

var askOne = survey.AskOne

var isInteractive = func() bool {
	stat, err := os.Stdin.Stat()
	return err == nil && (stat.Mode()&os.ModeCharDevice) != 0
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [experiment-id]",
		Short: "Show past experiments",
		Long: `Lists experiments recorded in the history store, or shows one in detail.
Without an id in a terminal, prompts for a selection.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Get()
			if err != nil {
				return err
			}
			st, err := storeFactory(cfg.Store)
			if errors.Is(err, store.ErrDisabled) {
				return fmt.Errorf("history is disabled (store.type is none)")
			}
			if err != nil {
				return fmt.Errorf("failed to open history store: %w", err)
			}
			defer st.Close()

			if len(args) == 1 {
				return showExperiment(cmd, st, args[0])
			}

			limit, _ := cmd.Flags().GetInt("limit")
			exps, err := st.ListExperiments(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list experiments: %w", err)
			}
			if len(exps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No experiments recorded.")
				return nil
			}

			if list, _ := cmd.Flags().GetBool("list"); list || !isInteractive() {
				printExperiments(cmd, exps)
				return nil
			}
			return selectExperiment(cmd, st, exps)
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of experiments to list")
	cmd.Flags().Bool("list", false, "Print the list instead of prompting")
	return cmd
}

func experimentStatus(e model.Experiment) string {
	switch {
	case e.Interrupted:
		return "interrupted"
	case e.FinishedAt.IsZero():
		return "unfinished"
	}
	return "complete"
}

func experimentLine(e model.Experiment) string {
	return fmt.Sprintf("%s  %s  %-11s %d runs, %d evt, %d jobs",
		e.ID[:min(8, len(e.ID))], e.StartedAt.Local().Format("2006-01-02 15:04"), experimentStatus(e), e.Runs, e.Events, e.Jobs)
}

func printExperiments(cmd *cobra.Command, exps []model.Experiment) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tRUNS\tEVENTS\tJOBS\tEXECUTOR\tSTATUS")
	for _, e := range exps {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			e.ID, e.StartedAt.Local().Format("2006-01-02 15:04"), e.Runs, e.Events, e.Jobs, e.Executor, experimentStatus(e))
	}
	w.Flush()
}

func selectExperiment(cmd *cobra.Command, st store.Store, exps []model.Experiment) error {
	options := make([]string, 0, len(exps))
	byLine := make(map[string]string, len(exps))
	for _, e := range exps {
		line := experimentLine(e)
		options = append(options, line)
		byLine[line] = e.ID
	}

	var selected string
	prompt := &survey.Select{
		Message:  "Select an experiment:",
		Options:  options,
		PageSize: 15,
	}
	if err := askOne(prompt, &selected); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return nil
		}
		return fmt.Errorf("failed to select experiment: %w", err)
	}
	return showExperiment(cmd, st, byLine[selected])
}

func showExperiment(cmd *cobra.Command, st store.Store, id string) error {
	exp, err := st.GetExperiment(cmd.Context(), id)
	if err != nil {
		return err
	}
	ms, err := st.LoadMeasurements(cmd.Context(), id, "")
	if err != nil {
		return fmt.Errorf("failed to load measurements: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Experiment:\t%s\n", exp.ID)
	fmt.Fprintf(w, "Project:\t%s\n", exp.Project)
	fmt.Fprintf(w, "Started:\t%s\n", exp.StartedAt.Local().Format(time.RFC1123))
	if !exp.FinishedAt.IsZero() {
		fmt.Fprintf(w, "Duration:\t%s\n", exp.FinishedAt.Sub(exp.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(w, "Input:\t%s\n", exp.Input)
	fmt.Fprintf(w, "Runs:\t%d (+%d warm-up)\n", exp.Runs, exp.Warmup)
	fmt.Fprintf(w, "Events / jobs:\t%d / %d\n", exp.Events, exp.Jobs)
	fmt.Fprintf(w, "Executor:\t%s\n", exp.Executor)
	fmt.Fprintf(w, "Interrupted:\t%t\n", exp.Interrupted)
	w.Flush()

	var integration, generation []model.PhaseMeasurement
	for _, m := range ms {
		if m.Phase == model.PhaseGeneration {
			generation = append(generation, m)
		} else {
			integration = append(integration, m)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), report.RenderTable([]report.Summary{
		report.Summarize("Integration", integration),
		report.Summarize("Generation", generation),
	}))
	return nil
}
