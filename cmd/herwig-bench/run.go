package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"herwigbench/internal/config"
	"herwigbench/internal/energy"
	"herwigbench/internal/executor"
	"herwigbench/internal/experiment"
	"herwigbench/internal/metrics"
	"herwigbench/internal/model"
	"herwigbench/internal/notify"
	"herwigbench/internal/publish"
	"herwigbench/internal/report"
	"herwigbench/internal/store"
	"herwigbench/internal/telemetry"

	"github.com/AlecAivazis/survey/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Factories allow mocking in tests.
var (
	executorFactory = executor.New
	trackerFactory  = func(cfg config.Energy) (experiment.Scope, error) {
		return energy.NewFromConfig(cfg)
	}
	storeFactory     = store.New
	publisherFactory = func(cfg config.MQTT) (publisherCloser, error) {
		return publish.Connect(cfg)
	}
)

type publisherCloser interface {
	experiment.Observer
	Close() error
}

// runFlags maps run's flags to their configuration keys.
var runFlags = map[string]string{
	"runs":           "experiment.runs",
	"warmup":         "experiment.warmup",
	"delay":          "experiment.delay",
	"failure-policy": "experiment.failure_policy",
	"phase-timeout":  "experiment.phase_timeout",
	"events":         "herwig.events",
	"jobs":           "herwig.jobs",
	"run-dir":        "herwig.run_dir",
	"input":          "herwig.input",
	"binary":         "herwig.binary",
	"executor":       "executor.type",
	"report-dir":     "report.dir",
	"metrics-addr":   "metrics.addr",
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark loop and write the phase reports",
		Long: `Runs Herwig's integration ("read") and generation ("run") phases for the
configured number of iterations, measuring each phase, then writes the
integration and generation reports. Ctrl-C stops the loop and still saves
what was measured.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd.Flags(), runFlags)
		},
		RunE: runExperiment,
	}

	f := cmd.Flags()
	f.Int("runs", 10, "Number of measured iterations")
	f.Int("warmup", 0, "Number of unrecorded warm-up iterations")
	f.Duration("delay", 2*time.Second, "Pause between iterations")
	f.String("failure-policy", "record", "What to do with a failed phase: record or skip")
	f.Duration("phase-timeout", 0, "Kill a phase running longer than this (0 disables)")
	f.Int("events", 2000, "Events to generate per run (-N)")
	f.Int("jobs", 1, "Parallel generation jobs (-j)")
	f.String("run-dir", ".", "Directory Herwig runs in")
	f.String("input", "LHC-Matchbox.in", "Herwig input file")
	f.String("binary", "Herwig", "Herwig executable")
	f.String("executor", "local", "Where Herwig runs: local or docker")
	f.String("report-dir", ".", "Directory for the CSV reports")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	f.BoolP("yes", "y", false, "Overwrite existing reports without asking")

	return cmd
}

// bindFlags copies explicitly set flags over the configuration.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		fl := fs.Lookup(name)
		if fl == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := viper.BindPFlag(key, fl); err != nil {
			return err
		}
	}
	return nil
}

// reportPaths resolves the two output files. Without explicit names the
// conventional ones are used, prefixed by the configured prefix or today's
// date.
func reportPaths(cfg *config.Config, now time.Time) report.Paths {
	prefix := cfg.Report.Prefix
	if prefix == "" {
		prefix = now.Format("20060102")
	}
	name := func(explicit string, phase model.Phase) string {
		if explicit == "" {
			explicit = report.FileName(prefix, phase, cfg.Herwig.Events, cfg.Experiment.Runs)
		}
		if filepath.IsAbs(explicit) {
			return explicit
		}
		return filepath.Join(cfg.Report.Dir, explicit)
	}
	return report.Paths{
		Integration: name(cfg.Report.IntegrationFile, model.PhaseIntegration),
		Generation:  name(cfg.Report.GenerationFile, model.PhaseGeneration),
	}
}

func confirmOverwrite(paths report.Paths) (bool, error) {
	var existing []string
	for _, p := range []string{paths.Integration, paths.Generation} {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return true, nil
	}

	ok := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Overwrite existing report(s) %v?", existing),
		Default: false,
	}
	if err := askOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func runExperiment(cmd *cobra.Command, args []string) error {
	if err := config.ValidateConfig(); err != nil {
		return err
	}
	cfg, err := config.Get()
	if err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}

	paths := reportPaths(cfg, time.Now())
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		ok, err := confirmOverwrite(paths)
		if err != nil {
			return fmt.Errorf("failed to confirm overwrite: %w", err)
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted, existing reports left untouched.")
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := slog.Default()

	tracker, err := trackerFactory(cfg.Energy)
	if err != nil {
		return fmt.Errorf("failed to set up energy tracking: %w", err)
	}

	ex, err := executorFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up %s executor: %w", cfg.Executor.Type, err)
	}
	defer func() {
		if err := ex.Close(); err != nil {
			logger.Warn("Failed to clean up executor", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	observers := []experiment.Observer{metrics.NewMetrics(reg)}
	if addr := cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := telemetry.StartMetricsServer(ctx, addr, reg); err != nil {
				logger.Warn("Failed to start metrics server", "addr", addr, "error", err)
			}
		}()
	}

	st, err := storeFactory(cfg.Store)
	switch {
	case errors.Is(err, store.ErrDisabled):
	case err != nil:
		logger.Warn("History store unavailable, continuing without it", "type", cfg.Store.Type, "error", err)
	default:
		defer st.Close()
		observers = append(observers, store.NewRecorder(st))
	}

	if cfg.MQTT.Broker != "" {
		pub, err := publisherFactory(cfg.MQTT)
		if err != nil {
			logger.Warn("MQTT publishing disabled", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			defer pub.Close()
			observers = append(observers, pub)
		}
	}

	notifier := notify.NewManager(logger)
	if notifier.Enabled() {
		observers = append(observers, notifier)
	}

	runner := experiment.NewRunner(experiment.SettingsFromConfig(cfg), ex, tracker,
		experiment.WithObservers(observers...),
		experiment.WithLogger(logger),
	)
	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	written, saveErr := report.Save(logger, res.Integration, res.Generation, paths)

	summaries := []report.Summary{
		report.Summarize("Integration", res.Integration),
		report.Summarize("Generation", res.Generation),
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.RenderTable(summaries))
	for _, p := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", p)
	}

	if err := notifier.Finished(context.WithoutCancel(ctx), &res.Experiment, summaries, written); err != nil {
		logger.Warn("Failed to send completion notification", "error", err)
	}

	if saveErr != nil {
		return saveErr
	}
	if res.Interrupted() {
		return fmt.Errorf("experiment interrupted after %d of %d iterations", res.Iterations, cfg.Experiment.TotalIterations())
	}
	return nil
}
