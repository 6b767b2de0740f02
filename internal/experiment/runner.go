package experiment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"herwigbench/internal/energy"
	"herwigbench/internal/executor"
	"herwigbench/internal/model"
	"herwigbench/internal/report"

	"github.com/google/uuid"
)

// Scope is a start/stop measurement bracket. *energy.Tracker satisfies it.
type Scope interface {
	StartTask(name string) error
	StopTask() (energy.Measurement, error)
}

// Observer receives every measurement the runner keeps.
type Observer interface {
	ObserveMeasurement(ctx context.Context, exp *model.Experiment, m model.PhaseMeasurement) error
}

// FailureObserver is notified of every failed phase, warm-up included,
// whether or not the failure policy keeps the row. Phases killed by
// cancellation are not failures.
type FailureObserver interface {
	ObservePhaseFailure(ctx context.Context, exp *model.Experiment, m model.PhaseMeasurement) error
}

// IterationObserver is notified after every completed iteration.
type IterationObserver interface {
	ObserveIteration(warmup bool)
}

// LifecycleObserver is notified when the experiment starts and ends.
type LifecycleObserver interface {
	ExperimentStarted(ctx context.Context, exp *model.Experiment) error
	ExperimentFinished(ctx context.Context, exp *model.Experiment) error
}

// Results is what an experiment produced.
type Results struct {
	Experiment  model.Experiment
	Integration []model.PhaseMeasurement
	Generation  []model.PhaseMeasurement
	// Iterations counts completed iterations, warm-up included.
	Iterations int
	Failures   int
}

// Interrupted reports whether the loop was stopped by cancellation.
func (r *Results) Interrupted() bool {
	return r.Experiment.Interrupted
}

// Measurements returns the kept sequence for phase.
func (r *Results) Measurements(phase model.Phase) []model.PhaseMeasurement {
	if phase == model.PhaseIntegration {
		return r.Integration
	}
	return r.Generation
}

// Runner drives the read/run loop.
type Runner struct {
	settings  Settings
	exec      executor.Executor
	scope     Scope
	observers []Observer
	logger    *slog.Logger

	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	removeFile func(path string) error
}

// Option customises a Runner.
type Option func(*Runner)

// WithObservers adds observers. Each one is also checked for the
// FailureObserver, IterationObserver and LifecycleObserver hooks.
func WithObservers(obs ...Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, obs...) }
}

// WithLogger replaces slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner builds a Runner over ex, measuring each phase with scope.
func NewRunner(s Settings, ex executor.Executor, scope Scope, opts ...Option) *Runner {
	r := &Runner{
		settings:   s,
		exec:       ex,
		scope:      scope,
		logger:     slog.Default(),
		now:        time.Now,
		sleep:      sleepContext,
		removeFile: os.Remove,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes warm-up plus measured iterations. A failed subprocess never
// stops the loop; cancelling ctx does, and the partial results are
// returned with Experiment.Interrupted set.
func (r *Runner) Run(ctx context.Context) (*Results, error) {
	s := r.settings
	if err := s.validate(); err != nil {
		return nil, err
	}

	res := &Results{
		Experiment: model.Experiment{
			ID:            uuid.NewString(),
			Project:       s.Project,
			StartedAt:     r.now().UTC(),
			Runs:          s.Runs,
			Warmup:        s.Warmup,
			Events:        s.Events,
			Jobs:          s.Jobs,
			Input:         s.Input,
			Executor:      s.Executor,
			SchemaVersion: report.SchemaVersion,
		},
	}
	exp := &res.Experiment
	log := r.logger.With("experiment", exp.ID)

	for _, o := range r.observers {
		if lo, ok := o.(LifecycleObserver); ok {
			if err := lo.ExperimentStarted(ctx, exp); err != nil {
				log.Warn("observer failed to record experiment start", "error", err)
			}
		}
	}

	total := s.Warmup + s.Runs
	log.Info("Starting experiment", "iterations", total, "warmup", s.Warmup, "events", s.Events, "jobs", s.Jobs)

	for i := 1; i <= total; i++ {
		if ctx.Err() != nil {
			exp.Interrupted = true
			break
		}
		warmup := i <= s.Warmup
		run := i - s.Warmup
		if warmup {
			run = i
		}
		log.Info("Starting full run", "iteration", i, "of", total, "warmup", warmup)

		r.removeRunFile(log)

		completed := true
		for _, phase := range model.Phases {
			pm, ok := r.runPhase(ctx, log, phase, run, warmup)
			if ctx.Err() != nil {
				completed = false
				break
			}
			if pm.Failed() {
				res.Failures++
				r.reportFailure(ctx, log, exp, pm)
			}
			if warmup || !ok {
				continue
			}
			r.keep(ctx, log, res, pm)
		}
		if !completed {
			exp.Interrupted = true
			break
		}

		res.Iterations++
		for _, o := range r.observers {
			if io, ok := o.(IterationObserver); ok {
				io.ObserveIteration(warmup)
			}
		}

		if i < total && s.Delay > 0 {
			if err := r.sleep(ctx, s.Delay); err != nil {
				exp.Interrupted = true
				break
			}
		}
	}

	exp.FinishedAt = r.now().UTC()
	if exp.Interrupted {
		log.Warn("Experiment interrupted", "completed_iterations", res.Iterations, "of", total)
	} else {
		log.Info("Experiment complete", "iterations", res.Iterations, "failures", res.Failures)
	}

	// the caller's context may already be cancelled
	finishCtx := context.WithoutCancel(ctx)
	for _, o := range r.observers {
		if lo, ok := o.(LifecycleObserver); ok {
			if err := lo.ExperimentFinished(finishCtx, exp); err != nil {
				log.Warn("observer failed to record experiment end", "error", err)
			}
		}
	}

	return res, nil
}

// runPhase measures one phase. ok is false when the record must not be kept.
func (r *Runner) runPhase(ctx context.Context, log *slog.Logger, phase model.Phase, run int, warmup bool) (model.PhaseMeasurement, bool) {
	s := r.settings
	name := TaskName(phase, run, warmup)

	cmd := s.integrationCommand()
	if phase == model.PhaseGeneration {
		cmd = s.generationCommand()
	}

	phaseCtx := ctx
	if s.PhaseTimeout > 0 {
		var cancel context.CancelFunc
		phaseCtx, cancel = context.WithTimeout(ctx, s.PhaseTimeout)
		defer cancel()
	}

	m, result, runErr, scopeErr := r.measure(phaseCtx, name, cmd)
	if scopeErr != nil {
		log.Error("Measurement scope unavailable", "task", name, "error", scopeErr)
		m.StartedAt = r.now()
		if result != nil {
			m.Duration = result.Elapsed
			m.StartedAt = m.StartedAt.Add(-result.Elapsed)
		}
	}

	pm := model.PhaseMeasurement{
		Phase:          phase,
		TaskName:       name,
		Iteration:      run,
		Status:         model.StatusOK,
		StartedAt:      m.StartedAt.UTC(),
		Duration:       m.Duration.Seconds(),
		CPUEnergy:      m.CPUEnergy,
		RAMEnergy:      m.RAMEnergy,
		EnergyConsumed: m.EnergyConsumed,
		Emissions:      m.Emissions,
	}
	if result != nil {
		pm.ExitCode = result.ExitCode
	}

	if runErr != nil {
		pm.Status = model.StatusFailed
		pm.Error = runErr.Error()
		if ctx.Err() != nil {
			return pm, false
		}
		stderr := ""
		if result != nil {
			stderr = result.Stderr
		}
		log.Error("Phase failed", "task", name, "phase", phase, "error", runErr, "stderr", stderr)
		return pm, s.Policy == PolicyRecord
	}

	log.Info("Phase complete", "task", name, "phase", phase, "duration", fmt.Sprintf("%.2fs", pm.Duration), "energy_kwh", pm.EnergyConsumed)
	return pm, true
}

// measure runs cmd inside the measurement scope. The scope is closed on
// every path once it has been opened.
func (r *Runner) measure(ctx context.Context, name string, cmd executor.Command) (m energy.Measurement, res *executor.Result, runErr, scopeErr error) {
	if err := r.scope.StartTask(name); err != nil {
		res, runErr = r.runSafely(ctx, cmd)
		return energy.Measurement{TaskName: name}, res, runErr, err
	}
	defer func() {
		var measErr error
		m, measErr = r.scope.StopTask()
		switch {
		case errors.Is(measErr, energy.ErrNoActiveTask):
			scopeErr = measErr
		case measErr != nil:
			r.logger.Warn("Energy measurement incomplete", "task", name, "error", measErr)
		}
	}()

	res, runErr = r.runSafely(ctx, cmd)
	return m, res, runErr, nil
}

func (r *Runner) runSafely(ctx context.Context, cmd executor.Command) (res *executor.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = &executor.Result{ExitCode: -1}
			err = fmt.Errorf("%s panicked: %v", cmd.String(), p)
		}
	}()
	return r.exec.Run(ctx, cmd)
}

func (r *Runner) keep(ctx context.Context, log *slog.Logger, res *Results, pm model.PhaseMeasurement) {
	if pm.Phase == model.PhaseIntegration {
		res.Integration = append(res.Integration, pm)
	} else {
		res.Generation = append(res.Generation, pm)
	}
	for _, o := range r.observers {
		if err := o.ObserveMeasurement(ctx, &res.Experiment, pm); err != nil {
			log.Warn("observer rejected measurement", "task", pm.TaskName, "error", err)
		}
	}
}

func (r *Runner) reportFailure(ctx context.Context, log *slog.Logger, exp *model.Experiment, pm model.PhaseMeasurement) {
	for _, o := range r.observers {
		if fo, ok := o.(FailureObserver); ok {
			if err := fo.ObservePhaseFailure(ctx, exp, pm); err != nil {
				log.Warn("observer rejected phase failure", "task", pm.TaskName, "error", err)
			}
		}
	}
}

// removeRunFile deletes the stale run-state file so Herwig re-integrates.
func (r *Runner) removeRunFile(log *slog.Logger) {
	path := r.settings.RunFilePath()
	err := r.removeFile(path)
	switch {
	case err == nil:
		log.Info("Removed stale run file for a clean integration", "path", path)
	case errors.Is(err, fs.ErrNotExist):
	default:
		log.Warn("Could not remove run file", "path", path, "error", err)
	}
}

// TaskName labels a phase the way the reports do, e.g. "Integration Run 3".
func TaskName(phase model.Phase, run int, warmup bool) string {
	label := "Integration"
	if phase == model.PhaseGeneration {
		label = "Generation"
	}
	if warmup {
		return fmt.Sprintf("Warm-up %s Run %d", label, run)
	}
	return fmt.Sprintf("%s Run %d", label, run)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
