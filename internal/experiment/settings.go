package experiment

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"herwigbench/internal/config"
	"herwigbench/internal/executor"
)

// FailurePolicy decides what happens to the record of a phase whose
// subprocess failed.
type FailurePolicy string

const (
	// PolicyRecord keeps the row, marked failed, with whatever was measured.
	PolicyRecord FailurePolicy = "record"
	// PolicySkip drops the row.
	PolicySkip FailurePolicy = "skip"
)

// Settings is everything the loop needs to know.
type Settings struct {
	Project      string
	Binary       string
	RunDir       string
	Input        string
	Events       int
	Jobs         int
	Runs         int
	Warmup       int
	Delay        time.Duration
	PhaseTimeout time.Duration
	Policy       FailurePolicy
	Executor     string
}

// SettingsFromConfig copies the experiment-related fields out of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Project:      cfg.Experiment.Project,
		Binary:       cfg.Herwig.Binary,
		RunDir:       cfg.Herwig.RunDir,
		Input:        cfg.Herwig.Input,
		Events:       cfg.Herwig.Events,
		Jobs:         cfg.Herwig.Jobs,
		Runs:         cfg.Experiment.Runs,
		Warmup:       cfg.Experiment.Warmup,
		Delay:        cfg.Experiment.Delay,
		PhaseTimeout: cfg.Experiment.PhaseTimeout,
		Policy:       FailurePolicy(cfg.Experiment.FailurePolicy),
		Executor:     cfg.Executor.Type,
	}
}

func (s Settings) validate() error {
	if s.Runs <= 0 {
		return fmt.Errorf("runs must be positive, got %d", s.Runs)
	}
	if s.Warmup < 0 {
		return fmt.Errorf("warmup must not be negative, got %d", s.Warmup)
	}
	if s.Binary == "" || s.Input == "" {
		return fmt.Errorf("binary and input file must be set")
	}
	switch s.Policy {
	case PolicyRecord, PolicySkip:
	default:
		return fmt.Errorf("unknown failure policy %q", s.Policy)
	}
	return nil
}

// RunFileName is the run-state file Herwig writes for input: the input's
// extension replaced by ".run".
func RunFileName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".run"
}

// RunFilePath is RunFileName located in the run directory.
func (s Settings) RunFilePath() string {
	return filepath.Join(s.RunDir, RunFileName(s.Input))
}

func (s Settings) integrationCommand() executor.Command {
	return executor.Command{
		Name: s.Binary,
		Args: []string{"read", s.Input},
		Dir:  s.RunDir,
	}
}

func (s Settings) generationCommand() executor.Command {
	return executor.Command{
		Name: s.Binary,
		Args: []string{"run", RunFileName(s.Input), "-N", strconv.Itoa(s.Events), "-j", strconv.Itoa(s.Jobs)},
		Dir:  s.RunDir,
	}
}
