package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"herwigbench/internal/config"
	"herwigbench/internal/energy"
	"herwigbench/internal/executor"
	"herwigbench/internal/experiment"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	resetFlags(root)
	viper.Reset()
	cfgFile = ""

	oldExit := exit
	exit = func(code int) {
		if code != 0 {
			panic(fmt.Sprintf("exit-%d", code))
		}
	}
	defer func() { exit = oldExit }()
	defer func() {
		if r := recover(); r != nil {
			if s, ok := r.(string); ok && strings.HasPrefix(s, "exit-") {
				return
			}
			panic(r)
		}
	}()

	root.SetArgs(args)
	b := new(bytes.Buffer)
	root.SetOut(b)
	root.SetErr(b)
	root.SetIn(bytes.NewBufferString(""))
	err := root.ExecuteContext(context.Background())
	return b.String(), err
}

type constMeter struct{ kwh float64 }

func (m constMeter) Name() string                        { return "const" }
func (m constMeter) Begin() error                        { return nil }
func (m constMeter) End(time.Duration) (float64, error) { return m.kwh, nil }

type fakeExecutor struct {
	calls []executor.Command
	fail  func(n int) bool
}

func (f *fakeExecutor) Run(_ context.Context, cmd executor.Command) (*executor.Result, error) {
	f.calls = append(f.calls, cmd)
	if f.fail != nil && f.fail(len(f.calls)) {
		return &executor.Result{ExitCode: 1, Stderr: "error"},
			&executor.CommandError{Command: cmd.String(), ExitCode: 1, Stderr: "error"}
	}
	return &executor.Result{}, nil
}

func (f *fakeExecutor) Close() error { return nil }

// withFakes swaps the executor and tracker factories for the test's
// lifetime.
func withFakes(t *testing.T, fe *fakeExecutor) {
	t.Helper()
	origExec, origTracker := executorFactory, trackerFactory
	executorFactory = func(context.Context, *config.Config) (executor.Executor, error) {
		return fe, nil
	}
	trackerFactory = func(cfg config.Energy) (experiment.Scope, error) {
		return energy.NewTracker(constMeter{0.01}, constMeter{0.001}, cfg.CarbonIntensity), nil
	}
	t.Cleanup(func() {
		executorFactory, trackerFactory = origExec, origTracker
		viper.Reset()
	})
}
